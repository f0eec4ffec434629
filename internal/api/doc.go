// Package api hosts the optional status server that lets an operator watch a
// long crawl. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /progress for the current run snapshot as JSON.
package api
