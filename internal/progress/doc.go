// Package progress tracks how far a crawl run has advanced so the status
// server can report it while the run is in flight.
package progress
