// Package crawler walks a range of registry document numbers, fetching each
// page with a courtesy pause, extracting its bibliographic fields, and
// assembling the results into a patent.Table in ascending document order.
package crawler
