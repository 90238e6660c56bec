// Package server provides the optional local HTTP surface of the bar.
//
// It handles:
//
//   - Status page: Serves the embedded HTML page at "/"
//   - REST API: JSON snapshot at "/api/status" and triggers at "/api/trigger/{id}"
//   - Server-Sent Events: Live snapshots at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
