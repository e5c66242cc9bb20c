// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - WebSocket connection state, reconnects and terminal failures per channel
//   - Inbound message rates and drops (queue full, undecodable frames)
//   - Recorder rows written, flush errors and buffer overflow
//
// Metrics live in a private registry exposed through Handler, so embedding
// applications keep control of their own default registry.
package metrics
