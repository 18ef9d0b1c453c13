// Package api implements the HTTP REST API and WebSocket push for the
// Fujitsu bridge.
//
// This package provides:
//   - REST endpoints to read the climate entity, its traits and history
//   - A control endpoint that applies requests through the bridge
//   - A WebSocket hub broadcasting state changes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Optional bearer-token (JWT, HS256) protection of write routes
//
// # Architecture
//
// The server sits beside the MQTT bridge and talks to the same
// fujitsu.Bridge. Control requests go straight to the bridge, not through
// the broker. State changes reach WebSocket clients because the server is
// registered as a bridge observer (see Server.ObserveState).
//
// # Graceful Degradation
//
// The server operates without MQTT or the history database. Reads and
// control keep working; the history endpoint answers 503.
package api
