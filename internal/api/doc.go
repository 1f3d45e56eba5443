// Package api implements the HTTP REST API and WebSocket server for printwatch.
//
// This package provides:
//   - REST endpoints for components, component history and the message store
//   - Commands (cancel print, update component, publish) routed to the broker
//   - A WebSocket hub pushing store changes to dashboards
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, JWT)
//
// # Architecture
//
// The server reads from the latest-value message store and sends commands
// through printer.Service. It never talks to MQTT directly: incoming messages
// land in the store, the store notifies the server, and the server relays the
// new entries to WebSocket clients whose MQTT filters match.
//
// # Security
//
// When security.jwt.secret is set, mutating routes require an operator
// bearer token and WebSocket connections require a token of any role in the
// token query parameter. Tokens are minted with `printwatch token`.
//
// # Graceful Degradation
//
// Without a broker, reads and WebSocket streaming work; commands return
// 503 Service Unavailable.
package api
