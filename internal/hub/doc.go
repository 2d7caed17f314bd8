// Package hub manages the long-lived WebSocket connection to the
// home-automation hub.
//
// The hub speaks a JSON frame protocol over a single socket: the server
// initiates an auth handshake, then the client multiplexes many logical
// request/response pairs (correlated by a monotonically increasing message
// id) alongside a stream of broadcast events.
//
// # Architecture
//
//   - Client (client.go): socket lifecycle — connect, authenticate,
//     reconnect with a fixed delay, disconnect, send/receive.
//   - pendingTable (pending.go): correlates outgoing request ids to
//     callbacks with per-request timeouts. Every registered callback fires
//     exactly once: explicit result, timeout, or disconnect flush.
//   - Subscribers (subscribers.go): add/remove-by-handle fan-out sets with
//     synchronous notification.
//   - Frame / RPCError (messages.go): the wire protocol consumed from and
//     sent to the hub.
//
// # Usage
//
//	c := hub.New(hub.Options{URL: url, Token: token, Dialer: hub.DefaultDialer})
//	c.SetAuthenticatedHandler(func() { /* bulk-load registries */ })
//	if err := c.Connect(); err != nil { ... }
//	result, err := c.Request(ctx, "call_service", map[string]any{
//	    "domain": "light", "service": "turn_on",
//	    "service_data": map[string]any{"entity_id": "light.kitchen"},
//	})
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Inbound frames are
// dispatched from a single read goroutine per connection.
package hub
