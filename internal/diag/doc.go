// Package diag classifies first-connection failures against the hub.
//
// When the initial connection attempt fails and credentials are present, the
// hub client runs Probe once to distinguish "hub unreachable" from "HTTP
// fine but WebSocket blocked" (a common reverse-proxy misconfiguration)
// before the normal reconnect cycle proceeds. Steady-state reconnects never
// probe; connection blips recover silently.
package diag
