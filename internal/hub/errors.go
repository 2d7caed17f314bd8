package hub

import "errors"

// ErrNotConfigured is returned when Connect is called before Configure.
// Check with errors.Is:
//
//	if errors.Is(err, hub.ErrNotConfigured) {
//	    // prompt for connection settings
//	}
var ErrNotConfigured = errors.New("hub: connection not configured")

// Well-known RPCError codes produced locally (never by the hub).
const (
	// CodeTimeout is set on callbacks that expire before a response arrives.
	CodeTimeout = "timeout"

	// CodeDisconnected is set on callbacks flushed by a disconnect.
	CodeDisconnected = "disconnected"
)
