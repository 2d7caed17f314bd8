package relay

import "errors"

var (
	// ErrDisabled indicates the MQTT relay is disabled in config.
	ErrDisabled = errors.New("relay: disabled in configuration")

	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("relay: connection failed")

	// ErrNotConnected indicates the relay is not connected to the broker.
	ErrNotConnected = errors.New("relay: not connected")
)
