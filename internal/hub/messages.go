package hub

import (
	"encoding/json"
	"fmt"
)

// Inbound frame types consumed from the hub.
const (
	TypeAuthRequired = "auth_required"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"
	TypeResult       = "result"
	TypeEvent        = "event"
)

// Outbound frame types sent to the hub.
const (
	TypeAuth            = "auth"
	TypeSubscribeEvents = "subscribe_events"
	TypeGetConfig       = "get_config"
	TypeGetStates       = "get_states"
	TypeCallService     = "call_service"
)

// EventStateChanged is the event_type carried by entity state updates.
const EventStateChanged = "state_changed"

// Frame is a single inbound JSON message from the hub.
//
// The hub multiplexes several message kinds over one socket; which fields
// are populated depends on Type.
type Frame struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
}

// Ok reports whether a result frame carries success:true.
func (f *Frame) Ok() bool {
	return f.Success != nil && *f.Success
}

// RPCError is the hub's error shape for rejected operations. The timeout
// and disconnect flush paths reuse it with locally assigned codes.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("hub: %s: %s", e.Code, e.Message)
}

// Event is the payload of an inbound event frame.
type Event struct {
	EventType string    `json:"event_type"`
	Data      EventData `json:"data"`
}

// EventData carries state_changed event details. NewState is null when the
// entity was removed from the hub.
type EventData struct {
	EntityID string          `json:"entity_id"`
	NewState json.RawMessage `json:"new_state"`
}

// authRequest is the credential frame sent in response to auth_required.
type authRequest struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// command assembles an outbound request frame. The id and type keys are
// reserved; any collision in fields is overwritten.
func command(id int64, msgType string, fields map[string]any) map[string]any {
	msg := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		msg[k] = v
	}
	msg["id"] = id
	msg["type"] = msgType
	return msg
}
