package relay

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestHealthCheckNotConnected(t *testing.T) {
	r := &Relay{}
	if err := r.HealthCheck(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck on a disconnected relay = %v, want ErrNotConnected", err)
	}
}

func TestStateTopic(t *testing.T) {
	if got := stateTopic("light.kitchen"); got != "stuga/state/light.kitchen" {
		t.Errorf("stateTopic = %q", got)
	}
}

func TestStatePayloadShape(t *testing.T) {
	data, err := json.Marshal(statePayload{
		EntityID:   "light.kitchen",
		State:      "on",
		Attributes: map[string]any{"brightness": 200},
		Timestamp:  "2026-08-30T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["entity_id"] != "light.kitchen" || decoded["state"] != "on" {
		t.Errorf("payload: %s", data)
	}
	if _, ok := decoded["attributes"].(map[string]any); !ok {
		t.Errorf("attributes missing from payload: %s", data)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := onlinePayload("stuga-core-abc")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "stuga-core-abc") {
		t.Errorf("online payload: %s", online)
	}

	offline := offlinePayload("stuga-core-abc", "shutdown")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, `"reason":"shutdown"`) {
		t.Errorf("offline payload: %s", offline)
	}

	// Both must be valid JSON.
	for _, p := range []string{online, offline} {
		var v map[string]any
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			t.Errorf("payload %s is not valid JSON: %v", p, err)
		}
	}
}
