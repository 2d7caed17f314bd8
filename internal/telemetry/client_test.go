package telemetry

import "testing"

func TestNumericState(t *testing.T) {
	tests := []struct {
		state string
		value float64
		ok    bool
	}{
		{"21.5", 21.5, true},
		{"-3", -3, true},
		{"0", 0, true},
		{"on", 1, true},
		{"off", 0, true},
		{"open", 1, true},
		{"closed", 0, true},
		{"locked", 1, true},
		{"unlocked", 0, true},
		{"home", 1, true},
		{"not_home", 0, true},
		{"unavailable", 0, false},
		{"unknown", 0, false},
		{"", 0, false},
		{"scening", 0, false},
	}
	for _, tt := range tests {
		value, ok := numericState(tt.state)
		if ok != tt.ok || value != tt.value {
			t.Errorf("numericState(%q) = %v, %v; want %v, %v", tt.state, value, ok, tt.value, tt.ok)
		}
	}
}

func TestEntityDomain(t *testing.T) {
	tests := []struct {
		entityID string
		domain   string
	}{
		{"light.kitchen", "light"},
		{"sensor.bed_temp", "sensor"},
		{"weird", "weird"},
	}
	for _, tt := range tests {
		if got := entityDomain(tt.entityID); got != tt.domain {
			t.Errorf("entityDomain(%q) = %q, want %q", tt.entityID, got, tt.domain)
		}
	}
}
