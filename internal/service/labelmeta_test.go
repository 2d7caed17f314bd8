package service

import (
	"reflect"
	"testing"

	"github.com/stugahq/stuga-core/internal/registry"
)

func TestOrderLabelRoundTrip(t *testing.T) {
	tests := []struct {
		order int
		name  string
	}{
		{0, "stuga_order_0000"},
		{30, "stuga_order_0030"},
		{120, "stuga_order_0120"},
		{12345, "stuga_order_12345"},
	}
	for _, tt := range tests {
		if got := orderLabelName(tt.order); got != tt.name {
			t.Errorf("orderLabelName(%d) = %q, want %q", tt.order, got, tt.name)
		}
		order, ok := parseOrderLabel(tt.name)
		if !ok || order != tt.order {
			t.Errorf("parseOrderLabel(%q) = %d, %v; want %d", tt.name, order, ok, tt.order)
		}
	}
}

func TestParseOrderLabelRejects(t *testing.T) {
	for _, name := range []string{"cosy", "stuga_temp_sensor.x", "stuga_order_", "stuga_order_abc"} {
		if _, ok := parseOrderLabel(name); ok {
			t.Errorf("parseOrderLabel(%q) accepted a non-order label", name)
		}
	}
}

func TestTempLabelRoundTrip(t *testing.T) {
	name := tempLabelName("sensor.kitchen_temp")
	if name != "stuga_temp_sensor.kitchen_temp" {
		t.Errorf("tempLabelName = %q", name)
	}
	entityID, ok := parseTempLabel(name)
	if !ok || entityID != "sensor.kitchen_temp" {
		t.Errorf("parseTempLabel(%q) = %q, %v", name, entityID, ok)
	}
	if _, ok := parseTempLabel("stuga_order_0010"); ok {
		t.Error("parseTempLabel accepted an order label")
	}
}

func TestReplaceMetaLabelPreservesOtherKinds(t *testing.T) {
	reg := registry.NewManager(registry.Options{Client: &noSender{}})
	reg.ApplyLabelUpdate(registry.LabelEntry{LabelID: "ord-old", Name: "stuga_order_0010"})
	reg.ApplyLabelUpdate(registry.LabelEntry{LabelID: "ord-new", Name: "stuga_order_0030"})
	reg.ApplyLabelUpdate(registry.LabelEntry{LabelID: "temp", Name: "stuga_temp_sensor.x"})
	reg.ApplyLabelUpdate(registry.LabelEntry{LabelID: "plain", Name: "cosy"})

	refs := []string{"ord-old", "temp", "plain"}
	got := replaceMetaLabel(reg, refs, orderPrefix, "ord-new")
	want := []string{"temp", "plain", "ord-new"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("replaceMetaLabel = %v, want %v", got, want)
	}

	// Removal: empty replacement id just strips the prefix kind.
	got = replaceMetaLabel(reg, refs, tempPrefix, "")
	want = []string{"ord-old", "plain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("replaceMetaLabel removal = %v, want %v", got, want)
	}
}
