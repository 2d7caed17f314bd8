package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stugahq/stuga-core/internal/registry"
)

func TestAreaOrderRoundTrip(t *testing.T) {
	svcs, _, reg := newTestServices()
	reg.ApplyAreaUpdate(registry.AreaEntry{AreaID: "kitchen", Name: "Kitchen"})

	if got := svcs.Areas.Order("kitchen"); got != OrderUnassigned {
		t.Errorf("Order before assignment = %d, want the unassigned sentinel", got)
	}

	if err := svcs.Areas.SetOrder(context.Background(), "kitchen", 30); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	if got := svcs.Areas.Order("kitchen"); got != 30 {
		t.Errorf("Order after SetOrder(30) = %d", got)
	}

	// Reassigning replaces the order label instead of stacking a second.
	if err := svcs.Areas.SetOrder(context.Background(), "kitchen", 10); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	if got := svcs.Areas.Order("kitchen"); got != 10 {
		t.Errorf("Order after SetOrder(10) = %d", got)
	}
	area, _ := reg.Area("kitchen")
	orderRefs := 0
	for _, id := range area.Labels {
		if label, ok := reg.Label(id); ok {
			if _, isOrder := parseOrderLabel(label.Name); isOrder {
				orderRefs++
			}
		}
	}
	if orderRefs != 1 {
		t.Errorf("area carries %d order labels, want 1", orderRefs)
	}
}

func TestEnsureLabelCaches(t *testing.T) {
	svcs, client, _ := newTestServices()

	id1, err := svcs.Labels.EnsureLabel(context.Background(), "stuga_order_0030")
	if err != nil {
		t.Fatalf("EnsureLabel: %v", err)
	}
	id2, err := svcs.Labels.EnsureLabel(context.Background(), "stuga_order_0030")
	if err != nil {
		t.Fatalf("EnsureLabel: %v", err)
	}
	if id1 != id2 {
		t.Errorf("EnsureLabel returned different ids: %s, %s", id1, id2)
	}
	if n := len(client.callsOf(typeLabelCreate)); n != 1 {
		t.Errorf("label create RPCs = %d, want 1 (second call hits the cache)", n)
	}
}

func TestTemperatureSensorAssignment(t *testing.T) {
	svcs, _, reg := newTestServices()
	reg.ApplyAreaUpdate(registry.AreaEntry{AreaID: "bedroom", Name: "Bedroom"})

	if _, ok := svcs.Areas.TemperatureSensor("bedroom"); ok {
		t.Error("TemperatureSensor reported an assignment before one was made")
	}

	if err := svcs.Areas.SetTemperatureSensor(context.Background(), "bedroom", "sensor.bed_temp"); err != nil {
		t.Fatalf("SetTemperatureSensor: %v", err)
	}
	entityID, ok := svcs.Areas.TemperatureSensor("bedroom")
	if !ok || entityID != "sensor.bed_temp" {
		t.Errorf("TemperatureSensor = %q, %v", entityID, ok)
	}

	// Clearing removes the label reference.
	if err := svcs.Areas.SetTemperatureSensor(context.Background(), "bedroom", ""); err != nil {
		t.Fatalf("SetTemperatureSensor clear: %v", err)
	}
	if _, ok := svcs.Areas.TemperatureSensor("bedroom"); ok {
		t.Error("TemperatureSensor still assigned after clearing")
	}
}

func TestUpdateAreaFailureLeavesLocalUntouched(t *testing.T) {
	svcs, client, reg := newTestServices()
	reg.ApplyAreaUpdate(registry.AreaEntry{AreaID: "kitchen", Name: "Kitchen"})

	client.handler = func(string, map[string]any) (json.RawMessage, error) {
		return nil, errors.New("hub says no")
	}

	if _, err := svcs.Areas.UpdateArea(context.Background(), "kitchen", map[string]any{"name": "Galley"}); err == nil {
		t.Fatal("expected UpdateArea to fail")
	}

	area, _ := reg.Area("kitchen")
	if area.Name != "Kitchen" {
		t.Errorf("local name = %q after failed update, want Kitchen", area.Name)
	}
}

func TestUpdateAreaUnknown(t *testing.T) {
	svcs, _, _ := newTestServices()
	if _, err := svcs.Areas.UpdateArea(context.Background(), "nope", nil); !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestCreateAreaMergesEcho(t *testing.T) {
	svcs, client, reg := newTestServices()
	client.handler = func(msgType string, fields map[string]any) (json.RawMessage, error) {
		if msgType != typeAreaCreate {
			return json.RawMessage(`{}`), nil
		}
		// Echo omits the icon; the intended value must survive.
		return json.RawMessage(`{"area_id":"new-area","name":"Pantry"}`), nil
	}

	area, err := svcs.Areas.CreateArea(context.Background(), "Pantry", map[string]any{"icon": "mdi:fridge"})
	if err != nil {
		t.Fatalf("CreateArea: %v", err)
	}
	if area.AreaID != "new-area" || area.Icon != "mdi:fridge" {
		t.Errorf("created area: %+v", area)
	}
	if _, ok := reg.Area("new-area"); !ok {
		t.Error("created area not mirrored locally")
	}
}

func TestDeleteArea(t *testing.T) {
	svcs, _, reg := newTestServices()
	reg.ApplyAreaUpdate(registry.AreaEntry{AreaID: "old", Name: "Old"})

	if err := svcs.Areas.DeleteArea(context.Background(), "old"); err != nil {
		t.Fatalf("DeleteArea: %v", err)
	}
	if _, ok := reg.Area("old"); ok {
		t.Error("area still mirrored after delete")
	}
}
