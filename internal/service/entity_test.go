package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stugahq/stuga-core/internal/registry"
)

func seedEntity(reg *registry.Manager, entityID string) {
	reg.ApplyEntityEntryUpdate(registry.EntityEntry{EntityID: entityID})
	reg.HandleStateChange(entityID, json.RawMessage(`{"entity_id":"`+entityID+`","state":"off","attributes":{}}`))
}

func TestSetHiddenIdempotent(t *testing.T) {
	svcs, client, reg := newTestServices()
	seedEntity(reg, "light.hall")

	if err := svcs.Entities.SetHidden(context.Background(), "light.hall", true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}
	entry, _ := reg.EntityEntry("light.hall")
	if !entry.Hidden() {
		t.Fatal("entity not hidden after SetHidden(true)")
	}
	first := client.callCount()

	// Already hidden: the second call must not touch the network.
	if err := svcs.Entities.SetHidden(context.Background(), "light.hall", true); err != nil {
		t.Fatalf("SetHidden repeat: %v", err)
	}
	if client.callCount() != first {
		t.Errorf("repeat SetHidden issued %d extra RPCs", client.callCount()-first)
	}

	// Unhiding clears the flag.
	if err := svcs.Entities.SetHidden(context.Background(), "light.hall", false); err != nil {
		t.Fatalf("SetHidden(false): %v", err)
	}
	entry, _ = reg.EntityEntry("light.hall")
	if entry.Hidden() {
		t.Error("entity still hidden after SetHidden(false)")
	}
}

func TestSetHiddenInStugaOptimisticRollback(t *testing.T) {
	svcs, client, reg := newTestServices()
	seedEntity(reg, "light.hall")

	// Fail only entity updates; the marker-label create succeeds.
	client.handler = func(msgType string, fields map[string]any) (json.RawMessage, error) {
		if msgType == typeEntityUpdate {
			return nil, errors.New("hub rejected the update")
		}
		return (&fakeClient{}).defaultResponse(msgType, fields)
	}

	err := svcs.Entities.SetHiddenInStuga(context.Background(), "light.hall", true)
	if err == nil {
		t.Fatal("expected SetHiddenInStuga to surface the failure")
	}

	// Rollback: the prior (empty) label list is restored.
	entry, _ := reg.EntityEntry("light.hall")
	if len(entry.Labels) != 0 {
		t.Errorf("labels after rollback = %v, want none", entry.Labels)
	}
}

func TestSetHiddenInStugaAppliesBeforeConfirm(t *testing.T) {
	svcs, client, reg := newTestServices()
	seedEntity(reg, "light.hall")

	// Observe the label list at the moment the update RPC is made: the
	// optimistic mutation must already be visible.
	var duringRPC []string
	client.handler = func(msgType string, fields map[string]any) (json.RawMessage, error) {
		if msgType == typeEntityUpdate {
			entry, _ := reg.EntityEntry("light.hall")
			duringRPC = entry.Labels
		}
		return (&fakeClient{}).defaultResponse(msgType, fields)
	}

	if err := svcs.Entities.SetHiddenInStuga(context.Background(), "light.hall", true); err != nil {
		t.Fatalf("SetHiddenInStuga: %v", err)
	}
	if len(duringRPC) != 1 {
		t.Errorf("labels during RPC = %v, want the marker already applied", duringRPC)
	}

	// Repeat in the same direction: no further update RPC.
	before := len(client.callsOf(typeEntityUpdate))
	if err := svcs.Entities.SetHiddenInStuga(context.Background(), "light.hall", true); err != nil {
		t.Fatalf("SetHiddenInStuga repeat: %v", err)
	}
	if after := len(client.callsOf(typeEntityUpdate)); after != before {
		t.Errorf("repeat toggle issued %d extra update RPCs", after-before)
	}
}

func TestUpdateEntitySeedsUnknownEntry(t *testing.T) {
	svcs, client, reg := newTestServices()
	client.handler = func(msgType string, fields map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"entity_entry":{"entity_id":"light.new","name":"New Light","hidden_by":null}}`), nil
	}

	entry, err := svcs.Entities.UpdateEntity(context.Background(), "light.new", map[string]any{"icon": "mdi:bulb"})
	if err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	if entry.Name != "New Light" {
		t.Errorf("echo name not merged: %+v", entry)
	}
	if entry.Icon != "mdi:bulb" {
		t.Errorf("intended icon not re-applied: %+v", entry)
	}
	if _, ok := reg.EntityEntry("light.new"); !ok {
		t.Error("confirmed entity not seeded into the local registry")
	}
}

func TestUpdateEntityFailureLeavesLocalUntouched(t *testing.T) {
	svcs, client, reg := newTestServices()
	seedEntity(reg, "light.hall")
	client.handler = func(string, map[string]any) (json.RawMessage, error) {
		return nil, errors.New("nope")
	}

	if _, err := svcs.Entities.UpdateEntity(context.Background(), "light.hall", map[string]any{"name": "X"}); err == nil {
		t.Fatal("expected UpdateEntity to fail")
	}
	entry, _ := reg.EntityEntry("light.hall")
	if entry.Name != "" {
		t.Errorf("local name = %q after failed update", entry.Name)
	}
}

func TestCallService(t *testing.T) {
	svcs, client, _ := newTestServices()

	err := svcs.Entities.CallService(context.Background(), "light", "turn_on", map[string]any{"entity_id": "light.x"})
	if err != nil {
		t.Fatalf("CallService: %v", err)
	}

	calls := client.callsOf("call_service")
	if len(calls) != 1 {
		t.Fatalf("call_service RPCs = %d, want 1", len(calls))
	}
	if calls[0].fields["domain"] != "light" || calls[0].fields["service"] != "turn_on" {
		t.Errorf("call_service fields: %+v", calls[0].fields)
	}
}

func TestDeleteScene(t *testing.T) {
	svcs, client, reg := newTestServices()
	reg.HandleStateChange("scene.movie_night", json.RawMessage(`{"entity_id":"scene.movie_night","state":"scening","attributes":{"id":"cfg-123"}}`))

	if err := svcs.Entities.DeleteScene(context.Background(), "scene.movie_night"); err != nil {
		t.Fatalf("DeleteScene: %v", err)
	}

	calls := client.callsOf(typeSceneDelete)
	if len(calls) != 1 {
		t.Fatalf("scene delete RPCs = %d, want 1", len(calls))
	}
	if calls[0].fields["scene_id"] != "cfg-123" {
		t.Errorf("scene_id = %v, want the config id from attributes", calls[0].fields["scene_id"])
	}
	if _, ok := reg.Entity("scene.movie_night"); ok {
		t.Error("scene entity still mirrored after delete")
	}
}
