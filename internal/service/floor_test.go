package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stugahq/stuga-core/internal/registry"
)

func seedFloors(reg *registry.Manager) {
	reg.ApplyFloorUpdate(registry.FloorEntry{FloorID: "ground", Name: "Ground", Level: 0})
	reg.ApplyFloorUpdate(registry.FloorEntry{FloorID: "first", Name: "First", Level: 10})
	reg.ApplyFloorUpdate(registry.FloorEntry{FloorID: "attic", Name: "Attic", Level: 20})
}

func TestFloorsOrdered(t *testing.T) {
	svcs, _, reg := newTestServices()
	seedFloors(reg)

	ordered := svcs.Floors.Ordered()
	want := []string{"ground", "first", "attic"}
	if len(ordered) != len(want) {
		t.Fatalf("ordered floor count = %d, want %d", len(ordered), len(want))
	}
	for i, id := range want {
		if ordered[i].FloorID != id {
			t.Errorf("ordered[%d] = %s, want %s", i, ordered[i].FloorID, id)
		}
	}
}

func TestSaveOrderBatchUpdatesOnlyMovedFloors(t *testing.T) {
	svcs, client, reg := newTestServices()
	seedFloors(reg)

	var mu sync.Mutex
	notifications := 0
	reg.OnRegistryUpdate(func(string) {
		mu.Lock()
		notifications++
		mu.Unlock()
	})

	// Attic moves from index 2 to index 0; First stays at index 1;
	// Ground falls to index 2. Exactly the two moved floors get an RPC.
	err := svcs.Floors.SaveOrderBatch(context.Background(), []string{"attic", "first", "ground"})
	if err != nil {
		t.Fatalf("SaveOrderBatch: %v", err)
	}

	updates := client.callsOf(typeFloorUpdate)
	if len(updates) != 2 {
		t.Fatalf("floor update RPCs = %d, want 2", len(updates))
	}
	for _, u := range updates {
		if u.fields["floor_id"] == "first" {
			t.Error("unmoved floor received an update RPC")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if notifications != 1 {
		t.Errorf("registry notifications = %d, want exactly 1 after the batch", notifications)
	}

	attic, _ := reg.Floor("attic")
	if attic.Level != 0 {
		t.Errorf("attic level = %d, want 0", attic.Level)
	}
	ground, _ := reg.Floor("ground")
	if ground.Level != 2*OrderStride {
		t.Errorf("ground level = %d, want %d", ground.Level, 2*OrderStride)
	}
}

func TestSaveOrderBatchNoChangesNoTraffic(t *testing.T) {
	svcs, client, reg := newTestServices()
	seedFloors(reg)

	if err := svcs.Floors.SaveOrderBatch(context.Background(), []string{"ground", "first", "attic"}); err != nil {
		t.Fatalf("SaveOrderBatch: %v", err)
	}
	if n := client.callCount(); n != 0 {
		t.Errorf("RPCs for an unchanged ordering = %d, want 0", n)
	}
}

func TestSetFloorOrder(t *testing.T) {
	svcs, _, reg := newTestServices()
	seedFloors(reg)

	if err := svcs.Floors.SetOrder(context.Background(), "attic", 0); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	attic, _ := reg.Floor("attic")
	if attic.Level != 0 {
		t.Errorf("attic level = %d after SetOrder(0)", attic.Level)
	}
}

func TestCreateAndDeleteFloor(t *testing.T) {
	svcs, client, reg := newTestServices()
	client.handler = nil

	floor, err := svcs.Floors.CreateFloor(context.Background(), "Basement", map[string]any{"level": -10})
	if err != nil {
		t.Fatalf("CreateFloor: %v", err)
	}
	if floor.Name != "Basement" || floor.Level != -10 {
		t.Errorf("created floor: %+v", floor)
	}

	// The echo in these tests has no floor_id; deletion needs a real one.
	reg.ApplyFloorUpdate(registry.FloorEntry{FloorID: "b1", Name: "Basement", Level: -10})
	if err := svcs.Floors.DeleteFloor(context.Background(), "b1"); err != nil {
		t.Fatalf("DeleteFloor: %v", err)
	}
	if _, ok := reg.Floor("b1"); ok {
		t.Error("floor still mirrored after delete")
	}
}
