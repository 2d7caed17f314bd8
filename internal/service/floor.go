package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/stugahq/stuga-core/internal/registry"
)

// FloorService manages the floor registry. A floor's numeric level doubles
// as its sort order.
type FloorService struct {
	client Client
	reg    *registry.Manager
	logger Logger
}

// Floors returns the mirrored floor registry.
func (s *FloorService) Floors() map[string]registry.FloorEntry {
	return s.reg.Floors()
}

// Floor returns one mirrored floor entry.
func (s *FloorService) Floor(floorID string) (registry.FloorEntry, bool) {
	return s.reg.Floor(floorID)
}

// Ordered returns the floors sorted by level, name-tiebroken.
func (s *FloorService) Ordered() []registry.FloorEntry {
	floors := s.reg.Floors()
	out := make([]registry.FloorEntry, 0, len(floors))
	for _, f := range floors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CreateFloor creates a floor on the hub and mirrors it once confirmed.
func (s *FloorService) CreateFloor(ctx context.Context, name string, fields map[string]any) (registry.FloorEntry, error) {
	req := map[string]any{"name": name}
	for k, v := range fields {
		req[k] = v
	}

	result, err := s.client.Request(ctx, typeFloorCreate, req)
	if err != nil {
		return registry.FloorEntry{}, fmt.Errorf("creating floor %q: %w", name, err)
	}

	var floor registry.FloorEntry
	if err := json.Unmarshal(result, &floor); err != nil {
		return registry.FloorEntry{}, fmt.Errorf("decoding created floor: %w", err)
	}
	applyFloorFields(&floor, req)
	s.reg.ApplyFloorUpdate(floor)
	s.logger.Info("floor created", "floor_id", floor.FloorID, "name", floor.Name)
	return floor, nil
}

// UpdateFloor sends a floor update and merges the confirmed result
// locally, re-applying the intended fields over the hub's echo. On failure
// local state is untouched.
func (s *FloorService) UpdateFloor(ctx context.Context, floorID string, updates map[string]any) (registry.FloorEntry, error) {
	current, ok := s.reg.Floor(floorID)
	if !ok {
		return registry.FloorEntry{}, ErrFloorNotFound
	}

	req := map[string]any{"floor_id": floorID}
	for k, v := range updates {
		req[k] = v
	}

	result, err := s.client.Request(ctx, typeFloorUpdate, req)
	if err != nil {
		return registry.FloorEntry{}, fmt.Errorf("updating floor %s: %w", floorID, err)
	}

	merged := current
	if len(result) > 0 {
		if err := json.Unmarshal(result, &merged); err != nil {
			s.logger.Warn("undecodable floor update echo", "floor_id", floorID, "error", err)
			merged = current
		}
	}
	merged.FloorID = floorID
	applyFloorFields(&merged, updates)
	s.reg.ApplyFloorUpdate(merged)
	return merged, nil
}

// DeleteFloor removes a floor from the hub, then locally once confirmed.
func (s *FloorService) DeleteFloor(ctx context.Context, floorID string) error {
	if _, ok := s.reg.Floor(floorID); !ok {
		return ErrFloorNotFound
	}
	if _, err := s.client.Request(ctx, typeFloorDelete, map[string]any{"floor_id": floorID}); err != nil {
		return fmt.Errorf("deleting floor %s: %w", floorID, err)
	}
	s.reg.DeleteFloor(floorID)
	s.logger.Info("floor deleted", "floor_id", floorID)
	return nil
}

// SetOrder moves a floor to the given position by assigning
// level = index x OrderStride.
func (s *FloorService) SetOrder(ctx context.Context, floorID string, index int) error {
	_, err := s.UpdateFloor(ctx, floorID, map[string]any{"level": index * OrderStride})
	return err
}

// SaveOrderBatch applies a drag-reorder result: floorIDs is the full
// proposed ordering. Only floors whose level differs from their target get
// an update RPC, per-floor notifications are suppressed, and exactly one
// registry notification fires after the batch settles.
func (s *FloorService) SaveOrderBatch(ctx context.Context, floorIDs []string) error {
	var errs []error
	s.reg.Batch(func() {
		for i, floorID := range floorIDs {
			want := i * OrderStride
			floor, ok := s.reg.Floor(floorID)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s", ErrFloorNotFound, floorID))
				continue
			}
			if floor.Level == want {
				continue
			}
			if _, err := s.UpdateFloor(ctx, floorID, map[string]any{"level": want}); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// applyFloorFields re-applies intended update fields over a hub echo.
func applyFloorFields(floor *registry.FloorEntry, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			if name, ok := v.(string); ok {
				floor.Name = name
			}
		case "icon":
			switch iv := v.(type) {
			case string:
				floor.Icon = iv
			case nil:
				floor.Icon = ""
			}
		case "level":
			switch lv := v.(type) {
			case int:
				floor.Level = lv
			case float64:
				floor.Level = int(lv)
			}
		}
	}
}
