package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stugahq/stuga-core/internal/registry"
)

// AreaService manages the area registry and the label-encoded area
// metadata (sort order, temperature sensor).
type AreaService struct {
	client Client
	reg    *registry.Manager
	labels *LabelService
	logger Logger
}

// Areas returns the mirrored area registry.
func (s *AreaService) Areas() map[string]registry.AreaEntry {
	return s.reg.Areas()
}

// Area returns one mirrored area entry.
func (s *AreaService) Area(areaID string) (registry.AreaEntry, bool) {
	return s.reg.Area(areaID)
}

// CreateArea creates an area on the hub and mirrors it locally once
// confirmed.
func (s *AreaService) CreateArea(ctx context.Context, name string, fields map[string]any) (registry.AreaEntry, error) {
	req := map[string]any{"name": name}
	for k, v := range fields {
		req[k] = v
	}

	result, err := s.client.Request(ctx, typeAreaCreate, req)
	if err != nil {
		return registry.AreaEntry{}, fmt.Errorf("creating area %q: %w", name, err)
	}

	var area registry.AreaEntry
	if err := json.Unmarshal(result, &area); err != nil {
		return registry.AreaEntry{}, fmt.Errorf("decoding created area: %w", err)
	}
	applyAreaFields(&area, req)
	s.reg.ApplyAreaUpdate(area)
	s.logger.Info("area created", "area_id", area.AreaID, "name", area.Name)
	return area, nil
}

// UpdateArea sends an area update and merges the confirmed result into the
// local registry. The caller's intended field values are re-applied over
// the hub's echo in case the echo omits them. On failure local state is
// untouched.
func (s *AreaService) UpdateArea(ctx context.Context, areaID string, updates map[string]any) (registry.AreaEntry, error) {
	current, ok := s.reg.Area(areaID)
	if !ok {
		return registry.AreaEntry{}, ErrAreaNotFound
	}

	req := map[string]any{"area_id": areaID}
	for k, v := range updates {
		req[k] = v
	}

	result, err := s.client.Request(ctx, typeAreaUpdate, req)
	if err != nil {
		return registry.AreaEntry{}, fmt.Errorf("updating area %s: %w", areaID, err)
	}

	merged := current
	if len(result) > 0 {
		if err := json.Unmarshal(result, &merged); err != nil {
			s.logger.Warn("undecodable area update echo", "area_id", areaID, "error", err)
			merged = current
		}
	}
	merged.AreaID = areaID
	applyAreaFields(&merged, updates)
	s.reg.ApplyAreaUpdate(merged)
	return merged, nil
}

// DeleteArea removes an area from the hub, then locally once confirmed.
func (s *AreaService) DeleteArea(ctx context.Context, areaID string) error {
	if _, ok := s.reg.Area(areaID); !ok {
		return ErrAreaNotFound
	}
	if _, err := s.client.Request(ctx, typeAreaDelete, map[string]any{"area_id": areaID}); err != nil {
		return fmt.Errorf("deleting area %s: %w", areaID, err)
	}
	s.reg.DeleteArea(areaID)
	s.logger.Info("area deleted", "area_id", areaID)
	return nil
}

// SetOrder assigns an area's sort order by swapping in the matching order
// label: ensure the label exists, replace any existing order label on the
// area, keep labels of other kinds untouched.
func (s *AreaService) SetOrder(ctx context.Context, areaID string, order int) error {
	area, ok := s.reg.Area(areaID)
	if !ok {
		return ErrAreaNotFound
	}

	labelID, err := s.labels.EnsureLabel(ctx, orderLabelName(order))
	if err != nil {
		return err
	}

	labels := replaceMetaLabel(s.reg, area.Labels, orderPrefix, labelID)
	_, err = s.UpdateArea(ctx, areaID, map[string]any{"labels": labels})
	return err
}

// Order returns an area's label-encoded sort order, or OrderUnassigned
// when it has none. Unordered areas sort after every ordered one.
func (s *AreaService) Order(areaID string) int {
	area, ok := s.reg.Area(areaID)
	if !ok {
		return OrderUnassigned
	}
	label, ok := findMetaLabel(s.reg, area.Labels, orderPrefix)
	if !ok {
		return OrderUnassigned
	}
	order, ok := parseOrderLabel(label.Name)
	if !ok {
		return OrderUnassigned
	}
	return order
}

// SetTemperatureSensor records which sensor entity represents an area's
// temperature, encoded as a label. An empty entity id removes the
// assignment.
func (s *AreaService) SetTemperatureSensor(ctx context.Context, areaID, entityID string) error {
	area, ok := s.reg.Area(areaID)
	if !ok {
		return ErrAreaNotFound
	}

	var labelID string
	if entityID != "" {
		var err error
		labelID, err = s.labels.EnsureLabel(ctx, tempLabelName(entityID))
		if err != nil {
			return err
		}
	}

	labels := replaceMetaLabel(s.reg, area.Labels, tempPrefix, labelID)
	_, err := s.UpdateArea(ctx, areaID, map[string]any{"labels": labels})
	return err
}

// TemperatureSensor returns the entity id of an area's assigned
// temperature sensor, if any.
func (s *AreaService) TemperatureSensor(areaID string) (string, bool) {
	area, ok := s.reg.Area(areaID)
	if !ok {
		return "", false
	}
	label, ok := findMetaLabel(s.reg, area.Labels, tempPrefix)
	if !ok {
		return "", false
	}
	return parseTempLabel(label.Name)
}

// UpdateLabels replaces an area's full label-reference list.
func (s *AreaService) UpdateLabels(ctx context.Context, areaID string, labels []string) error {
	_, err := s.UpdateArea(ctx, areaID, map[string]any{"labels": labels})
	return err
}

// applyAreaFields re-applies intended update fields over a hub echo.
func applyAreaFields(area *registry.AreaEntry, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			if name, ok := v.(string); ok {
				area.Name = name
			}
		case "floor_id":
			switch fv := v.(type) {
			case string:
				area.FloorID = fv
			case nil:
				area.FloorID = ""
			}
		case "icon":
			switch iv := v.(type) {
			case string:
				area.Icon = iv
			case nil:
				area.Icon = ""
			}
		case "labels":
			if labels, ok := v.([]string); ok {
				area.Labels = labels
			}
		}
	}
}
