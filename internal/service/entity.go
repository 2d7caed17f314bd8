package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stugahq/stuga-core/internal/hub"
	"github.com/stugahq/stuga-core/internal/registry"
)

// hiddenByUser is the hub-level hidden_by marker written by user action.
const hiddenByUser = "user"

// EntityService manages live entity state and entity registry entries.
type EntityService struct {
	client Client
	reg    *registry.Manager
	labels *LabelService
	logger Logger
}

// Entities returns the projected entity snapshot.
func (s *EntityService) Entities() map[string]registry.Entity {
	return s.reg.Snapshot()
}

// Entity returns one projected entity.
func (s *EntityService) Entity(entityID string) (registry.Entity, bool) {
	return s.reg.Entity(entityID)
}

// Entry returns one entity registry entry.
func (s *EntityService) Entry(entityID string) (registry.EntityEntry, bool) {
	return s.reg.EntityEntry(entityID)
}

// UpdateEntity sends an entity registry update and merges the confirmed
// result locally. The hub's echo may omit fields, so the caller's intended
// values are re-applied over it. When the hub confirms an entity the local
// mirror has never seen, the echo seeds a fresh entry rather than failing;
// snapshot loads replace entries wholesale anyway.
func (s *EntityService) UpdateEntity(ctx context.Context, entityID string, updates map[string]any) (registry.EntityEntry, error) {
	req := map[string]any{"entity_id": entityID}
	for k, v := range updates {
		req[k] = v
	}

	result, err := s.client.Request(ctx, typeEntityUpdate, req)
	if err != nil {
		return registry.EntityEntry{}, fmt.Errorf("updating entity %s: %w", entityID, err)
	}

	merged, known := s.reg.EntityEntry(entityID)
	if echo, ok := decodeEntityEcho(result); ok {
		merged = echo
	} else if !known {
		s.logger.Warn("entity confirmed but unknown locally, seeding entry", "entity", entityID)
	}
	merged.EntityID = entityID
	applyEntityFields(&merged, updates)
	s.reg.ApplyEntityEntryUpdate(merged)
	return merged, nil
}

// SetHidden sets the hub-level hidden flag for an entity. Already being in
// the desired state is a no-op with no network traffic.
func (s *EntityService) SetHidden(ctx context.Context, entityID string, hidden bool) error {
	entry, ok := s.reg.EntityEntry(entityID)
	if ok && entry.Hidden() == hidden {
		return nil
	}

	var hiddenBy any
	if hidden {
		hiddenBy = hiddenByUser
	}
	_, err := s.UpdateEntity(ctx, entityID, map[string]any{"hidden_by": hiddenBy})
	return err
}

// SetHiddenInStuga toggles the app-only hidden marker label. The local
// registry is mutated and subscribers notified before the network round
// trip completes; only on failure is the prior label list restored and
// re-notified. Already being in the desired state is a no-op.
func (s *EntityService) SetHiddenInStuga(ctx context.Context, entityID string, hidden bool) error {
	entry, ok := s.reg.EntityEntry(entityID)
	if !ok {
		return ErrEntityNotFound
	}

	labelID, err := s.labels.EnsureLabel(ctx, hiddenLabel)
	if err != nil {
		return err
	}

	if hasLabelRef(entry.Labels, labelID) == hidden {
		return nil
	}

	prior := entry.Labels
	var next []string
	if hidden {
		next = append(append([]string{}, prior...), labelID)
	} else {
		next, _ = removeLabelRef(prior, labelID)
	}

	// Optimistic: apply and notify first, roll back only on failure.
	entry.Labels = next
	s.reg.ApplyEntityEntryUpdate(entry)

	if _, err := s.client.Request(ctx, typeEntityUpdate, map[string]any{
		"entity_id": entityID,
		"labels":    next,
	}); err != nil {
		entry.Labels = prior
		s.reg.ApplyEntityEntryUpdate(entry)
		return fmt.Errorf("toggling hidden marker for %s: %w", entityID, err)
	}
	return nil
}

// UpdateLabels replaces an entity's full label-reference list.
func (s *EntityService) UpdateLabels(ctx context.Context, entityID string, labels []string) error {
	_, err := s.UpdateEntity(ctx, entityID, map[string]any{"labels": labels})
	return err
}

// CallService invokes a hub service, e.g. light.turn_on.
func (s *EntityService) CallService(ctx context.Context, domain, svc string, serviceData map[string]any) error {
	_, err := s.client.Request(ctx, hub.TypeCallService, map[string]any{
		"domain":       domain,
		"service":      svc,
		"service_data": serviceData,
	})
	if err != nil {
		return fmt.Errorf("calling %s.%s: %w", domain, svc, err)
	}
	return nil
}

// SetOptimisticState applies a short-lived local state override so the UI
// reflects a control action before the hub's own event arrives.
func (s *EntityService) SetOptimisticState(entityID, state string, brightness *int) {
	s.reg.SetOptimistic(entityID, state, brightness)
}

// DeleteScene deletes a scene from the hub, then removes its entity
// locally once confirmed. The hub's scene config id is taken from the
// entity's id attribute, falling back to the entity id suffix.
func (s *EntityService) DeleteScene(ctx context.Context, entityID string) error {
	sceneID := strings.TrimPrefix(entityID, "scene.")
	if e, ok := s.reg.Entity(entityID); ok {
		if id, ok := e.Attributes["id"].(string); ok && id != "" {
			sceneID = id
		}
	}

	if _, err := s.client.Request(ctx, typeSceneDelete, map[string]any{"scene_id": sceneID}); err != nil {
		return fmt.Errorf("deleting scene %s: %w", entityID, err)
	}
	s.reg.RemoveEntity(entityID)
	s.logger.Info("scene deleted", "entity", entityID)
	return nil
}

// decodeEntityEcho extracts the updated registry entry from an update
// response. Some hub versions wrap it in an entity_entry envelope.
func decodeEntityEcho(result json.RawMessage) (registry.EntityEntry, bool) {
	if len(result) == 0 {
		return registry.EntityEntry{}, false
	}

	var wrapped struct {
		EntityEntry *registry.EntityEntry `json:"entity_entry"`
	}
	if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.EntityEntry != nil {
		return *wrapped.EntityEntry, true
	}

	var entry registry.EntityEntry
	if err := json.Unmarshal(result, &entry); err == nil && entry.EntityID != "" {
		return entry, true
	}
	return registry.EntityEntry{}, false
}

// applyEntityFields re-applies intended update fields over a hub echo.
func applyEntityFields(entry *registry.EntityEntry, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			switch nv := v.(type) {
			case string:
				entry.Name = nv
			case nil:
				entry.Name = ""
			}
		case "icon":
			switch iv := v.(type) {
			case string:
				entry.Icon = iv
			case nil:
				entry.Icon = ""
			}
		case "area_id":
			switch av := v.(type) {
			case string:
				entry.AreaID = av
			case nil:
				entry.AreaID = ""
			}
		case "hidden_by":
			switch hv := v.(type) {
			case string:
				hidden := hv
				entry.HiddenBy = &hidden
			case nil:
				entry.HiddenBy = nil
			}
		case "labels":
			if labels, ok := v.([]string); ok {
				entry.Labels = labels
			}
		}
	}
}

// removeLabelRef returns refs without labelID.
func removeLabelRef(refs []string, labelID string) ([]string, bool) {
	out := make([]string, 0, len(refs))
	changed := false
	for _, r := range refs {
		if r == labelID {
			changed = true
			continue
		}
		out = append(out, r)
	}
	return out, changed
}
