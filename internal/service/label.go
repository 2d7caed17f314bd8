package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stugahq/stuga-core/internal/registry"
)

// LabelService manages the label registry and the ensure-on-demand
// lifecycle of metadata labels.
type LabelService struct {
	client Client
	reg    *registry.Manager
	logger Logger
}

// Labels returns the mirrored label registry.
func (s *LabelService) Labels() map[string]registry.LabelEntry {
	return s.reg.Labels()
}

// EnsureLabel returns the id of the label with exactly the given name,
// creating it on the hub first if it does not exist yet. Created labels are
// cached in the local registry immediately.
func (s *LabelService) EnsureLabel(ctx context.Context, name string) (string, error) {
	if label, ok := s.reg.LabelByName(name); ok {
		return label.LabelID, nil
	}

	result, err := s.client.Request(ctx, typeLabelCreate, map[string]any{"name": name})
	if err != nil {
		return "", fmt.Errorf("creating label %q: %w", name, err)
	}

	var label registry.LabelEntry
	if err := json.Unmarshal(result, &label); err != nil {
		return "", fmt.Errorf("decoding created label: %w", err)
	}
	if label.Name == "" {
		label.Name = name
	}
	s.reg.ApplyLabelUpdate(label)
	s.logger.Debug("label created", "name", name, "label_id", label.LabelID)
	return label.LabelID, nil
}

// DeleteLabel removes a label from the hub and strips every local
// reference to it.
func (s *LabelService) DeleteLabel(ctx context.Context, labelID string) error {
	if _, ok := s.reg.Label(labelID); !ok {
		return ErrLabelNotFound
	}
	if _, err := s.client.Request(ctx, typeLabelDelete, map[string]any{"label_id": labelID}); err != nil {
		return fmt.Errorf("deleting label: %w", err)
	}
	s.reg.DeleteLabel(labelID)
	return nil
}
