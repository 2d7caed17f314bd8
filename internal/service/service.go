package service

import (
	"context"
	"encoding/json"

	"github.com/stugahq/stuga-core/internal/registry"
)

// Registry config mutation types consumed from the hub.
const (
	typeAreaCreate   = "config/area_registry/create"
	typeAreaUpdate   = "config/area_registry/update"
	typeAreaDelete   = "config/area_registry/delete"
	typeFloorCreate  = "config/floor_registry/create"
	typeFloorUpdate  = "config/floor_registry/update"
	typeFloorDelete  = "config/floor_registry/delete"
	typeLabelCreate  = "config/label_registry/create"
	typeLabelDelete  = "config/label_registry/delete"
	typeEntityUpdate = "config/entity_registry/update"
	typeSceneDelete  = "config/scene/delete"
)

// Client is the RPC surface the services need from the hub connection.
// Each call blocks until exactly one of result, timeout, or disconnect
// flush resolves it.
type Client interface {
	Request(ctx context.Context, msgType string, fields map[string]any) (json.RawMessage, error)
}

// Logger defines the logging interface used by the services.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Services bundles the four domain services over one hub connection and
// one registry manager.
type Services struct {
	Entities *EntityService
	Areas    *AreaService
	Floors   *FloorService
	Labels   *LabelService
}

// New wires the domain services.
func New(client Client, reg *registry.Manager, logger Logger) *Services {
	if logger == nil {
		logger = noopLogger{}
	}
	labels := &LabelService{client: client, reg: reg, logger: logger}
	return &Services{
		Entities: &EntityService{client: client, reg: reg, labels: labels, logger: logger},
		Areas:    &AreaService{client: client, reg: reg, labels: labels, logger: logger},
		Floors:   &FloorService{client: client, reg: reg, logger: logger},
		Labels:   labels,
	}
}
