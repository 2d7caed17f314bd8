package core

import (
	"context"

	"github.com/stugahq/stuga-core/internal/diag"
	"github.com/stugahq/stuga-core/internal/hub"
	"github.com/stugahq/stuga-core/internal/infrastructure/config"
	"github.com/stugahq/stuga-core/internal/registry"
	"github.com/stugahq/stuga-core/internal/service"
)

// Logger defines the logging interface used by the Core and passed down to
// its components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Core.
type Options struct {
	Config *config.Config
	Logger Logger

	// Credentials supplies refresh-token auth; nil means static token
	// only.
	Credentials hub.CredentialSource

	// Dialer overrides the socket dialer, for tests.
	Dialer hub.Dialer

	// Simulated marks an offline/simulated data source. Optimistic
	// overrides live much longer, since no hub event will clear them.
	Simulated bool
}

// Core is the single handle the UI holds: one hub connection, one mirrored
// registry, and the domain services over them.
type Core struct {
	client   *hub.Client
	reg      *registry.Manager
	services *service.Services
	logger   Logger
}

// New wires the full state-synchronization core. It does not connect.
func New(opts Options) *Core {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	optimistic := cfg.OptimisticDuration()
	if opts.Simulated {
		optimistic = cfg.SimulatedOptimisticDuration()
	}

	client := hub.New(hub.Options{
		URL:            cfg.Hub.URL,
		Token:          cfg.Hub.Token,
		UseOAuth:       cfg.Hub.UseOAuth,
		ReconnectDelay: cfg.ReconnectDelay(),
		RequestTimeout: cfg.RequestTimeout(),
		MaxMessageSize: cfg.Hub.MaxMessageSize,
		Dialer:         opts.Dialer,
		Credentials:    opts.Credentials,
		Diagnose:       diag.Probe,
		Logger:         opts.Logger,
	})

	reg := registry.NewManager(registry.Options{
		Client:             client,
		Logger:             opts.Logger,
		OptimisticDuration: optimistic,
	})

	client.SetAuthenticatedHandler(reg.LoadAll)
	client.SetResultHandler(func(frame hub.Frame) {
		reg.HandleResult(frame)
	})
	client.SetStateChangedHandler(reg.HandleStateChange)

	return &Core{
		client:   client,
		reg:      reg,
		services: service.New(client, reg, opts.Logger),
		logger:   opts.Logger,
	}
}

// Configure stores connection parameters without connecting.
func (c *Core) Configure(url, token string, useOAuth bool) {
	c.client.Configure(url, token, useOAuth)
}

// Connect opens the hub connection and starts the sync lifecycle.
func (c *Core) Connect() error { return c.client.Connect() }

// Disconnect tears the connection down without scheduling a reconnect.
func (c *Core) Disconnect() { c.client.Disconnect() }

// IsConnected reports whether the socket is open.
func (c *Core) IsConnected() bool { return c.client.IsConnected() }

// IsAuthenticated reports whether the auth handshake has completed.
func (c *Core) IsAuthenticated() bool { return c.client.IsAuthenticated() }

// OnMessage subscribes to entity snapshot updates; the current snapshot is
// replayed immediately when non-empty. The returned function unsubscribes.
func (c *Core) OnMessage(fn func(map[string]registry.Entity)) func() {
	id := c.reg.OnMessage(fn)
	return func() { c.reg.OffMessage(id) }
}

// OnConnection subscribes to authenticated-state changes; the current
// state is replayed immediately.
func (c *Core) OnConnection(fn func(authenticated bool)) func() {
	id := c.client.OnConnection(fn)
	return func() { c.client.OffConnection(id) }
}

// OnRegistryUpdate subscribes to registry-change notifications.
func (c *Core) OnRegistryUpdate(fn func(registry string)) func() {
	id := c.reg.OnRegistryUpdate(fn)
	return func() { c.reg.OffRegistryUpdate(id) }
}

// OnConnectionError subscribes to classified connection-failure reports.
func (c *Core) OnConnectionError(fn func(diag.Report)) func() {
	id := c.client.OnConnectionError(fn)
	return func() { c.client.OffConnectionError(id) }
}

// AddStateSink registers a sink for authoritative state changes.
func (c *Core) AddStateSink(s registry.StateSink) { c.reg.AddStateSink(s) }

// Entities returns the projected entity snapshot.
func (c *Core) Entities() map[string]registry.Entity { return c.services.Entities.Entities() }

// Entity returns one projected entity.
func (c *Core) Entity(entityID string) (registry.Entity, bool) {
	return c.services.Entities.Entity(entityID)
}

// UpdateEntity updates an entity's registry entry fields.
func (c *Core) UpdateEntity(ctx context.Context, entityID string, updates map[string]any) (registry.EntityEntry, error) {
	return c.services.Entities.UpdateEntity(ctx, entityID, updates)
}

// SetEntityHidden sets the hub-level hidden flag.
func (c *Core) SetEntityHidden(ctx context.Context, entityID string, hidden bool) error {
	return c.services.Entities.SetHidden(ctx, entityID, hidden)
}

// SetEntityHiddenInStuga toggles the app-only hidden marker.
func (c *Core) SetEntityHiddenInStuga(ctx context.Context, entityID string, hidden bool) error {
	return c.services.Entities.SetHiddenInStuga(ctx, entityID, hidden)
}

// CallService invokes a hub service.
func (c *Core) CallService(ctx context.Context, domain, svc string, serviceData map[string]any) error {
	return c.services.Entities.CallService(ctx, domain, svc, serviceData)
}

// SetOptimisticState applies a short-lived local state override.
func (c *Core) SetOptimisticState(entityID, state string, brightness *int) {
	c.services.Entities.SetOptimisticState(entityID, state, brightness)
}

// DeleteScene deletes a scene from the hub and locally.
func (c *Core) DeleteScene(ctx context.Context, entityID string) error {
	return c.services.Entities.DeleteScene(ctx, entityID)
}

// Areas returns the mirrored area registry.
func (c *Core) Areas() map[string]registry.AreaEntry { return c.services.Areas.Areas() }

// CreateArea creates an area on the hub.
func (c *Core) CreateArea(ctx context.Context, name string, fields map[string]any) (registry.AreaEntry, error) {
	return c.services.Areas.CreateArea(ctx, name, fields)
}

// UpdateArea updates an area's fields.
func (c *Core) UpdateArea(ctx context.Context, areaID string, updates map[string]any) (registry.AreaEntry, error) {
	return c.services.Areas.UpdateArea(ctx, areaID, updates)
}

// DeleteArea deletes an area.
func (c *Core) DeleteArea(ctx context.Context, areaID string) error {
	return c.services.Areas.DeleteArea(ctx, areaID)
}

// SetAreaOrder assigns an area's sort order.
func (c *Core) SetAreaOrder(ctx context.Context, areaID string, order int) error {
	return c.services.Areas.SetOrder(ctx, areaID, order)
}

// AreaOrder returns an area's sort order.
func (c *Core) AreaOrder(areaID string) int { return c.services.Areas.Order(areaID) }

// SetAreaTemperatureSensor assigns an area's temperature sensor.
func (c *Core) SetAreaTemperatureSensor(ctx context.Context, areaID, entityID string) error {
	return c.services.Areas.SetTemperatureSensor(ctx, areaID, entityID)
}

// AreaTemperatureSensor returns an area's assigned temperature sensor.
func (c *Core) AreaTemperatureSensor(areaID string) (string, bool) {
	return c.services.Areas.TemperatureSensor(areaID)
}

// UpdateAreaLabels replaces an area's label-reference list.
func (c *Core) UpdateAreaLabels(ctx context.Context, areaID string, labels []string) error {
	return c.services.Areas.UpdateLabels(ctx, areaID, labels)
}

// Floors returns the mirrored floor registry.
func (c *Core) Floors() map[string]registry.FloorEntry { return c.services.Floors.Floors() }

// FloorsOrdered returns the floors sorted by level.
func (c *Core) FloorsOrdered() []registry.FloorEntry { return c.services.Floors.Ordered() }

// CreateFloor creates a floor on the hub.
func (c *Core) CreateFloor(ctx context.Context, name string, fields map[string]any) (registry.FloorEntry, error) {
	return c.services.Floors.CreateFloor(ctx, name, fields)
}

// UpdateFloor updates a floor's fields.
func (c *Core) UpdateFloor(ctx context.Context, floorID string, updates map[string]any) (registry.FloorEntry, error) {
	return c.services.Floors.UpdateFloor(ctx, floorID, updates)
}

// DeleteFloor deletes a floor.
func (c *Core) DeleteFloor(ctx context.Context, floorID string) error {
	return c.services.Floors.DeleteFloor(ctx, floorID)
}

// SetFloorOrder moves a floor to a position in the ordering.
func (c *Core) SetFloorOrder(ctx context.Context, floorID string, index int) error {
	return c.services.Floors.SetOrder(ctx, floorID, index)
}

// SaveFloorOrderBatch applies a full drag-reorder result.
func (c *Core) SaveFloorOrderBatch(ctx context.Context, floorIDs []string) error {
	return c.services.Floors.SaveOrderBatch(ctx, floorIDs)
}

// Labels returns the mirrored label registry.
func (c *Core) Labels() map[string]registry.LabelEntry { return c.services.Labels.Labels() }

// DeleteLabel removes a label and every reference to it.
func (c *Core) DeleteLabel(ctx context.Context, labelID string) error {
	return c.services.Labels.DeleteLabel(ctx, labelID)
}

// UpdateEntityLabels replaces an entity's label-reference list.
func (c *Core) UpdateEntityLabels(ctx context.Context, entityID string, labels []string) error {
	return c.services.Entities.UpdateLabels(ctx, entityID, labels)
}

// HubConfig returns the hub's config response (location name, version).
func (c *Core) HubConfig() map[string]any { return c.reg.Config() }
