package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/stugahq/stuga-core/internal/hub"
)

// Registry list request types consumed from the hub's config API.
const (
	TypeLabelList  = "config/label_registry/list"
	TypeFloorList  = "config/floor_registry/list"
	TypeAreaList   = "config/area_registry/list"
	TypeDeviceList = "config/device_registry/list"
	TypeEntityList = "config/entity_registry/list"
)

// Registry names passed to registry-update subscribers.
const (
	RegistryEntities = "entities"
	RegistryAreas    = "areas"
	RegistryFloors   = "floors"
	RegistryLabels   = "labels"
	RegistryDevices  = "devices"
	RegistryConfig   = "config"
)

// defaultOptimisticDuration applies when Options.OptimisticDuration is zero.
const defaultOptimisticDuration = 5 * time.Second

// Sender is the subset of the hub client the Manager needs for its bulk
// load. Responses arrive through HandleResult, not callbacks.
type Sender interface {
	NextMessageID() int64
	Send(id int64, msgType string, fields map[string]any)
}

// Logger defines the logging interface used by the Manager.
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

// StateSink receives every authoritative entity state change, after the
// mirrored maps have been updated. Implementations must not block.
type StateSink interface {
	RecordEntityState(entityID, state string, attributes map[string]any)
}

// Options configures a Manager.
type Options struct {
	Client Sender
	Logger Logger

	// OptimisticDuration is the lifetime of an optimistic override. When
	// running against a simulated source the caller passes a much longer
	// window, since no authoritative event will arrive to clear it.
	OptimisticDuration time.Duration
}

// Manager mirrors the hub's registries into local memory and keeps them
// current: a post-auth bulk load followed by incremental state_changed
// events. All maps are keyed by the hub's own stable IDs.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Snapshots handed to subscribers are deep enough copies that callers
//     can never mutate the mirrored state.
type Manager struct {
	client        Sender
	logger        Logger
	overrideDur   time.Duration

	mu            sync.Mutex
	entities      map[string]Entity
	entityEntries map[string]EntityEntry
	areas         map[string]AreaEntry
	floors        map[string]FloorEntry
	labels        map[string]LabelEntry
	devices       map[string]DeviceEntry
	config        map[string]any
	entityAreas   map[string]string
	overrides     map[string]*override

	// Outstanding bulk-load request ids. Responses may arrive in any
	// order; each registry routes by its own id.
	reqSubscribe int64
	reqConfig    int64
	reqLabels    int64
	reqFloors    int64
	reqAreas     int64
	reqDevices   int64
	reqEntities  int64
	reqStates    int64

	batchDepth int
	batchDirty map[string]bool

	msgSubs *hub.Subscribers[map[string]Entity]
	regSubs *hub.Subscribers[string]

	sinkMu sync.Mutex
	sinks  []StateSink
}

// NewManager creates an empty Manager ready to load.
func NewManager(opts Options) *Manager {
	m := &Manager{
		client:        opts.Client,
		logger:        opts.Logger,
		overrideDur:   opts.OptimisticDuration,
		entities:      make(map[string]Entity),
		entityEntries: make(map[string]EntityEntry),
		areas:         make(map[string]AreaEntry),
		floors:        make(map[string]FloorEntry),
		labels:        make(map[string]LabelEntry),
		devices:       make(map[string]DeviceEntry),
		entityAreas:   make(map[string]string),
		overrides:     make(map[string]*override),
		batchDirty:    make(map[string]bool),
		msgSubs:       hub.NewSubscribers[map[string]Entity](),
		regSubs:       hub.NewSubscribers[string](),
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.overrideDur <= 0 {
		m.overrideDur = defaultOptimisticDuration
	}
	return m
}

// AddStateSink registers a sink for authoritative state changes.
func (m *Manager) AddStateSink(s StateSink) {
	m.sinkMu.Lock()
	defer m.sinkMu.Unlock()
	m.sinks = append(m.sinks, s)
}

// LoadAll starts the post-auth bulk load: the state_changed subscription
// first, then the six registry requests plus the state snapshot. The hub
// answers in arbitrary order; HandleResult routes each response by id.
func (m *Manager) LoadAll() {
	m.mu.Lock()
	m.reqSubscribe = m.client.NextMessageID()
	m.reqConfig = m.client.NextMessageID()
	m.reqLabels = m.client.NextMessageID()
	m.reqFloors = m.client.NextMessageID()
	m.reqAreas = m.client.NextMessageID()
	m.reqDevices = m.client.NextMessageID()
	m.reqEntities = m.client.NextMessageID()
	m.reqStates = m.client.NextMessageID()

	requests := []struct {
		id      int64
		msgType string
		fields  map[string]any
	}{
		{m.reqSubscribe, hub.TypeSubscribeEvents, map[string]any{"event_type": hub.EventStateChanged}},
		{m.reqConfig, hub.TypeGetConfig, nil},
		{m.reqLabels, TypeLabelList, nil},
		{m.reqFloors, TypeFloorList, nil},
		{m.reqAreas, TypeAreaList, nil},
		{m.reqDevices, TypeDeviceList, nil},
		{m.reqEntities, TypeEntityList, nil},
		{m.reqStates, hub.TypeGetStates, nil},
	}
	m.mu.Unlock()

	m.logger.Info("starting registry bulk load")
	for _, r := range requests {
		m.client.Send(r.id, r.msgType, r.fields)
	}
}

// HandleResult routes a result frame that matched no pending callback. It
// returns true if the frame belonged to an outstanding bulk-load request.
func (m *Manager) HandleResult(frame hub.Frame) bool {
	m.mu.Lock()
	var (
		handler  func(json.RawMessage)
		registry string
	)
	switch frame.ID {
	case 0:
		m.mu.Unlock()
		return false
	case m.reqSubscribe:
		m.reqSubscribe = 0
		m.mu.Unlock()
		if !frame.Ok() {
			m.logger.Error("state subscription rejected", "error", frame.Error)
		}
		return true
	case m.reqConfig:
		m.reqConfig = 0
		handler, registry = m.mergeConfig, RegistryConfig
	case m.reqLabels:
		m.reqLabels = 0
		handler, registry = m.mergeLabels, RegistryLabels
	case m.reqFloors:
		m.reqFloors = 0
		handler, registry = m.mergeFloors, RegistryFloors
	case m.reqAreas:
		m.reqAreas = 0
		handler, registry = m.mergeAreas, RegistryAreas
	case m.reqDevices:
		m.reqDevices = 0
		handler, registry = m.mergeDevices, RegistryDevices
	case m.reqEntities:
		m.reqEntities = 0
		handler, registry = m.mergeEntityEntries, RegistryEntities
	case m.reqStates:
		m.reqStates = 0
		handler, registry = m.mergeStates, ""
	default:
		m.mu.Unlock()
		return false
	}

	if !frame.Ok() {
		m.mu.Unlock()
		m.logger.Error("registry load request failed", "registry", registry, "error", frame.Error)
		return true
	}

	handler(frame.Result)
	m.mu.Unlock()

	if registry != "" {
		m.notifyRegistry(registry)
	}
	m.notifyMessage()
	return true
}

// Merge handlers run with m.mu held. Each upserts by key; responses never
// replace a whole map, so entries absent from one response survive.

func (m *Manager) mergeConfig(raw json.RawMessage) {
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		m.logger.Error("malformed config response", "error", err)
		return
	}
	if m.config == nil {
		m.config = make(map[string]any, len(cfg))
	}
	for k, v := range cfg {
		m.config[k] = v
	}
}

func (m *Manager) mergeLabels(raw json.RawMessage) {
	var labels []LabelEntry
	if err := json.Unmarshal(raw, &labels); err != nil {
		m.logger.Error("malformed label registry response", "error", err)
		return
	}
	for _, l := range labels {
		m.labels[l.LabelID] = l
	}
	m.logger.Debug("label registry merged", "count", len(labels))
}

func (m *Manager) mergeFloors(raw json.RawMessage) {
	var floors []FloorEntry
	if err := json.Unmarshal(raw, &floors); err != nil {
		m.logger.Error("malformed floor registry response", "error", err)
		return
	}
	for _, f := range floors {
		m.floors[f.FloorID] = f
	}
	m.logger.Debug("floor registry merged", "count", len(floors))
}

func (m *Manager) mergeAreas(raw json.RawMessage) {
	var areas []AreaEntry
	if err := json.Unmarshal(raw, &areas); err != nil {
		m.logger.Error("malformed area registry response", "error", err)
		return
	}
	for _, a := range areas {
		m.areas[a.AreaID] = a
	}
	// Area names may have changed; the denormalized projection follows.
	m.resolveEntityAreas(false)
	m.logger.Debug("area registry merged", "count", len(areas))
}

func (m *Manager) mergeDevices(raw json.RawMessage) {
	var devices []DeviceEntry
	if err := json.Unmarshal(raw, &devices); err != nil {
		m.logger.Error("malformed device registry response", "error", err)
		return
	}
	for _, d := range devices {
		m.devices[d.ID] = d
	}
	// Devices may arrive after entities; resolve only entities still
	// unmapped so the device fallback chain completes.
	m.resolveEntityAreas(true)
	m.logger.Debug("device registry merged", "count", len(devices))
}

func (m *Manager) mergeEntityEntries(raw json.RawMessage) {
	var entries []EntityEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		m.logger.Error("malformed entity registry response", "error", err)
		return
	}
	for _, e := range entries {
		m.entityEntries[e.EntityID] = e
	}
	m.resolveEntityAreas(false)
	m.logger.Debug("entity registry merged", "count", len(entries))
}

func (m *Manager) mergeStates(raw json.RawMessage) {
	var states []Entity
	if err := json.Unmarshal(raw, &states); err != nil {
		m.logger.Error("malformed state snapshot", "error", err)
		return
	}
	for _, e := range states {
		// Snapshot data is authoritative; a live override would mask it
		// until expiry.
		m.clearOverrideLocked(e.EntityID)
		m.stampArea(&e)
		m.entities[e.EntityID] = e
	}
	m.logger.Info("state snapshot merged", "count", len(states))
}

// resolveEntityAreas rebuilds the entity_id -> area name projection and
// restamps attributes.area on every live entity. With onlyUnmapped it
// limits work to entities not yet mapped, for out-of-order device arrival.
// Caller must hold m.mu.
func (m *Manager) resolveEntityAreas(onlyUnmapped bool) {
	if !onlyUnmapped {
		m.entityAreas = make(map[string]string, len(m.entityEntries))
	}
	for entityID, entry := range m.entityEntries {
		if onlyUnmapped {
			if _, mapped := m.entityAreas[entityID]; mapped {
				continue
			}
		}
		areaID := entry.AreaID
		if areaID == "" && entry.DeviceID != "" {
			if dev, ok := m.devices[entry.DeviceID]; ok {
				areaID = dev.AreaID
			}
		}
		if areaID == "" {
			continue
		}
		if area, ok := m.areas[areaID]; ok {
			m.entityAreas[entityID] = area.Name
		}
	}

	for entityID, e := range m.entities {
		m.stampArea(&e)
		m.entities[entityID] = e
	}
}

// stampArea writes the denormalized area name into e.Attributes when the
// projection knows one, and removes a stale one when it does not. Caller
// must hold m.mu.
func (m *Manager) stampArea(e *Entity) {
	name, ok := m.entityAreas[e.EntityID]
	if !ok {
		if e.Attributes != nil {
			delete(e.Attributes, "area")
		}
		return
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any, 1)
	}
	e.Attributes["area"] = name
}

// HandleStateChange applies one authoritative state_changed event. A nil
// payload means the entity was removed from the hub. Authoritative state
// always clears any optimistic override for the entity.
func (m *Manager) HandleStateChange(entityID string, newState json.RawMessage) {
	m.mu.Lock()
	m.clearOverrideLocked(entityID)

	if newState == nil {
		delete(m.entities, entityID)
		m.mu.Unlock()
		m.notifyMessage()
		return
	}

	var e Entity
	if err := json.Unmarshal(newState, &e); err != nil {
		m.mu.Unlock()
		m.logger.Warn("malformed state payload", "entity", entityID, "error", err)
		return
	}
	if e.EntityID == "" {
		e.EntityID = entityID
	}
	m.stampArea(&e)
	m.entities[e.EntityID] = e
	state := e.State
	attrs := copyAttributes(e.Attributes)
	m.mu.Unlock()

	m.notifyMessage()

	m.sinkMu.Lock()
	sinks := make([]StateSink, len(m.sinks))
	copy(sinks, m.sinks)
	m.sinkMu.Unlock()
	for _, s := range sinks {
		s.RecordEntityState(entityID, state, attrs)
	}
}

// Snapshot returns a copy of the entity map with live optimistic overrides
// projected in. The mirrored entities are never exposed directly.
func (m *Manager) Snapshot() map[string]Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Entity, len(m.entities))
	for id, e := range m.entities {
		out[id] = m.projectLocked(e)
	}
	return out
}

// Entity returns one entity with any live override projected in.
func (m *Manager) Entity(entityID string) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entityID]
	if !ok {
		return Entity{}, false
	}
	return m.projectLocked(e), true
}

// EntityEntry returns one entity registry entry.
func (m *Manager) EntityEntry(entityID string) (EntityEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entityEntries[entityID]
	if !ok {
		return EntityEntry{}, false
	}
	return e.clone(), true
}

// Areas returns a copy of the area registry.
func (m *Manager) Areas() map[string]AreaEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]AreaEntry, len(m.areas))
	for id, a := range m.areas {
		out[id] = a.clone()
	}
	return out
}

// Area returns one area registry entry.
func (m *Manager) Area(areaID string) (AreaEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.areas[areaID]
	if !ok {
		return AreaEntry{}, false
	}
	return a.clone(), true
}

// Floors returns a copy of the floor registry.
func (m *Manager) Floors() map[string]FloorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]FloorEntry, len(m.floors))
	for id, f := range m.floors {
		out[id] = f
	}
	return out
}

// Floor returns one floor registry entry.
func (m *Manager) Floor(floorID string) (FloorEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.floors[floorID]
	return f, ok
}

// Labels returns a copy of the label registry.
func (m *Manager) Labels() map[string]LabelEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]LabelEntry, len(m.labels))
	for id, l := range m.labels {
		out[id] = l
	}
	return out
}

// Label returns one label registry entry.
func (m *Manager) Label(labelID string) (LabelEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labels[labelID]
	return l, ok
}

// LabelByName returns the label with an exact name match, if any.
func (m *Manager) LabelByName(name string) (LabelEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.labels {
		if l.Name == name {
			return l, true
		}
	}
	return LabelEntry{}, false
}

// Config returns a copy of the hub config response.
func (m *Manager) Config() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyAttributes(m.config)
}

// AreaNameFor returns the resolved area name for an entity, if mapped.
func (m *Manager) AreaNameFor(entityID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.entityAreas[entityID]
	return name, ok
}

// ApplyAreaUpdate upserts an area entry and restamps the denormalized
// projection (area renames must reach attributes.area).
func (m *Manager) ApplyAreaUpdate(area AreaEntry) {
	m.mu.Lock()
	m.areas[area.AreaID] = area.clone()
	m.resolveEntityAreas(false)
	m.mu.Unlock()
	m.notifyRegistry(RegistryAreas)
	m.notifyMessage()
}

// DeleteArea removes an area and drops it from the projection.
func (m *Manager) DeleteArea(areaID string) {
	m.mu.Lock()
	delete(m.areas, areaID)
	m.resolveEntityAreas(false)
	m.mu.Unlock()
	m.notifyRegistry(RegistryAreas)
	m.notifyMessage()
}

// ApplyFloorUpdate upserts a floor entry.
func (m *Manager) ApplyFloorUpdate(floor FloorEntry) {
	m.mu.Lock()
	m.floors[floor.FloorID] = floor
	m.mu.Unlock()
	m.notifyRegistry(RegistryFloors)
}

// DeleteFloor removes a floor and clears references from areas on it.
func (m *Manager) DeleteFloor(floorID string) {
	m.mu.Lock()
	delete(m.floors, floorID)
	for id, a := range m.areas {
		if a.FloorID == floorID {
			a.FloorID = ""
			m.areas[id] = a
		}
	}
	m.mu.Unlock()
	m.notifyRegistry(RegistryFloors)
}

// ApplyLabelUpdate upserts a label entry.
func (m *Manager) ApplyLabelUpdate(label LabelEntry) {
	m.mu.Lock()
	m.labels[label.LabelID] = label
	m.mu.Unlock()
	m.notifyRegistry(RegistryLabels)
}

// DeleteLabel removes a label and strips every reference to it from area
// and entity registry entries.
func (m *Manager) DeleteLabel(labelID string) {
	m.mu.Lock()
	delete(m.labels, labelID)
	for id, a := range m.areas {
		if stripped, changed := removeRef(a.Labels, labelID); changed {
			a.Labels = stripped
			m.areas[id] = a
		}
	}
	for id, e := range m.entityEntries {
		if stripped, changed := removeRef(e.Labels, labelID); changed {
			e.Labels = stripped
			m.entityEntries[id] = e
		}
	}
	m.mu.Unlock()
	m.notifyRegistry(RegistryLabels)
}

// ApplyEntityEntryUpdate upserts an entity registry entry and refreshes the
// area projection for it.
func (m *Manager) ApplyEntityEntryUpdate(entry EntityEntry) {
	m.mu.Lock()
	m.entityEntries[entry.EntityID] = entry.clone()
	m.resolveEntityAreas(false)
	m.mu.Unlock()
	m.notifyRegistry(RegistryEntities)
	m.notifyMessage()
}

// RemoveEntity drops an entity's runtime state, registry entry, and any
// override, then notifies message subscribers.
func (m *Manager) RemoveEntity(entityID string) {
	m.mu.Lock()
	m.clearOverrideLocked(entityID)
	delete(m.entities, entityID)
	delete(m.entityEntries, entityID)
	delete(m.entityAreas, entityID)
	m.mu.Unlock()
	m.notifyRegistry(RegistryEntities)
	m.notifyMessage()
}

func removeRef(refs []string, id string) ([]string, bool) {
	out := refs[:0:0]
	changed := false
	for _, r := range refs {
		if r == id {
			changed = true
			continue
		}
		out = append(out, r)
	}
	return out, changed
}

// OnMessage subscribes to entity snapshot notifications. The current
// snapshot is replayed immediately if non-empty.
func (m *Manager) OnMessage(fn func(map[string]Entity)) string {
	id := m.msgSubs.Add(fn)
	if snap := m.Snapshot(); len(snap) > 0 {
		fn(snap)
	}
	return id
}

// OffMessage removes a message subscriber.
func (m *Manager) OffMessage(id string) {
	m.msgSubs.Remove(id)
}

// OnRegistryUpdate subscribes to registry-change notifications; the value
// names the registry that changed.
func (m *Manager) OnRegistryUpdate(fn func(registry string)) string {
	return m.regSubs.Add(fn)
}

// OffRegistryUpdate removes a registry subscriber.
func (m *Manager) OffRegistryUpdate(id string) {
	m.regSubs.Remove(id)
}

// Batch suppresses registry notifications while fn runs, then fires one
// notification per registry that changed. Used by drag-reorder batches.
func (m *Manager) Batch(fn func()) {
	m.mu.Lock()
	m.batchDepth++
	m.mu.Unlock()

	fn()

	m.mu.Lock()
	m.batchDepth--
	var dirty []string
	if m.batchDepth == 0 {
		for name := range m.batchDirty {
			dirty = append(dirty, name)
		}
		m.batchDirty = make(map[string]bool)
	}
	m.mu.Unlock()

	for _, name := range dirty {
		m.regSubs.Notify(name)
	}
}

func (m *Manager) notifyRegistry(name string) {
	m.mu.Lock()
	if m.batchDepth > 0 {
		m.batchDirty[name] = true
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.regSubs.Notify(name)
}

func (m *Manager) notifyMessage() {
	m.msgSubs.Notify(m.Snapshot())
}
