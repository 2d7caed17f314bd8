package registry

import "time"

// override is an ephemeral local state overlay for one entity. It is never
// persisted and always loses to the next authoritative event.
type override struct {
	state      string
	brightness *int
	expiresAt  time.Time
	timer      *time.Timer
}

// SetOptimistic stores an optimistic override for an entity and notifies
// message subscribers immediately, so the UI reflects the change before the
// RPC round trip completes. A new override supersedes any existing one.
// The override self-expires after the configured duration.
func (m *Manager) SetOptimistic(entityID, state string, brightness *int) {
	m.mu.Lock()
	m.clearOverrideLocked(entityID)
	m.overrides[entityID] = &override{
		state:      state,
		brightness: brightness,
		expiresAt:  time.Now().Add(m.overrideDur),
		timer: time.AfterFunc(m.overrideDur, func() {
			m.expireOverride(entityID)
		}),
	}
	m.mu.Unlock()

	m.notifyMessage()
}

// ClearOptimistic removes any override for an entity without notifying.
func (m *Manager) ClearOptimistic(entityID string) {
	m.mu.Lock()
	m.clearOverrideLocked(entityID)
	m.mu.Unlock()
}

// expireOverride runs when an override's timer fires: the override is
// dropped and subscribers see the underlying authoritative state again.
func (m *Manager) expireOverride(entityID string) {
	m.mu.Lock()
	o, ok := m.overrides[entityID]
	if !ok || time.Now().Before(o.expiresAt) {
		// Already cleared, or superseded by a newer override.
		m.mu.Unlock()
		return
	}
	delete(m.overrides, entityID)
	m.mu.Unlock()

	m.notifyMessage()
}

// clearOverrideLocked stops and removes an entity's override. Caller must
// hold m.mu.
func (m *Manager) clearOverrideLocked(entityID string) {
	if o, ok := m.overrides[entityID]; ok {
		o.timer.Stop()
		delete(m.overrides, entityID)
	}
}

// projectLocked returns a copy of e with any live override substituted in.
// The stored entity is never mutated by an override. Caller must hold m.mu.
func (m *Manager) projectLocked(e Entity) Entity {
	out := e.clone()
	o, ok := m.overrides[e.EntityID]
	if !ok || time.Now().After(o.expiresAt) {
		return out
	}
	out.State = o.state
	if o.brightness != nil {
		if out.Attributes == nil {
			out.Attributes = make(map[string]any, 1)
		}
		out.Attributes["brightness"] = *o.brightness
	}
	return out
}
