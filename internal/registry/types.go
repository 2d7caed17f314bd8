package registry

// Entity is the live runtime state of one entity, keyed by entity_id.
// Attributes carries the hub's open attribute map plus a denormalized
// "area" name maintained by the Manager.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed,omitempty"`
	LastUpdated string         `json:"last_updated,omitempty"`
}

// EntityEntry is the structural registry record for an entity, independent
// from its runtime state. HiddenBy is a pointer so the hub's null (visible)
// survives a round trip distinct from "user".
type EntityEntry struct {
	EntityID       string   `json:"entity_id"`
	Name           string   `json:"name,omitempty"`
	Icon           string   `json:"icon,omitempty"`
	AreaID         string   `json:"area_id,omitempty"`
	DeviceID       string   `json:"device_id,omitempty"`
	HiddenBy       *string  `json:"hidden_by"`
	EntityCategory string   `json:"entity_category,omitempty"`
	Labels         []string `json:"labels,omitempty"`
}

// Hidden reports whether the hub-level hidden flag is set.
func (e EntityEntry) Hidden() bool {
	return e.HiddenBy != nil && *e.HiddenBy != ""
}

// AreaEntry is one area registry record, keyed by area_id.
type AreaEntry struct {
	AreaID  string   `json:"area_id"`
	Name    string   `json:"name"`
	FloorID string   `json:"floor_id,omitempty"`
	Icon    string   `json:"icon,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

// FloorEntry is one floor registry record. Level doubles as sort order.
type FloorEntry struct {
	FloorID string `json:"floor_id"`
	Name    string `json:"name"`
	Icon    string `json:"icon,omitempty"`
	Level   int    `json:"level"`
}

// LabelEntry is one label registry record. Labels are the hub's generic
// tagging mechanism; reserved name prefixes carry typed metadata.
type LabelEntry struct {
	LabelID string `json:"label_id"`
	Name    string `json:"name"`
	Icon    string `json:"icon,omitempty"`
	Color   string `json:"color,omitempty"`
}

// DeviceEntry is the minimal device registry record needed for the
// entity -> device -> area fallback chain.
type DeviceEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	AreaID string `json:"area_id,omitempty"`
}

// copyLabels returns an independent copy of a label-reference list.
func copyLabels(labels []string) []string {
	if labels == nil {
		return nil
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// copyAttributes returns an independent copy of an attribute map.
func copyAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// clone returns an Entity whose attribute map is independent of the
// original, safe to hand to subscribers or mutate for projection.
func (e Entity) clone() Entity {
	e.Attributes = copyAttributes(e.Attributes)
	return e
}

// clone returns an EntityEntry with an independent label list.
func (e EntityEntry) clone() EntityEntry {
	e.Labels = copyLabels(e.Labels)
	if e.HiddenBy != nil {
		hidden := *e.HiddenBy
		e.HiddenBy = &hidden
	}
	return e
}

// clone returns an AreaEntry with an independent label list.
func (a AreaEntry) clone() AreaEntry {
	a.Labels = copyLabels(a.Labels)
	return a
}
