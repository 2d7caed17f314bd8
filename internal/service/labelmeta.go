package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stugahq/stuga-core/internal/registry"
)

// Labels are the hub's only generic tagging mechanism, so typed metadata is
// smuggled into reserved label-name prefixes. The encoding is part of the
// wire contract with existing installs and must not change.
const (
	// orderPrefix labels carry a zero-padded sort order, e.g.
	// "stuga_order_0030".
	orderPrefix = "stuga_order_"

	// tempPrefix labels carry the entity id of an area's temperature
	// sensor, e.g. "stuga_temp_sensor.kitchen_temp".
	tempPrefix = "stuga_temp_"

	// hiddenLabel marks an entity as hidden in this app only, leaving the
	// hub-level hidden flag untouched.
	hiddenLabel = "stuga_hidden"
)

// OrderStride is the gap between consecutive explicit order values, leaving
// room to insert between two items without renumbering everything.
const OrderStride = 10

// OrderUnassigned is the sort value for items with no order label; it sorts
// after every explicit order.
const OrderUnassigned = 1 << 30

func orderLabelName(order int) string {
	return fmt.Sprintf("%s%04d", orderPrefix, order)
}

func parseOrderLabel(name string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, orderPrefix)
	if !ok {
		return 0, false
	}
	order, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return order, true
}

func tempLabelName(entityID string) string {
	return tempPrefix + entityID
}

func parseTempLabel(name string) (string, bool) {
	return strings.CutPrefix(name, tempPrefix)
}

// replaceMetaLabel returns a label-reference list with any label of the
// given name prefix removed and newLabelID appended. Labels of other
// prefixes, and plain labels, are preserved. An empty newLabelID just
// removes. Label ids resolve to names through the mirrored label registry.
func replaceMetaLabel(reg *registry.Manager, refs []string, prefix, newLabelID string) []string {
	out := make([]string, 0, len(refs)+1)
	for _, id := range refs {
		if id == newLabelID {
			continue
		}
		if label, ok := reg.Label(id); ok && strings.HasPrefix(label.Name, prefix) {
			continue
		}
		out = append(out, id)
	}
	if newLabelID != "" {
		out = append(out, newLabelID)
	}
	return out
}

// findMetaLabel returns the first referenced label whose name carries the
// given prefix.
func findMetaLabel(reg *registry.Manager, refs []string, prefix string) (registry.LabelEntry, bool) {
	for _, id := range refs {
		if label, ok := reg.Label(id); ok && strings.HasPrefix(label.Name, prefix) {
			return label, true
		}
	}
	return registry.LabelEntry{}, false
}

// hasLabelRef reports whether refs contains labelID.
func hasLabelRef(refs []string, labelID string) bool {
	for _, id := range refs {
		if id == labelID {
			return true
		}
	}
	return false
}
