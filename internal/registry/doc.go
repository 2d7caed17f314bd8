// Package registry mirrors the hub's registries into local memory and
// keeps them current.
//
// After each successful authentication the Manager subscribes to the
// state_changed event stream, then issues the six registry list/get
// requests plus a full state snapshot. Each request is tracked by its own
// outstanding id so responses route correctly in arbitrary order. Responses
// merge by key; a whole map is never replaced, so entries absent from one
// response survive.
//
// The Manager also maintains two derived views:
//
//   - entityAreas: entity_id -> resolved area name, via the entity's direct
//     area assignment or its device's area. Recomputed on area renames,
//     entity reassignment, and out-of-order registry loads, and stamped
//     onto every live entity as attributes["area"].
//   - Optimistic overrides: a short-lived state overlay per entity, applied
//     as a read-time projection on copies. Authoritative events always win.
//
// Consumers subscribe through OnMessage (entity snapshots, replayed on
// subscribe when non-empty) and OnRegistryUpdate (registry names). Domain
// services mutate the mirrors only through the Apply*/Delete* methods,
// which notify subscribers after each change.
package registry
