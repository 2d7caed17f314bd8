// Package service implements the typed read/write operations over the
// mirrored registries: entities, areas, floors, and labels.
//
// Mutators follow one of two patterns:
//
//   - Await-confirmed (creates, deletes, core field updates): send the RPC,
//     merge the hub's echo into the local registry with the caller's
//     intended fields re-applied, then notify. On failure local state is
//     left untouched.
//   - Optimistic-fire-and-rollback (label-based hide/show): mutate and
//     notify before the round trip, restore the prior label list and
//     re-notify only on failure.
//
// Sort order, temperature-sensor selection, and the app-only hidden marker
// are encoded as label names with reserved prefixes, since labels are the
// hub's only generic tagging mechanism. See labelmeta.go for the encoding.
package service
