// Package telemetry is an optional state-history sink backed by InfluxDB.
//
// When enabled, the client is registered as a state sink on the registry
// manager; every authoritative entity state change is recorded as an
// entity_state point, tagged by entity id and domain. Writes are batched
// and non-blocking, so a slow or unavailable InfluxDB never stalls the sync
// loop.
package telemetry
