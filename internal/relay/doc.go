// Package relay is an optional MQTT sink that republishes authoritative
// entity state changes to stuga/state/<entity_id> as retained JSON, so
// other home systems can consume live state without speaking the hub's
// WebSocket protocol. A retained status message on stuga/system/status
// tracks the relay's own liveness, with a Last Will for crash detection.
package relay
