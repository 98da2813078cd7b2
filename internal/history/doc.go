// Package history records device state transitions in SQLite.
//
// Every state change the bridge publishes is also appended to a local
// state_history table. The local trail survives MQTT and InfluxDB
// outages and answers "what did this relay do last night" without any
// external service.
//
// Entries store the full state snapshot as JSON with a UUID primary
// key and UTC timestamps. Queries return newest first with a clamped
// limit.
package history
