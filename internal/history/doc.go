// Package history keeps a local record of climate state changes in SQLite.
//
// Every state the bridge publishes, and every accepted control request, is
// stored as a JSON snapshot in the climate_history table. The record
// survives InfluxDB outages and backs the /api/v1/climate/history endpoint
// and the history command.
//
// Recorder decouples the write from the publish path: Observe never
// blocks, and a single goroutine drains snapshots into the Store.
package history
