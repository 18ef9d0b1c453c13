// Package influxdb writes climate telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//
//   - climate: one point per published state (bridge_id, mode, fan_mode and
//     preset tags; current/target temperature and on fields)
//   - bridge_stats: periodic protocol and lock counters
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteClimateState("lounge", state)
//
// Writes are non-blocking and batched per batch_size and flush_interval.
// Async write errors are delivered to the SetOnError callback.
package influxdb
