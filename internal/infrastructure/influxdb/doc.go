// Package influxdb records printer telemetry in InfluxDB v2.
//
// It wraps influxdb-client-go with connection checks, non-blocking batched
// writes and two printwatch measurements:
//   - component_progress: layer counts and percentage per component report
//   - mqtt_messages: message sizes per topic and direction
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	switch {
//	case errors.Is(err, influxdb.ErrDisabled):
//	    // telemetry off
//	case err != nil:
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteComponentProgress("bracket", "printing", 40, 120, 33)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Batch size and flush interval
// come from config.yaml (batch_size, flush_interval).
package influxdb
