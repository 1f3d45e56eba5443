package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementComponentProgress = "component_progress"
	measurementMessages          = "mqtt_messages"
)

// WriteComponentProgress records a component state report.
//
// Tags: component, status. Fields: current_layer, total_layers, progress.
//
// Example:
//
//	client.WriteComponentProgress("bracket", "printing", 40, 120, 33)
func (c *Client) WriteComponentProgress(component, status string, currentLayer, totalLayers, progress int) {
	c.WritePoint(measurementComponentProgress,
		map[string]string{
			"component": component,
			"status":    status,
		},
		map[string]any{
			"current_layer": currentLayer,
			"total_layers":  totalLayers,
			"progress":      progress,
		},
	)
}

// WriteMessage counts one MQTT message in the given direction.
//
// Tags: topic, direction. Fields: bytes.
func (c *Client) WriteMessage(topic, direction string, size int) {
	c.WritePoint(measurementMessages,
		map[string]string{
			"topic":     topic,
			"direction": direction,
		},
		map[string]any{"bytes": size},
	)
}

// WritePoint writes a point stamped now. It is dropped when the client is
// closed.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, c.now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
