package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBankCounters writes one bank's connection counters.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Counters are cumulative since bridge start, so rate() style queries
// apply on the InfluxDB side.
//
// Parameters:
//   - bankID: Bank identifier (e.g., "hall")
//   - connected: Whether the TCP link to the gateway is up
//   - framesRx: Frames received since start
//   - bytesTx: Bytes sent since start
//   - reconnects: Successful reconnects since start
//   - errs: Send and decode errors since start
func (c *Client) WriteBankCounters(bankID string, connected bool, framesRx, bytesTx, reconnects, errs uint64) {
	if !c.IsConnected() {
		return
	}

	connectedValue := 0
	if connected {
		connectedValue = 1
	}

	point := write.NewPoint(
		"rs485_bank",
		map[string]string{
			"bank": bankID,
		},
		// #nosec G115 -- counters stay far below int64 range
		map[string]interface{}{
			"connected":  connectedValue,
			"frames_rx":  int64(framesRx),
			"bytes_tx":   int64(bytesTx),
			"reconnects": int64(reconnects),
			"errors":     int64(errs),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStateChange writes one device state change.
//
// Boolean and numeric state values are recorded as fields; everything
// else is stringified. This keeps switch on/off transitions and cover
// positions queryable without a schema per device type.
//
// Parameters:
//   - deviceID: Device identifier (e.g., "hall-3")
//   - deviceType: Device category (switch, cover)
//   - state: State snapshot as published on MQTT
func (c *Client) WriteStateChange(deviceID, deviceType string, state map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]interface{}, len(state))
	for key, value := range state {
		switch v := value.(type) {
		case bool:
			if v {
				fields[key] = 1
			} else {
				fields[key] = 0
			}
		case int:
			fields[key] = int64(v)
		case int64, float64, string:
			fields[key] = v
		default:
			continue
		}
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id":   deviceID,
			"device_type": deviceType,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
