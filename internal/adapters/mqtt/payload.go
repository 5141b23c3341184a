package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/airrisk/internal/domain/model"
)

// ErrInvalidPayload is returned for messages that are not a sensor reading.
var ErrInvalidPayload = errors.New("invalid sensor payload")

// deviceTimeLayout is the local timestamp format sent by the device firmware.
const deviceTimeLayout = "2006-01-02 15:04:05"

// Payload is the JSON body published by sensor devices. Metrics are pointers
// so an omitted metric stays absent rather than reading as zero.
type Payload struct {
	DeviceID    string   `json:"device_id"`
	SensorID    string   `json:"sensorId,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	CO2         *float64 `json:"co2,omitempty"`
	VOC         *float64 `json:"voc,omitempty"`
	PM25        *float64 `json:"pm25,omitempty"`
	PM10        *float64 `json:"pm10,omitempty"`
}

// ParsePayload decodes a device message into a reading. The sensor id comes
// from device_id, or sensorId when device_id is empty. Timestamps may be
// RFC 3339 or the device layout (taken as UTC); a missing timestamp is left
// zero for the engine to stamp.
func ParsePayload(data []byte) (model.SensorReading, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.SensorReading{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	id := strings.TrimSpace(p.DeviceID)
	if id == "" {
		id = strings.TrimSpace(p.SensorID)
	}

	var ts time.Time
	if s := strings.TrimSpace(p.Timestamp); s != "" {
		var err error
		if ts, err = time.Parse(time.RFC3339Nano, s); err != nil {
			if ts, err = time.ParseInLocation(deviceTimeLayout, s, time.UTC); err != nil {
				return model.SensorReading{}, fmt.Errorf("%w: timestamp %q", ErrInvalidPayload, s)
			}
		}
	}

	values := make(map[model.Metric]float64, 6)
	for m, v := range map[model.Metric]*float64{
		model.Temperature: p.Temperature,
		model.Humidity:    p.Humidity,
		model.CO2:         p.CO2,
		model.VOC:         p.VOC,
		model.PM25:        p.PM25,
		model.PM10:        p.PM10,
	} {
		if v != nil {
			values[m] = *v
		}
	}
	return model.NewReading(id, ts, values), nil
}
