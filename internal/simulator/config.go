package simulator

import (
	"errors"
	"fmt"
	"time"
)

// Publishing transports.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// HTTP endpoints a publisher can target.
const (
	EndpointAssess   = "/assess"
	EndpointReadings = "/readings"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid simulator config")

// Config holds configuration for a simulation run.
type Config struct {
	Transport  string        // http or mqtt
	BaseURL    string        // service base URL (http)
	Endpoint   string        // /assess (synchronous) or /readings (queued)
	Broker     string        // broker URL (mqtt)
	Topic      string        // publish topic (mqtt)
	Sensors    int           // number of simulated sensors
	Readings   int           // readings per sensor
	SpikeRatio float64       // share of readings generated as pollution spikes
	Rate       float64       // readings per second across all sensors; 0 is unpaced
	Workers    int           // concurrent publishers
	Timeout    time.Duration // per-request timeout
	OutputFile string        // optional JSON dump of generated readings
	Verbose    bool          // log every outcome
}

// Total returns the number of readings the run will publish.
func (c *Config) Total() int { return c.Sensors * c.Readings }

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Transport != TransportHTTP && c.Transport != TransportMQTT:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	case c.Transport == TransportHTTP && c.BaseURL == "":
		return fmt.Errorf("%w: base URL required for http", ErrInvalidConfig)
	case c.Transport == TransportHTTP && c.Endpoint != EndpointAssess && c.Endpoint != EndpointReadings:
		return fmt.Errorf("%w: endpoint must be %s or %s", ErrInvalidConfig, EndpointAssess, EndpointReadings)
	case c.Transport == TransportMQTT && c.Broker == "":
		return fmt.Errorf("%w: broker required for mqtt", ErrInvalidConfig)
	case c.Sensors <= 0 || c.Readings <= 0:
		return fmt.Errorf("%w: sensors and readings must be positive", ErrInvalidConfig)
	case c.SpikeRatio < 0 || c.SpikeRatio > 1:
		return fmt.Errorf("%w: spike ratio must be in [0,1]", ErrInvalidConfig)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// Reading is one generated sensor reading in the API's JSON shape.
type Reading struct {
	SensorID    string    `json:"sensorId"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CO2         float64   `json:"co2"`
	VOC         float64   `json:"voc"`
	PM25        float64   `json:"pm25"`
	PM10        float64   `json:"pm10"`
	Spike       bool      `json:"-"`
}

// Outcome is what the service reported for one published reading. Transports
// without a response body leave RiskLevel empty.
type Outcome struct {
	Accepted  bool
	RiskLevel string
	Alerts    int
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Spikes     int
	Published  int
	Accepted   int
	Failed     int
	Alerts     int
	RiskLevels map[string]int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
