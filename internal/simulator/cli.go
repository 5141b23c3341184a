// Package simulator generates air-quality sensor readings and publishes them
// to the risk service over HTTP or MQTT, summarising what the service decided.
package simulator

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/airrisk/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initialises the logger to write to stdout and a log file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "simulation_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`AirRisk Sensor Simulator
========================

Generates readings for a fleet of simulated air-quality sensors, mixing
normal indoor conditions with pollution spikes, and publishes them to the
risk service.

Usage:
  go run ./cmd/simulator [options]

Options:
  -transport string
        http or mqtt (default "http")
  -url string
        Base URL of the service (default "http://localhost:9080")
  -endpoint string
        /assess (synchronous, risk summary) or /readings (queued) (default "/assess")
  -broker string
        MQTT broker URL (default "tcp://localhost:1883")
  -topic string
        MQTT topic (default "airaware/sensors")
  -sensors int
        Number of simulated sensors (default 5)
  -readings int
        Readings per sensor (default 100)
  -spikes float
        Share of readings generated as pollution spikes (default 0.1)
  -rate float
        Readings per second across all sensors, 0 for unpaced (default 50)
  -workers int
        Number of concurrent publishers (default CPU cores)
  -timeout duration
        Request timeout (default 10s)
  -output string
        Write generated readings to this JSON file
  -log string
        Log file (default: simulation_TIMESTAMP.log)
  -verbose
        Log every published reading
  -help
        Show this help message

Examples:
  # Assess 500 readings synchronously and summarise risk levels
  go run ./cmd/simulator -sensors 5 -readings 100

  # Feed the async queue with a spiky fleet
  go run ./cmd/simulator -endpoint /readings -spikes 0.3 -rate 200

  # Publish device payloads to the MQTT listener
  go run ./cmd/simulator -transport mqtt -broker tcp://localhost:1883
`)
}
