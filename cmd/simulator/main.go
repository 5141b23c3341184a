package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/airrisk/internal/adapters/mqtt"
	"github.com/okian/airrisk/internal/simulator"
)

// Default configuration constants.
const (
	defaultSensors    = 5
	defaultReadings   = 100
	defaultSpikeRatio = 0.1
	defaultRate       = 50
	defaultTimeout    = 10 * time.Second
	defaultRunTimeout = 30 * time.Minute
)

func main() {
	var (
		transport = flag.String("transport", simulator.TransportHTTP, "http or mqtt")
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		endpoint  = flag.String("endpoint", simulator.EndpointAssess, "/assess or /readings")
		broker    = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
		topic     = flag.String("topic", mqtt.DefaultTopic, "MQTT topic")
		sensors   = flag.Int("sensors", defaultSensors, "Number of simulated sensors")
		readings  = flag.Int("readings", defaultReadings, "Readings per sensor")
		spikes    = flag.Float64("spikes", defaultSpikeRatio, "Share of readings generated as pollution spikes")
		rps       = flag.Float64("rate", defaultRate, "Readings per second, 0 for unpaced")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of concurrent publishers")
		timeout   = flag.Duration("timeout", defaultTimeout, "Request timeout")
		output    = flag.String("output", "", "Write generated readings to this JSON file")
		logFile   = flag.String("log", "", "Log file (default: simulation_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Log every published reading")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := simulator.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulator.Config{
		Transport:  *transport,
		BaseURL:    *baseURL,
		Endpoint:   *endpoint,
		Broker:     *broker,
		Topic:      *topic,
		Sensors:    *sensors,
		Readings:   *readings,
		SpikeRatio: *spikes,
		Rate:       *rps,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *output,
		Verbose:    *verbose,
	}

	if err := simulator.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
