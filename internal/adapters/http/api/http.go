// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/model"
)

// Defaults for request limits.
const (
	DefaultBatchLimit = 500
	DefaultAlertLimit = 50
	MaxAlertLimit     = 1000
	maxBodyBytes      = 4 << 20
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Assess runs the full pipeline for one reading; cached reports a memo hit.
	Assess(ctx context.Context, r model.SensorReading) (res engine.Result, cached bool, err error)
	// AssessBatch scores readings together; per-reading failures are in the results.
	AssessBatch(ctx context.Context, rs []model.SensorReading) ([]engine.BatchResult, error)
	// Enqueue submits a reading for asynchronous assessment.
	Enqueue(ctx context.Context, r model.SensorReading) error

	ListAlerts(ctx context.Context, sensorID string, limit int) ([]model.AlertEvent, error)
	ResolveAlert(ctx context.Context, id string) (model.AlertEvent, error)

	// Model reports the active strategy and the loaded artifacts.
	Model() ModelInfo
}

// ModelInfo is the body of GET /model.
type ModelInfo struct {
	Strategy string      `json:"strategy"`
	Policy   string      `json:"policy"`
	Registry engine.Info `json:"registry"`
	Channels []string    `json:"channels"`
}

// Option configures the Server.
type Option func(*Server)

// WithAlertStream mounts h at /alerts/stream.
func WithAlertStream(h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.stream = h
		}
	}
}

// WithBatchLimit caps the readings accepted by POST /assess/batch.
func WithBatchLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithIngestRate limits POST /readings to rps requests per second.
func WithIngestRate(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.ingestRate, s.ingestBurst = rps, burst
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	assessHandler    *AssessHandler
	readingsHandler  *ReadingsHandler
	alertsHandler    *AlertsHandler
	modelHandler     *ModelHandler
	dashboardHandler *dashboardHandler

	stream      http.Handler
	batchLimit  int
	ingestRate  float64
	ingestBurst int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{batchLimit: DefaultBatchLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.assessHandler = NewAssessHandler(deps, s.batchLimit)
	s.readingsHandler = NewReadingsHandler(deps, s.ingestRate, s.ingestBurst)
	s.alertsHandler = NewAlertsHandler(deps)
	s.modelHandler = NewModelHandler(deps)
	s.dashboardHandler = newDashboardHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /model", MetricsMiddleware(s.modelHandler.HandleModel, "model"))
	mux.HandleFunc("POST /assess", MetricsMiddleware(s.assessHandler.HandleAssess, "assess"))
	mux.HandleFunc("POST /assess/batch", MetricsMiddleware(s.assessHandler.HandleBatch, "assess_batch"))
	mux.HandleFunc("POST /readings", MetricsMiddleware(s.readingsHandler.HandlePostReading, "readings"))
	mux.HandleFunc("GET /alerts", MetricsMiddleware(s.alertsHandler.HandleList, "alerts"))
	mux.HandleFunc("POST /alerts/{id}/resolve", MetricsMiddleware(s.alertsHandler.HandleResolve, "alerts_resolve"))
	if s.stream != nil {
		mux.Handle("GET /alerts/stream", s.stream)
	}
}

// readingRequest is the JSON shape of a sensor reading. Metrics are pointers
// so an omitted metric stays absent.
type readingRequest struct {
	SensorID    string   `json:"sensorId"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	CO2         *float64 `json:"co2,omitempty"`
	VOC         *float64 `json:"voc,omitempty"`
	PM25        *float64 `json:"pm25,omitempty"`
	PM10        *float64 `json:"pm10,omitempty"`
}

// reading converts the request. A missing timestamp is left zero for the
// engine to stamp; a present one must be RFC 3339.
func (q readingRequest) reading() (model.SensorReading, error) {
	var ts time.Time
	if q.Timestamp != "" {
		var err error
		if ts, err = time.Parse(time.RFC3339Nano, q.Timestamp); err != nil {
			return model.SensorReading{}, errInvalidTimestamp
		}
	}
	values := make(map[model.Metric]float64, 6)
	for m, v := range map[model.Metric]*float64{
		model.Temperature: q.Temperature,
		model.Humidity:    q.Humidity,
		model.CO2:         q.CO2,
		model.VOC:         q.VOC,
		model.PM25:        q.PM25,
		model.PM10:        q.PM10,
	} {
		if v != nil {
			values[m] = *v
		}
	}
	return model.NewReading(q.SensorID, ts, values), nil
}

type ackResponse struct {
	Status   string `json:"status"`
	SensorID string `json:"sensorId"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status of its kind.
func fail(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeError(w, status, code, err)
}
