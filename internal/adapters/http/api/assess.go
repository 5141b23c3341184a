package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/model"
)

// AssessDependencies defines the operations behind the assessment routes.
type AssessDependencies interface {
	Assess(ctx context.Context, r model.SensorReading) (engine.Result, bool, error)
	AssessBatch(ctx context.Context, rs []model.SensorReading) ([]engine.BatchResult, error)
}

// AssessHandler handles synchronous assessments.
type AssessHandler struct {
	deps       AssessDependencies
	batchLimit int
}

// NewAssessHandler creates a new assess handler.
func NewAssessHandler(deps AssessDependencies, batchLimit int) *AssessHandler {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	return &AssessHandler{deps: deps, batchLimit: batchLimit}
}

type assessDetails struct {
	SensorID        string             `json:"sensorId"`
	Timestamp       time.Time          `json:"timestamp"`
	AnomalySource   model.Source       `json:"anomaly_source"`
	AQISource       model.Source       `json:"aqi_source"`
	Policy          string             `json:"policy"`
	OverrideApplied bool               `json:"override_applied"`
	Breakdown       map[string]float64 `json:"breakdown,omitempty"`
}

type assessResponse struct {
	PredictedAQI float64            `json:"predicted_aqi"`
	AQICategory  model.AqiCategory  `json:"aqi_category"`
	AnomalyScore float64            `json:"anomaly_score"`
	IsAnomaly    bool               `json:"is_anomaly"`
	RiskScore    float64            `json:"risk_score"`
	RiskLevel    model.RiskLevel    `json:"risk_level"`
	Details      assessDetails      `json:"details"`
	Alerts       []model.AlertEvent `json:"alerts"`
	Warnings     []string           `json:"warnings"`
	Strategy     string             `json:"strategy"`
	Cached       bool               `json:"cached"`
}

func newAssessResponse(res engine.Result, cached bool) assessResponse {
	ra := res.Risk
	var breakdown map[string]float64
	if len(ra.Anomaly.Breakdown) > 0 {
		breakdown = make(map[string]float64, len(ra.Anomaly.Breakdown))
		for m, v := range ra.Anomaly.Breakdown {
			breakdown[m.String()] = v
		}
	}
	alerts := res.Alerts
	if alerts == nil {
		alerts = []model.AlertEvent{}
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return assessResponse{
		PredictedAQI: ra.AQI.Value,
		AQICategory:  ra.AQI.Category,
		AnomalyScore: ra.Anomaly.Score,
		IsAnomaly:    ra.Anomaly.IsAnomaly,
		RiskScore:    ra.Score,
		RiskLevel:    ra.Level,
		Details: assessDetails{
			SensorID:        res.Reading.SensorID,
			Timestamp:       res.Reading.Timestamp,
			AnomalySource:   ra.Anomaly.Source,
			AQISource:       ra.AQI.Source,
			Policy:          ra.Policy,
			OverrideApplied: ra.OverrideApplied,
			Breakdown:       breakdown,
		},
		Alerts:   alerts,
		Warnings: warnings,
		Strategy: res.Strategy,
		Cached:   cached,
	}
}

// HandleAssess handles POST /assess requests.
func (h *AssessHandler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	const op = "api.assess"
	var req readingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	reading, err := req.reading()
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, cached, err := h.deps.Assess(r.Context(), reading)
	if err != nil {
		fail(w, classify(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newAssessResponse(res, cached))
}

type batchRequest struct {
	Readings []readingRequest `json:"readings"`
}

type batchItem struct {
	Index  int             `json:"index"`
	Result *assessResponse `json:"result,omitempty"`
	Error  *errorResponse  `json:"error,omitempty"`
}

type batchResponse struct {
	Count    int         `json:"count"`
	Accepted int         `json:"accepted"`
	Rejected int         `json:"rejected"`
	Results  []batchItem `json:"results"`
}

// HandleBatch handles POST /assess/batch requests. Readings that fail to
// parse or validate are reported per item; the rest are scored together.
func (h *AssessHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.assess_batch"
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Readings) == 0 {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("no readings")))
		return
	}
	if len(req.Readings) > h.batchLimit {
		fail(w, WrapKind(op, ErrBadRequest, fmt.Errorf("batch of %d exceeds limit %d", len(req.Readings), h.batchLimit)))
		return
	}

	resp := batchResponse{Count: len(req.Readings), Results: make([]batchItem, len(req.Readings))}
	readings := make([]model.SensorReading, 0, len(req.Readings))
	pos := make([]int, 0, len(req.Readings))
	for i, rr := range req.Readings {
		resp.Results[i].Index = i
		reading, err := rr.reading()
		if err != nil {
			resp.Results[i].Error = &errorResponse{Code: "bad_request", Message: err.Error()}
			continue
		}
		readings = append(readings, reading)
		pos = append(pos, i)
	}

	if len(readings) > 0 {
		out, err := h.deps.AssessBatch(r.Context(), readings)
		if err != nil {
			fail(w, classify(op, err))
			return
		}
		for j, br := range out {
			i := pos[j]
			if br.Err != nil {
				_, code := statusOf(classify(op, br.Err))
				resp.Results[i].Error = &errorResponse{Code: code, Message: br.Err.Error()}
				continue
			}
			ar := newAssessResponse(br.Result, false)
			resp.Results[i].Result = &ar
		}
	}
	for _, it := range resp.Results {
		if it.Error != nil {
			resp.Rejected++
		} else {
			resp.Accepted++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// classify maps pipeline errors onto API kinds.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidReading),
		errors.Is(err, model.ErrMissingSensorID),
		errors.Is(err, model.ErrMissingMetric),
		errors.Is(err, model.ErrNonFiniteMetric):
		return WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return WrapKind(op, ErrUnavailable, err)
	default:
		return Wrap(op, err)
	}
}
