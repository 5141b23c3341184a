package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/airrisk/internal/adapters/mq/queue"
	"github.com/okian/airrisk/internal/domain/model"
	"golang.org/x/time/rate"
)

// ReadingsDependencies defines the interface for asynchronous ingest.
type ReadingsDependencies interface {
	Enqueue(ctx context.Context, r model.SensorReading) error
}

// ReadingsHandler handles asynchronous reading ingest.
type ReadingsHandler struct {
	deps    ReadingsDependencies
	limiter *rate.Limiter
}

// NewReadingsHandler creates a readings handler. rps <= 0 disables rate limiting.
func NewReadingsHandler(deps ReadingsDependencies, rps float64, burst int) *ReadingsHandler {
	h := &ReadingsHandler{deps: deps}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return h
}

// HandlePostReading handles POST /readings requests.
func (h *ReadingsHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reading"
	if h.limiter != nil && !h.limiter.Allow() {
		fail(w, NewKind(op, ErrBackpressure))
		return
	}
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
	if err := reading.Validate(); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.Enqueue(r.Context(), reading); err != nil {
		switch {
		case errors.Is(err, queue.ErrFull):
			fail(w, WrapKind(op, ErrBackpressure, err))
		case errors.Is(err, queue.ErrClosed):
			fail(w, WrapKind(op, ErrUnavailable, err))
		default:
			fail(w, Wrap(op, err))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SensorID: reading.SensorID})
}
