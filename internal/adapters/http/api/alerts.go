package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/airrisk/internal/adapters/repository"
	"github.com/okian/airrisk/internal/domain/model"
)

// AlertsDependencies defines the interface for alert operations.
type AlertsDependencies interface {
	ListAlerts(ctx context.Context, sensorID string, limit int) ([]model.AlertEvent, error)
	ResolveAlert(ctx context.Context, id string) (model.AlertEvent, error)
}

// AlertsHandler handles stored alert requests.
type AlertsHandler struct {
	deps     AlertsDependencies
	maxLimit int
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(deps AlertsDependencies) *AlertsHandler {
	return &AlertsHandler{deps: deps, maxLimit: MaxAlertLimit}
}

// HandleList handles GET /alerts?sensor_id=&limit=N requests.
func (h *AlertsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_alerts"
	limit := DefaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			fail(w, NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	sensorID := strings.TrimSpace(r.URL.Query().Get("sensor_id"))

	alerts, err := h.deps.ListAlerts(r.Context(), sensorID, limit)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if alerts == nil {
		alerts = []model.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// HandleResolve handles POST /alerts/{id}/resolve requests.
func (h *AlertsHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_alert"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	a, err := h.deps.ResolveAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			fail(w, WrapKind(op, ErrNotFound, err))
			return
		}
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}
