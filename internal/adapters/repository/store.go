// Package repository persists sensor reading history and alerts.
package repository

import (
	"context"
	"time"

	"github.com/okian/airrisk/internal/domain/model"
)

// Store provides read/write access to readings and alerts.
type Store interface {
	// SaveReading stores r. Saving the same sensor and timestamp twice keeps
	// the latest values.
	SaveReading(ctx context.Context, r model.SensorReading) error

	// History returns up to limit readings of sensorID strictly before the
	// given time, oldest first.
	History(ctx context.Context, sensorID string, before time.Time, limit int) ([]model.SensorReading, error)

	// SaveAlert stores a new alert.
	SaveAlert(ctx context.Context, a model.AlertEvent) error

	// ListAlerts returns alerts newest first. An empty sensorID lists all sensors.
	ListAlerts(ctx context.Context, sensorID string, limit int) ([]model.AlertEvent, error)

	// ResolveAlert marks an alert resolved and returns it.
	// Returns ErrNotFound if the id is unknown.
	ResolveAlert(ctx context.Context, id string) (model.AlertEvent, error)

	// LastAlertAt returns when an alert of the given type was last stored for
	// sensorID, and false if never.
	LastAlertAt(ctx context.Context, sensorID string, t model.AlertType) (time.Time, bool, error)

	// Counts returns the number of stored readings and alerts.
	Counts(ctx context.Context) (readings, alerts int, err error)

	Close() error
}
