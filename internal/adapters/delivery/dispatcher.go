package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/pkg/logger"
	"github.com/okian/airrisk/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultCooldown is the minimum gap between notifications for the same
// sensor and alert type.
const DefaultCooldown = 2 * time.Hour

// AlertStore persists alerts. LastAlertAt seeds the cooldown for keys the
// dispatcher has not seen since it started.
type AlertStore interface {
	SaveAlert(ctx context.Context, a model.AlertEvent) error
	LastAlertAt(ctx context.Context, sensorID string, t model.AlertType) (time.Time, bool, error)
}

// Report summarizes one Dispatch call.
type Report struct {
	Stored     int `json:"stored"`
	Notified   int `json:"notified"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithNotifier adds a notifier subject to the cooldown.
func WithNotifier(n Notifier) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
}

// WithLiveNotifier adds a notifier that receives every alert regardless of
// the cooldown, such as the websocket hub.
func WithLiveNotifier(n Notifier) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.live = append(d.live, n)
		}
	}
}

// WithCooldown sets the notification cooldown. Zero disables it.
func WithCooldown(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) {
		if d >= 0 {
			ds.cooldown = d
		}
	}
}

// WithStore persists every alert before delivery.
func WithStore(s AlertStore) DispatcherOption {
	return func(d *Dispatcher) {
		d.store = s
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher stores alerts and fans them out to notifiers. Alerts are always
// stored; notifications for the same sensor and type are held back until
// the cooldown has elapsed since the last one sent, measured on the alerts'
// TriggeredAt clock. After a restart the last stored alert counts as sent.
type Dispatcher struct {
	store     AlertStore
	notifiers []Notifier
	live      []Notifier
	cooldown  time.Duration
	logger    logger.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		cooldown: DefaultCooldown,
		logger:   logger.Get().Named("dispatcher"),
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels lists the configured notifier names.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.notifiers)+len(d.live))
	for _, n := range d.live {
		out = append(out, n.Name())
	}
	for _, n := range d.notifiers {
		out = append(out, n.Name())
	}
	return out
}

// Dispatch stores and delivers alerts. It never fails: every error is logged,
// counted and reflected in the report.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []model.AlertEvent) Report {
	var rep Report
	for _, a := range alerts {
		metrics.RecordAlertRaised(string(a.Type), string(a.Severity))

		// Decided before saving so the store lookup cannot see a itself.
		admitted := d.admit(ctx, a)

		if d.store != nil {
			if err := d.store.SaveAlert(ctx, a); err != nil {
				rep.Failed++
				metrics.RecordErrorByComponent("dispatcher", "store_error")
				d.logger.Error(ctx, "alert store failed", logger.String("alert_id", a.ID), logger.Error(err))
			} else {
				rep.Stored++
			}
		}

		targets := d.live
		if admitted {
			targets = append(append([]Notifier(nil), d.live...), d.notifiers...)
		} else if len(d.notifiers) > 0 {
			rep.Suppressed++
			metrics.RecordAlertSuppressed()
			d.logger.Debug(ctx, "notification held back by cooldown",
				logger.String("sensor_id", a.SensorID), logger.String("type", string(a.Type)))
		}

		ok, failed := d.notify(ctx, a, targets)
		rep.Notified += ok
		rep.Failed += failed
	}
	return rep
}

// admit reports whether a passes the cooldown and records it as sent.
func (d *Dispatcher) admit(ctx context.Context, a model.AlertEvent) bool {
	if d.cooldown == 0 {
		return true
	}
	key := a.SensorID + ":" + string(a.Type)

	d.mu.Lock()
	last, ok := d.lastSent[key]
	d.mu.Unlock()
	if !ok {
		last, ok = d.lastStored(ctx, a)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, seen := d.lastSent[key]; seen {
		last, ok = cur, true
	} else if ok {
		d.lastSent[key] = last
	}
	if ok && a.TriggeredAt.Sub(last) < d.cooldown {
		return false
	}
	d.lastSent[key] = a.TriggeredAt
	return true
}

// lastStored looks up the newest stored alert for a's sensor and type. A
// failed lookup admits the alert.
func (d *Dispatcher) lastStored(ctx context.Context, a model.AlertEvent) (time.Time, bool) {
	if d.store == nil {
		return time.Time{}, false
	}
	last, ok, err := d.store.LastAlertAt(ctx, a.SensorID, a.Type)
	if err != nil {
		metrics.RecordErrorByComponent("dispatcher", "cooldown_lookup")
		d.logger.Warn(ctx, "cooldown lookup failed",
			logger.String("sensor_id", a.SensorID), logger.String("type", string(a.Type)), logger.Error(err))
		return time.Time{}, false
	}
	return last, ok
}

func (d *Dispatcher) notify(ctx context.Context, a model.AlertEvent, targets []Notifier) (int, int) {
	var (
		mu         sync.Mutex
		ok, failed int
	)
	var g errgroup.Group
	for _, n := range targets {
		g.Go(func() error {
			err := n.Notify(ctx, a)
			metrics.RecordAlertDelivery(n.Name(), err == nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				d.logger.Warn(ctx, "alert delivery failed",
					logger.String("channel", n.Name()),
					logger.String("alert_id", a.ID),
					logger.Error(err))
				return nil
			}
			ok++
			return nil
		})
	}
	_ = g.Wait()
	return ok, failed
}
