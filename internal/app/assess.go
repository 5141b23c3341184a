package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/airrisk/internal/adapters/http/api"
	"github.com/okian/airrisk/internal/adapters/mq/queue"
	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/pkg/logger"
	"github.com/okian/airrisk/pkg/metrics"
)

// Assess validates r, answers from the memo cache when possible, and
// otherwise runs the engine against the sensor's stored history. Fresh
// results are persisted and their alerts dispatched.
func (s *Service) Assess(ctx context.Context, r model.SensorReading) (engine.Result, bool, error) {
	if err := s.running(); err != nil {
		return engine.Result{}, false, err
	}
	return s.assess(ctx, r)
}

func (s *Service) assess(ctx context.Context, r model.SensorReading) (engine.Result, bool, error) {
	start := time.Now()
	r = r.OrNow(s.now().UTC())
	if err := r.Validate(); err != nil {
		s.reject(ctx, r, err)
		return engine.Result{}, false, fmt.Errorf("%w: %w", engine.ErrInvalidReading, err)
	}

	key := r.CacheKey()
	if res, ok := s.memo.Get(ctx, key); ok {
		s.cacheHits.Add(1)
		return res, true, nil
	}

	res, err := s.engine.Assess(ctx, r, s.history(ctx, r))
	if err != nil {
		if errors.Is(err, engine.ErrInvalidReading) {
			s.reject(ctx, r, err)
		}
		return engine.Result{}, false, err
	}
	s.complete(ctx, res, start)
	s.memo.Add(ctx, key, res)
	return res, false, nil
}

// AssessBatch assesses readings together so model anomaly scores are
// normalized over the batch. Each reading uses its own stored history.
func (s *Service) AssessBatch(ctx context.Context, rs []model.SensorReading) ([]engine.BatchResult, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	start := time.Now()
	now := s.now().UTC()
	items := make([]engine.BatchItem, len(rs))
	for i, r := range rs {
		r = r.OrNow(now)
		items[i] = engine.BatchItem{Reading: r}
		if r.Validate() == nil {
			items[i].History = s.history(ctx, r)
		}
	}

	out, err := s.engine.AssessBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	for i, br := range out {
		if br.Err != nil {
			s.reject(ctx, items[i].Reading, br.Err)
			continue
		}
		s.complete(ctx, br.Result, start)
		s.memo.Add(ctx, br.Result.Reading.CacheKey(), br.Result)
	}
	return out, nil
}

// Enqueue submits a reading for asynchronous assessment. It returns
// queue.ErrFull under backpressure.
func (s *Service) Enqueue(ctx context.Context, r model.SensorReading) error {
	if err := s.running(); err != nil {
		return fmt.Errorf("%w: %w", queue.ErrClosed, err)
	}
	return s.queue.Enqueue(ctx, queue.Item{Reading: r, Source: "http"})
}

// process is the worker pool processor.
func (s *Service) process(ctx context.Context, it queue.Item) error {
	_, _, err := s.assess(ctx, it.Reading)
	return err
}

// history loads prior readings of the sensor. A failed lookup degrades to
// no history.
func (s *Service) history(ctx context.Context, r model.SensorReading) []model.SensorReading {
	if s.cfg.HistoryLimit == 0 {
		return nil
	}
	h, err := s.store.History(ctx, r.SensorID, r.Timestamp, s.cfg.HistoryLimit)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "history")
		s.logger.Warn(ctx, "history lookup failed",
			logger.String("sensor_id", r.SensorID), logger.Error(err))
		return nil
	}
	return h
}

// complete records, persists and dispatches a fresh result.
func (s *Service) complete(ctx context.Context, res engine.Result, start time.Time) {
	ra := res.Risk
	s.assessed.Add(1)
	metrics.RecordAssessment(res.Strategy, string(ra.Level), ra.Anomaly.IsAnomaly, ra.AQI.Value,
		float64(time.Since(start).Microseconds())/1000)

	if err := s.store.SaveReading(ctx, res.Reading); err != nil {
		metrics.RecordErrorByComponent("repository", "save_reading")
		s.logger.Warn(ctx, "reading not stored",
			logger.String("sensor_id", res.Reading.SensorID), logger.Error(err))
	}
	if len(res.Alerts) == 0 {
		return
	}
	s.alertCount.Add(int64(len(res.Alerts)))
	rep := s.dispatcher.Dispatch(ctx, res.Alerts)
	if rep.Failed > 0 {
		s.logger.Warn(ctx, "alert delivery incomplete",
			logger.String("sensor_id", res.Reading.SensorID),
			logger.Int("failed", rep.Failed),
			logger.Int("notified", rep.Notified))
	}
}

func (s *Service) reject(ctx context.Context, r model.SensorReading, err error) {
	s.rejected.Add(1)
	metrics.RecordReadingRejected()
	s.logger.Debug(ctx, "reading rejected", logger.String("sensor_id", r.SensorID), logger.Error(err))
}

// ListAlerts returns stored alerts, newest first.
func (s *Service) ListAlerts(ctx context.Context, sensorID string, limit int) ([]model.AlertEvent, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.store.ListAlerts(ctx, sensorID, limit)
}

// ResolveAlert marks a stored alert resolved.
func (s *Service) ResolveAlert(ctx context.Context, id string) (model.AlertEvent, error) {
	if err := s.running(); err != nil {
		return model.AlertEvent{}, err
	}
	return s.store.ResolveAlert(ctx, id)
}

// Model reports the active strategy, policy, artifacts and alert channels.
func (s *Service) Model() api.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := api.ModelInfo{Policy: s.cfg.RiskPolicy, Registry: s.registry.Info()}
	if s.engine != nil {
		info.Strategy = s.engine.Strategy()
	}
	if s.dispatcher != nil {
		info.Channels = s.dispatcher.Channels()
	}
	return info
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
		"cacheSize":   s.cfg.CacheSize,
		"assessed":    s.assessed.Load(),
		"rejected":    s.rejected.Load(),
		"cacheHits":   s.cacheHits.Load(),
		"alerts":      s.alertCount.Load(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	ps := s.pool.Stats()
	stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	stats["strategy"] = s.engine.Strategy()
	stats["queueLength"] = s.queue.Len()
	stats["cacheEntries"] = s.memo.Len()
	stats["workersActive"] = ps.Active
	stats["processed"] = ps.Processed
	stats["failed"] = ps.Failed
	stats["streamClients"] = s.hub.Clients()
	stats["mqtt"] = s.subscriber != nil
	if readings, alerts, err := s.store.Counts(ctx); err == nil {
		stats["storedReadings"] = readings
		stats["storedAlerts"] = alerts
	}
	return stats
}
