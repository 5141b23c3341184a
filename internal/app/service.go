// Package service wires the assessment engine to storage, delivery and
// ingest, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/okian/airrisk/internal/adapters/artifacts"
	"github.com/okian/airrisk/internal/adapters/cache"
	"github.com/okian/airrisk/internal/adapters/delivery"
	"github.com/okian/airrisk/internal/adapters/http/api"
	"github.com/okian/airrisk/internal/adapters/mq/queue"
	"github.com/okian/airrisk/internal/adapters/mq/worker"
	"github.com/okian/airrisk/internal/adapters/mqtt"
	"github.com/okian/airrisk/internal/adapters/repository"
	"github.com/okian/airrisk/internal/config"
	"github.com/okian/airrisk/internal/domain/alerting"
	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/risk"
	"github.com/okian/airrisk/pkg/logger"
	"github.com/okian/airrisk/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the risk engine.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger
	now    func() time.Time

	// Core components
	engine     *engine.Engine
	registry   *engine.Registry
	memo       *cache.Memo[engine.Result]
	store      repository.Store
	dispatcher *delivery.Dispatcher
	hub        *delivery.Hub
	redis      *redis.Client
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	subscriber *mqtt.Subscriber
	notifiers  []delivery.Notifier

	// State
	started    bool
	startedAt  time.Time
	stopPool   context.CancelFunc
	assessed   atomic.Int64
	rejected   atomic.Int64
	cacheHits  atomic.Int64
	alertCount atomic.Int64
}

var _ api.Dependencies = (*Service)(nil)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the SQLite store built from db_path.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithRegistry replaces the registry loaded from model_dir.
func WithRegistry(reg *engine.Registry) Option {
	return func(s *Service) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithNotifier adds a cooldown-gated alert channel.
func WithNotifier(n delivery.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithClock sets the clock used to stamp readings without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(context.Background()),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting air risk service...")

	if s.store == nil {
		retention := repository.DefaultReadingRetention
		if cfg.HistoryLimit > retention {
			retention = cfg.HistoryLimit
		}
		st, err := repository.NewSQLiteStore(ctx, cfg.DBPath, repository.WithReadingRetention(retention))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
	}

	if s.registry == nil {
		reg, err := artifacts.Load(ctx, cfg.ModelDir, artifacts.WithLogger(s.logger.Named("artifacts")))
		if err != nil {
			return fmt.Errorf("load model artifacts: %w", err)
		}
		s.registry = reg
	}

	eng, err := s.buildEngine()
	if err != nil {
		return err
	}
	s.engine = eng

	memo, err := cache.New[engine.Result](cache.WithCapacity(cfg.CacheSize), cache.WithMetrics(true))
	if err != nil {
		return fmt.Errorf("create memo cache: %w", err)
	}
	s.memo = memo

	s.hub = delivery.NewHub(delivery.WithHubLogger(s.logger.Named("stream")))
	s.dispatcher = delivery.NewDispatcher(s.dispatcherOptions(ctx)...)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	s.pool = worker.NewPool(cfg.WorkerCount, s.queue, worker.ProcessorFunc(s.process),
		worker.WithName("assess"),
		worker.WithLogger(s.logger.Named("worker-pool")),
	)
	// Workers outlive the request context so Stop can drain the queue.
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopPool = cancel
	s.pool.Start(poolCtx)

	if cfg.MQTT.Broker != "" {
		sub := mqtt.NewSubscriber(cfg.MQTT.Broker, s.queue,
			mqtt.WithTopic(cfg.MQTT.Topic),
			mqtt.WithClientID(cfg.MQTT.ClientID),
			mqtt.WithLogger(s.logger.Named("mqtt")),
		)
		if err := sub.Start(ctx); err != nil {
			s.logger.Error(ctx, "mqtt ingest disabled", logger.String("broker", cfg.MQTT.Broker), logger.Error(err))
		} else {
			s.subscriber = sub
		}
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "air risk service started",
		logger.String("strategy", s.engine.Strategy()),
		logger.String("policy", cfg.RiskPolicy),
		logger.Int("workers", cfg.WorkerCount),
		logger.Int("queueSize", cfg.QueueSize),
		logger.Int("cacheSize", cfg.CacheSize),
		logger.Any("channels", s.dispatcher.Channels()),
	)
	return nil
}

func (s *Service) buildEngine() (*engine.Engine, error) {
	cfg := s.cfg
	ranges, err := cfg.RuleRanges()
	if err != nil {
		return nil, err
	}
	boosts, err := cfg.RuleBoosts()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.RiskPolicyValue()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	thresholds, err := cfg.AlertThresholds()
	if err != nil {
		return nil, err
	}

	scorer := anomaly.NewRuleScorer(
		anomaly.WithRanges(ranges),
		anomaly.WithBoosts(boosts),
		anomaly.WithThreshold(cfg.Anomaly.Threshold),
	)
	strategy := engine.SelectStrategy(s.registry, engine.NewRuleStrategy(scorer),
		engine.WithMinConfidence(cfg.Anomaly.Threshold),
		engine.WithFallbackHook(s.onFallback),
	)
	combiner, err := risk.NewCombiner(risk.WithWeights(cfg.RiskWeights()), risk.WithPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	alerts, err := alerting.NewEngine(alerting.WithThresholds(thresholds), alerting.WithClock(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return engine.New(
		engine.WithStrategy(strategy),
		engine.WithCombiner(combiner),
		engine.WithAlerts(alerts),
		engine.WithClock(s.now),
		engine.WithBatchConcurrency(cfg.Batch.Concurrency),
	)
}

func (s *Service) dispatcherOptions(ctx context.Context) []delivery.DispatcherOption {
	cfg := s.cfg
	opts := []delivery.DispatcherOption{
		delivery.WithStore(s.store),
		delivery.WithCooldown(cfg.Alerts.Cooldown),
		delivery.WithLiveNotifier(s.hub),
		delivery.WithDispatcherLogger(s.logger.Named("dispatcher")),
	}
	if cfg.Webhook.URL != "" {
		hookOpts := []delivery.WebhookOption{
			delivery.WithWebhookTimeout(cfg.Webhook.Timeout),
			delivery.WithWebhookRetries(cfg.Webhook.Retries),
		}
		for k, v := range cfg.Webhook.Headers {
			hookOpts = append(hookOpts, delivery.WithWebhookHeader(k, v))
		}
		opts = append(opts, delivery.WithNotifier(delivery.NewWebhook(cfg.Webhook.URL, hookOpts...)))
	}
	if cfg.Redis.Addr != "" {
		stream, client, err := delivery.NewRedisStream(ctx, cfg.Redis.Addr, cfg.Redis.Stream)
		if err != nil {
			s.logger.Error(ctx, "redis alert stream disabled", logger.String("addr", cfg.Redis.Addr), logger.Error(err))
		} else {
			s.redis = client
			opts = append(opts, delivery.WithNotifier(stream))
		}
	}
	for _, n := range s.notifiers {
		opts = append(opts, delivery.WithNotifier(n))
	}
	return opts
}

func (s *Service) onFallback(component string, err error) {
	metrics.RecordModelFallback(component)
	s.logger.Warn(context.Background(), "model unavailable, using rules",
		logger.String("component", component), logger.Error(err))
}

// Stop gracefully shuts down the service, draining queued readings first.
// A stopped service cannot be restarted.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping air risk service...")

	if s.subscriber != nil {
		s.subscriber.Stop()
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "queue not fully drained", logger.Int("remaining", s.queue.Len()), logger.Error(err))
	}
	s.stopPool()
	s.hub.Close()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn(ctx, "redis close failed", logger.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}

	s.logger.Info(ctx, "air risk service stopped")
}

// AlertStream returns the websocket handler for live alerts, or nil before Start.
func (s *Service) AlertStream() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hub == nil {
		return nil
	}
	return s.hub
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}
