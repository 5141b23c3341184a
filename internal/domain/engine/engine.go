// Package engine wires the feature transformer, the scoring strategy, the
// risk combiner and the alert engine into one assessment pipeline.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/airrisk/internal/domain/alerting"
	"github.com/okian/airrisk/internal/domain/features"
	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/internal/domain/risk"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds parallel work inside AssessBatch.
const DefaultBatchConcurrency = 4

// Result is the complete outcome for one reading.
type Result struct {
	Reading  model.SensorReading
	Features *model.FeatureVector
	Risk     model.RiskAssessment
	Alerts   []model.AlertEvent
	Warnings []string
	Strategy string
}

// BatchItem is one reading of a batch with its prior history.
type BatchItem struct {
	Reading model.SensorReading
	History []model.SensorReading
}

// BatchResult is the outcome for one batch item. Err is set instead of
// Result when the reading was rejected.
type BatchResult struct {
	Result Result
	Err    error
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTransformer sets the feature transformer.
func WithTransformer(t *features.Transformer) Option {
	return func(e *Engine) {
		if t != nil {
			e.transformer = t
		}
	}
}

// WithStrategy sets the scoring strategy.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithCombiner sets the risk combiner.
func WithCombiner(c *risk.Combiner) Option {
	return func(e *Engine) {
		if c != nil {
			e.combiner = c
		}
	}
}

// WithAlerts sets the alert engine.
func WithAlerts(a *alerting.Engine) Option {
	return func(e *Engine) {
		if a != nil {
			e.alerts = a
		}
	}
}

// WithClock sets the clock used to stamp readings without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithBatchConcurrency bounds the goroutines AssessBatch uses.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// Engine is stateless across readings and safe for concurrent use.
type Engine struct {
	transformer *features.Transformer
	strategy    Strategy
	combiner    *risk.Combiner
	alerts      *alerting.Engine
	now         func() time.Time
	concurrency int
}

// New creates an engine using rules, default weights and default thresholds
// unless overridden.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		transformer: features.NewTransformer(),
		strategy:    NewRuleStrategy(nil),
		now:         time.Now,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.combiner == nil {
		c, err := risk.NewCombiner()
		if err != nil {
			return nil, err
		}
		e.combiner = c
	}
	if e.alerts == nil {
		a, err := alerting.NewEngine(alerting.WithClock(e.now))
		if err != nil {
			return nil, err
		}
		e.alerts = a
	}
	return e, nil
}

// Strategy returns the active strategy name.
func (e *Engine) Strategy() string { return e.strategy.Name() }

// Transformer returns the feature transformer.
func (e *Engine) Transformer() *features.Transformer { return e.transformer }

// Assess runs the full pipeline for r. history holds prior readings of the
// same sensor. The only error besides cancellation wraps ErrInvalidReading.
func (e *Engine) Assess(ctx context.Context, r model.SensorReading, history []model.SensorReading) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	in, err := e.prepare(r, history)
	if err != nil {
		return Result{}, err
	}
	an, err := e.strategy.ScoreAnomaly(ctx, []Input{in})
	if err != nil {
		return Result{}, err
	}
	return e.finish(ctx, in, an[0])
}

// AssessBatch assesses items together so a model strategy normalizes anomaly
// scores over the whole batch. Rejected readings carry their error in the
// matching BatchResult; the returned error is only set on cancellation.
func (e *Engine) AssessBatch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	out := make([]BatchResult, len(items))
	inputs := make([]Input, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			in, err := e.prepare(it.Reading, it.History)
			if err != nil {
				out[i].Err = err
				return nil
			}
			inputs[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	valid := make([]Input, 0, len(items))
	pos := make([]int, 0, len(items))
	for i := range items {
		if out[i].Err == nil {
			valid = append(valid, inputs[i])
			pos = append(pos, i)
		}
	}
	if len(valid) == 0 {
		return out, nil
	}
	scores, err := e.strategy.ScoreAnomaly(ctx, valid)
	if err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for j, i := range pos {
		g.Go(func() error {
			res, err := e.finish(gctx, valid[j], scores[j])
			if err != nil {
				return err
			}
			out[i].Result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) prepare(r model.SensorReading, history []model.SensorReading) (Input, error) {
	r = r.OrNow(e.now().UTC())
	fv, err := e.transformer.Transform(r, history)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	return Input{Reading: r, Features: fv}, nil
}

func (e *Engine) finish(ctx context.Context, in Input, an model.AnomalyAssessment) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	aq, err := e.strategy.EstimateAQI(ctx, in)
	if err != nil {
		return Result{}, err
	}
	ra := e.combiner.Combine(an, aq)
	return Result{
		Reading:  in.Reading,
		Features: in.Features,
		Risk:     ra,
		Alerts:   e.alerts.Decide(ra, in.Reading),
		Warnings: in.Reading.RangeWarnings(),
		Strategy: e.strategy.Name(),
	}, nil
}
