// Package artifacts loads trained model artifacts from disk into an
// engine.Registry.
//
// A model directory may hold anomaly_detector.json and aqi_predictor.json.
// Either file may be absent or broken; that component then runs on rules.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/pkg/logger"
	"github.com/okian/airrisk/pkg/metrics"
)

// Artifact file names inside the model directory.
const (
	AnomalyFile = "anomaly_detector.json"
	AQIFile     = "aqi_predictor.json"
)

// Option configures Load.
type Option func(*loader)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(ld *loader) {
		if l != nil {
			ld.log = l
		}
	}
}

// WithClock overrides the LoadedAt clock.
func WithClock(now func() time.Time) Option {
	return func(ld *loader) {
		if now != nil {
			ld.now = now
		}
	}
}

type loader struct {
	log logger.Logger
	now func() time.Time
}

// Load reads the artifacts under dir. An empty or missing dir yields an
// empty registry. An artifact that cannot be read, decoded or validated is
// logged and left nil so that component runs on rules; the other artifact
// still loads. Only an unreadable dir is an error.
func Load(ctx context.Context, dir string, opts ...Option) (*engine.Registry, error) {
	ld := &loader{log: logger.Get().Named("artifacts"), now: time.Now}
	for _, opt := range opts {
		opt(ld)
	}

	reg := &engine.Registry{LoadedAt: ld.now()}
	if dir == "" {
		ld.log.Info(ctx, "no model directory configured, using rules")
		return reg, nil
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ld.log.Warn(ctx, "model directory missing, using rules", logger.String("dir", dir))
		return reg, nil
	case err != nil:
		return nil, fmt.Errorf("stat model directory %s: %w", dir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("model directory %s: not a directory", dir)
	}

	if m, an, err := loadAnomaly(dir); err != nil {
		ld.fallback(ctx, engine.ComponentAnomaly, err)
	} else if m != nil {
		reg.Anomaly = m
		reg.Version = an.Version
		ld.log.Info(ctx, "anomaly model loaded",
			logger.String("version", an.Version),
			logger.Int("columns", an.Schema.Len()),
			logger.Bool("calibrated", an.Calibration.Set()))
	}

	if m, aq, err := loadAQI(dir); err != nil {
		ld.fallback(ctx, engine.ComponentAQI, err)
	} else if m != nil {
		reg.AQI = m
		if reg.Version == "" {
			reg.Version = aq.Version
		}
		ld.log.Info(ctx, "aqi model loaded",
			logger.String("version", aq.Version),
			logger.Int("columns", aq.Schema.Len()))
	}

	if reg.Empty() {
		ld.log.Warn(ctx, "no model artifacts loaded, using rules", logger.String("dir", dir))
	}
	return reg, nil
}

func (ld *loader) fallback(ctx context.Context, component string, err error) {
	metrics.RecordModelFallback(component)
	ld.log.Error(ctx, "model artifact rejected, using rules",
		logger.String("component", component), logger.Error(err))
}

// loadAnomaly returns a nil model when the file is absent.
func loadAnomaly(dir string) (*ZScoreModel, AnomalyArtifact, error) {
	var an AnomalyArtifact
	found, err := readJSON(filepath.Join(dir, AnomalyFile), &an)
	if err != nil || !found {
		return nil, an, err
	}
	m, err := NewZScoreModel(an)
	if err != nil {
		return nil, an, fmt.Errorf("%s: %w", AnomalyFile, err)
	}
	return m, an, nil
}

// loadAQI returns a nil model when the file is absent.
func loadAQI(dir string) (*LinearModel, AQIArtifact, error) {
	var aq AQIArtifact
	found, err := readJSON(filepath.Join(dir, AQIFile), &aq)
	if err != nil || !found {
		return nil, aq, err
	}
	m, err := NewLinearModel(aq)
	if err != nil {
		return nil, aq, fmt.Errorf("%s: %w", AQIFile, err)
	}
	return m, aq, nil
}

// readJSON decodes path into v. A missing file reports found=false.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, filepath.Base(path), err)
	}
	return true, nil
}

// Save writes artifacts to dir; nil artifacts are skipped. Used by tooling
// that exports fitted parameters.
func Save(dir string, an *AnomalyArtifact, aq *AQIArtifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	write := func(name string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		return os.WriteFile(filepath.Join(dir, name), data, 0o644)
	}
	if an != nil {
		if err := write(AnomalyFile, an); err != nil {
			return err
		}
	}
	if aq != nil {
		if err := write(AQIFile, aq); err != nil {
			return err
		}
	}
	return nil
}
