package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/airrisk/internal/config"
	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/internal/domain/risk"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigDefaults(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the domain sections mirror the domain defaults", func() {
			convey.So(cfg.RiskWeights(), convey.ShouldResemble, risk.DefaultWeights())

			ranges, err := cfg.RuleRanges()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ranges, convey.ShouldResemble, anomaly.DefaultRanges())

			boosts, err := cfg.RuleBoosts()
			convey.So(err, convey.ShouldBeNil)
			convey.So(boosts, convey.ShouldResemble, anomaly.DefaultBoosts())

			p, err := cfg.RiskPolicyValue()
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Name(), convey.ShouldEqual, risk.PolicyScore)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When weights are negative", func() {
			cfg.Weights.AQI = -0.1

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When tiers are out of order", func() {
			cfg.Risk.High = 0.2

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a range names an unknown metric", func() {
			cfg.Anomaly.Ranges["ozone"] = anomaly.Range{NormalMax: 1, CriticalMax: 2}

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a range has bounds out of order", func() {
			cfg.Anomaly.Ranges["co2"] = anomaly.Range{NormalMin: 0, NormalMax: 900, CriticalMin: 0, CriticalMax: 500}

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a boost is overridden", func() {
			cfg.Anomaly.Boosts["particulate"] = 0

			convey.Convey("Then only that amount changes", func() {
				boosts, err := cfg.RuleBoosts()
				convey.So(err, convey.ShouldBeNil)
				convey.So(boosts[1].Amount, convey.ShouldEqual, 0)
				convey.So(boosts[0].Amount, convey.ShouldEqual, 0.15)
			})
		})

		convey.Convey("When an unknown boost is configured", func() {
			cfg.Anomaly.Boosts["noise"] = 0.1

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the escalation level is MEDIUM", func() {
			cfg.Alerts.EscalationLevel = "medium"

			convey.Convey("Then it resolves to MODERATE", func() {
				th, err := cfg.AlertThresholds()
				convey.So(err, convey.ShouldBeNil)
				convey.So(th.EscalationLevel, convey.ShouldEqual, model.RiskModerate)
			})
		})

		convey.Convey("When the escalation level is unknown", func() {
			cfg.Alerts.EscalationLevel = "severe"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the risk policy is unknown", func() {
			cfg.RiskPolicy = "coin_flip"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
