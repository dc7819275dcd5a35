package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/piste/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have the engine defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.PriorWeight, convey.ShouldEqual, 0.3)
			convey.So(cfg.FitTolerance, convey.ShouldEqual, 1e-6)
			convey.So(cfg.FitMaxIterations, convey.ShouldEqual, 200)
			convey.So(cfg.TouchTarget, convey.ShouldEqual, 15)
			convey.So(cfg.SimulationTrials, convey.ShouldEqual, 10_000)
			convey.So(cfg.RatingTiers["A"], convey.ShouldEqual, 32)
			convey.So(cfg.RatingTiers["E"], convey.ShouldEqual, 2)
			convey.So(cfg.UnratedStrength, convey.ShouldEqual, 1)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given configs breaking an invariant", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":        func(c *config.Config) { c.Addr = "" },
			"zero prior weight": func(c *config.Config) { c.PriorWeight = 0 },
			"zero tolerance":    func(c *config.Config) { c.FitTolerance = 0 },
			"zero iterations":   func(c *config.Config) { c.FitMaxIterations = 0 },
			"zero touch target": func(c *config.Config) { c.TouchTarget = 0 },
			"zero trials":       func(c *config.Config) { c.SimulationTrials = 0 },
			"trial cap too low": func(c *config.Config) { c.MaxSimulationTrials = 10 },
			"negative tier":     func(c *config.Config) { c.RatingTiers["A"] = -1 },
		}
		for name, mutate := range cases {
			convey.Convey("Then "+name+" is invalid", func() {
				cfg := config.New(context.Background())
				mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
