package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/piste/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.TouchTarget, convey.ShouldEqual, 15)
				convey.So(cfg.DatabaseURL, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PISTE_ADDR", ":8080")
			_ = os.Setenv("PISTE_PRIOR_WEIGHT", "0.5")
			_ = os.Setenv("PISTE_FIT_MAX_ITERATIONS", "50")
			_ = os.Setenv("PISTE_SIMULATION_TRIALS", "2000")
			_ = os.Setenv("PISTE_LOG_FORMAT", "json")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PriorWeight, convey.ShouldEqual, 0.5)
				convey.So(cfg.FitMaxIterations, convey.ShouldEqual, 50)
				convey.So(cfg.SimulationTrials, convey.ShouldEqual, 2000)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
# tournament settings
addr: ":9090"
touch_target: 10
database_url: "postgres://piste@localhost/piste"
rating_tiers:
  A: 64
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PISTE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values merge with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.TouchTarget, convey.ShouldEqual, 10)
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://piste@localhost/piste")
				convey.So(cfg.RatingTiers["A"], convey.ShouldEqual, 64)
				convey.So(cfg.PriorWeight, convey.ShouldEqual, 0.3)
			})
		})

		convey.Convey("When the file and env disagree", func() {
			tmpFile := createTempConfigFile("addr: \":7000\"\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PISTE_CONFIG", tmpFile)
			_ = os.Setenv("PISTE_ADDR", ":7001")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the environment wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7001")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("PISTE_CONFIG", "/nonexistent/piste.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the YAML is invalid", func() {
			tmpFile := createTempConfigFile("addr: [unclosed\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PISTE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a value breaks validation", func() {
			_ = os.Setenv("PISTE_PRIOR_WEIGHT", "-1")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a numeric variable is not a number", func() {
			_ = os.Setenv("PISTE_TOUCH_TARGET", "fifteen")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"PISTE_CONFIG", "PISTE_ADDR", "PISTE_PRIOR_WEIGHT", "PISTE_FIT_MAX_ITERATIONS",
		"PISTE_SIMULATION_TRIALS", "PISTE_LOG_FORMAT", "PISTE_TOUCH_TARGET",
	} {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "piste-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}
