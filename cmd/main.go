package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/okian/piste/internal/adapters/http/api"
	"github.com/okian/piste/internal/adapters/http/swagger"
	"github.com/okian/piste/internal/adapters/mq/publisher"
	"github.com/okian/piste/internal/adapters/repository"
	app "github.com/okian/piste/internal/app"
	"github.com/okian/piste/internal/config"
	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/internal/domain/simulate"
	"github.com/okian/piste/pkg/logger"
	"github.com/okian/piste/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithJSON(cfg.LogFormat == "json")); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	bus := publisher.NewBus()
	defer func() { _ = bus.Close() }()
	svc, err := newService(ctx, cfg, log, bus)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		os.Exit(1)
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// newService maps configuration onto service options. A database URL selects
// the PostgreSQL ledger; otherwise events live in memory.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger, bus *publisher.Bus) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.NotifyWorkers),
		app.WithQueueSize(cfg.NotifyQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithPublisher(publisher.Fanout{bus, publisher.NewLogSink(log.Named("notifications"))}),
		app.WithRatingOptions(
			rating.WithPriorWeight(cfg.PriorWeight),
			rating.WithTolerance(cfg.FitTolerance),
			rating.WithMaxIterations(cfg.FitMaxIterations),
			rating.WithPriorTable(rating.NewPriorTable(cfg.RatingTiers, cfg.UnratedStrength)),
		),
		app.WithBracketOptions(bracket.WithTouchTarget(cfg.TouchTarget)),
		app.WithSimulationOptions(simulate.WithTrials(cfg.SimulationTrials)),
		app.WithMaxSimulationTrials(cfg.MaxSimulationTrials),
		app.WithPoolTouchTarget(cfg.PoolTouchTarget),
	}
	if cfg.DatabaseURL != "" {
		ledger, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "using postgres ledger")
		opts = append(opts, app.WithLedger(ledger))
	}
	return app.New(opts...), nil
}

// newRouter mounts the API and the docs on one chi router.
func newRouter(cfg *config.Config, svc *app.Service) http.Handler {
	r := chi.NewRouter()
	api.NewServer(svc, svc, api.WithRateLimiter(api.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))).Register(r)
	swagger.Register(r)
	return r
}

func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics refreshes the service gauges; GetStats sets them.
func updateServiceMetrics(svc *app.Service) {
	_ = svc.GetStats()
}
