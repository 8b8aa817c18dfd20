package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"StoryStream/internal/broadcast"
	"StoryStream/internal/config"
	"StoryStream/internal/infrastructure/httpapi"
	"StoryStream/internal/infrastructure/kafka"
	"StoryStream/internal/infrastructure/parser"
	"StoryStream/internal/infrastructure/scheduler"
	"StoryStream/internal/infrastructure/storage"
	"StoryStream/internal/infrastructure/telegram"
	"StoryStream/internal/infrastructure/websocket"
	"StoryStream/internal/logging"
	"StoryStream/internal/metrics"
	"StoryStream/internal/ports"
	"StoryStream/internal/scanner"
	"StoryStream/internal/usecase"
	"StoryStream/pkg/logger"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.RecordStore
	hub       *broadcast.Hub
	scheduler *usecase.Scheduler
	server    *http.Server
	closers   []io.Closer
}

// New connects the store, verifies its schema and builds every component.
// Store failures are returned so the caller can exit before serving.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	clk := clock.WallClock

	store, err := storage.Open(ctx, cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Ensure(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	scanners := scanner.NewRegistry()
	scanners.Register(parser.NewHackerNewsScanner(nil, baseLogger.With("component", "scanner.hackernews")))
	scanners.Register(parser.NewFeedScanner(nil))
	source := parser.NewStrategySource(scanners, cfg.Source, baseLogger.With("component", "source"))

	activity := usecase.NewActivityCounter(store, cfg.Broadcast.RecentWindow)
	hub := broadcast.NewHub(activity, broadcast.Options{
		SendTimeout: cfg.Broadcast.SendTimeout,
		QueueSize:   cfg.Broadcast.QueueSize,
		Logger:      baseLogger.With("component", "hub"),
		Metrics:     m,
	})

	a := &Application{cfg: cfg, logger: baseLogger, store: store, hub: hub}

	sinks := a.buildSinks(baseLogger)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       source,
		Store:        store,
		Broadcaster:  hub,
		Sinks:        sinks,
		Clock:        clk,
		Logger:       baseLogger.With("component", "pipeline"),
		Metrics:      m,
		PayloadLimit: cfg.Broadcast.PayloadLimit,
		StoreTimeout: cfg.Database.Timeout,
		SinkTimeout:  cfg.Notifications.Timeout,
	})

	a.scheduler = usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:   scheduler.NewClockTicker(clk, cfg.Scheduler.Interval, cfg.Scheduler.ShouldRunOnStart()),
		Pipeline: pipeline,
		Clock:    clk,
		Cooldown: cfg.Scheduler.Cooldown,
		Logger:   baseLogger.With("component", "scheduler"),
		Metrics:  m,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Stories:     store,
		Scraper:     a.scheduler,
		Subscribers: hub,
		Gatherer:    registry,
		WebSocket: websocket.Options{
			PingPeriod: cfg.Broadcast.PingPeriod,
			Logger:     baseLogger.With("component", "websocket"),
		},
		Logger: baseLogger.With("component", "http"),
	})
	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *Application) buildSinks(baseLogger *slog.Logger) []ports.DeltaSink {
	var sinks []ports.DeltaSink

	if kcfg := a.cfg.Notifications.Kafka; kcfg.Enabled() {
		sarama.Logger = logger.New(baseLogger, "kafka")
		pub, err := kafka.NewPublisher(kcfg, a.cfg.Notifications.Timeout)
		if err != nil {
			a.logger.Warn("kafka sink disabled", "error", err)
		} else {
			sinks = append(sinks, pub)
			a.closers = append(a.closers, pub)
		}
	}

	if tcfg := a.cfg.Notifications.Telegram; tcfg.Enabled() {
		sinks = append(sinks, telegram.NewNotifier(tcfg, a.cfg.Broadcast.PayloadLimit))
	}

	return sinks
}

// Run serves HTTP and drives the scheduler until ctx is cancelled, then shuts
// everything down in reverse order.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting", "config", a.cfg.String())

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		_ = a.shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	return errors.Join(runErr, a.shutdown())
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	a.hub.Close()
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	a.logger.Info("stopped")
	return errors.Join(errs...)
}
