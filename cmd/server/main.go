package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-failover/internal/failover"
	"channel-failover/internal/platform/config"
	"channel-failover/internal/platform/logger"
	"channel-failover/internal/platform/metrics"
	"channel-failover/internal/platform/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	settings, err := config.FromEnv()
	if err != nil {
		logger.New("error", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(settings.LogLevel, settings.LogFormat)
	if err := run(settings, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(settings config.Settings, log *slog.Logger) error {
	met := metrics.New()

	store := failover.NewMappingStore(failover.NewFileDocument(settings.MappingPath))
	mapping, err := store.EnsureInitialized(failover.DefaultMapping())
	if err != nil {
		return err
	}
	log.Info("mapping loaded",
		"path", settings.MappingPath,
		"channels", mapping.Len(),
	)

	prober := failover.NewFFmpegProber(settings.FFmpegPath, settings.ProbeRead)
	resolver := failover.NewResolver(prober, failover.URLTemplate(settings.ProviderBaseURL), settings.ProbeTimeout,
		logger.Component(log, "resolver"), met)
	svc := failover.NewService(store, resolver, failover.NewArtifact(settings.ArtifactPath), settings.SelfBaseURL,
		logger.Component(log, "playlist"), met)
	if err := svc.Regenerate(); err != nil {
		return err
	}

	reload := failover.NewReloadLoop(svc, settings.PollInterval, settings.MappingPath,
		logger.Component(log, "reload"), met)
	ingest := failover.NewIngestWatcher(failover.IngestConfig{
		InboxDir:       settings.InboxDir,
		Interval:       settings.PollInterval,
		LabelAttribute: settings.LabelAttribute,
		SettleTime:     settings.IngestSettle,
	}, store, logger.Component(log, "ingest"), met)

	h := failover.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Method(http.MethodGet, "/metrics", met.Handler())
	h.Routes(r, settings.PlaylistName, ratelimit.PerIP(settings.ProxyRateLimit, time.Minute))

	srv := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reload.Run(ctx) })
	g.Go(func() error { return ingest.Run(ctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	log.Info("server starting",
		"addr", settings.ListenAddr,
		"provider", settings.ProviderBaseURL,
		"self", settings.SelfBaseURL,
		"poll_interval", settings.PollInterval.String(),
		"probe_timeout", settings.ProbeTimeout.String(),
	)

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
