package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"dashboard/internal/api"
	"dashboard/internal/config"
	"dashboard/internal/engine"
	"dashboard/internal/logger"
	"dashboard/internal/models"
	"dashboard/internal/service"
	"dashboard/internal/source"
	"dashboard/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	loader := engine.NewLoader(engine.LoaderConfig{
		IdentifierColumn: cfg.Data.IdentifierColumn,
		Years:            models.YearRange{Min: cfg.Data.FirstYear, Max: cfg.Data.LastYear},
		Comma:            cfg.Data.Comma(),
		Sheet:            cfg.Data.Sheet,
	}, source.New(cfg.S3, log), log)

	// The API is live immediately and answers 503 until the first load lands.
	svc := service.NewDashboard(loader, service.Options{
		Location:    cfg.Data.Path,
		DefaultSize: cfg.Data.DefaultSelection,
		Metrics:     metrics,
		Logger:      log,
	})
	e := api.NewServer(cfg.Server, api.NewHandler(svc), reg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server ready, loading dataset in background", slog.String("addr", cfg.Server.Addr()))
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// A failed load is logged by the service; the server keeps running so
	// /healthz can report it.
	g.Go(func() error {
		_ = svc.Load(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				log.Info("reloading dataset", slog.String("location", cfg.Data.Path))
				_ = svc.Load(ctx)
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
