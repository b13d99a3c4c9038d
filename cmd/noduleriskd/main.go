package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"nodule-risk/internal/artifact"
	"nodule-risk/internal/cfg"
	"nodule-risk/internal/dashboard"
	"nodule-risk/internal/metrics"
	"nodule-risk/internal/predict"
	"nodule-risk/internal/server"
	"nodule-risk/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pull artifacts from the model registry service when configured.
	if c.ModelBaseURL != "" {
		if err := artifact.Fetch(c.ModelBaseURL, c.ModelDir, c.FetchTimeout); err != nil {
			log.Fatal().Err(err).Msg("artifact fetch failed")
		}
	}

	// Loading failure of any tier artifact is fatal: the pipeline must
	// never run against a partially loaded registry.
	reg, tiers, err := artifact.Load(c.ModelDir)
	if err != nil {
		log.Fatal().Err(err).Msg("model artifact load failed")
	}

	m := metrics.New()
	m.SetModelAge("small", artifact.ModelAge(c.ModelDir, artifact.SmallModelFile))
	m.SetModelAge("large", artifact.ModelAge(c.ModelDir, artifact.LargeModelFile))

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	pipeline := predict.New(reg, metrics.NewWrapper(m))

	var wg sync.WaitGroup
	startMetricsServer(ctx, c, &wg)

	dash := startDashboard(ctx, c, &wg)

	api := server.New(server.Config{
		Pipeline:    pipeline,
		Registry:    reg,
		Tiers:       tiers,
		Store:       store,
		Publisher:   publisherOrNil(dash),
		Attribution: c.Attribution,
		Port:        c.ListenPort,
		Timeout:     c.RequestTimeout,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := api.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown prediction server")
		}
	}()

	waitForShutdown(ctx, cancel, &wg)
}

// initializeStorage opens the audit store if DATA_PATH is configured.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without audit log")
		return nil
	}
	return store
}

// startMetricsServer starts the Prometheus metrics HTTP server.
func startMetricsServer(ctx context.Context, c cfg.Settings, wg *sync.WaitGroup) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()
}

// startDashboard starts the live dashboard when a port is configured.
func startDashboard(ctx context.Context, c cfg.Settings, wg *sync.WaitGroup) *dashboard.Dashboard {
	if c.DashboardPort == 0 {
		return nil
	}

	dash := dashboard.New(c.DashboardPort)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dash.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := dash.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown dashboard")
		}
	}()
	return dash
}

// publisherOrNil avoids handing the server a non-nil interface wrapping a
// nil dashboard pointer.
func publisherOrNil(d *dashboard.Dashboard) server.EventPublisher {
	if d == nil {
		return nil
	}
	return d
}

// waitForShutdown blocks until a signal arrives, then waits for all
// goroutines with a timeout.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
