package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// metricsPath is where the hermes_* export, theme and view series are scraped.
const metricsPath = "/metrics"

var (
	metricsShutdownTimeout = 5 * time.Second
)

// newMetricsServer builds the scrape listener kept apart from the chart API,
// so HERMES_METRICS_ADDR can bind it to an internal interface. Only
// metricsPath is served.
func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET "+metricsPath, promhttp.Handler())

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

// startMetricsServer runs the scrape listener until the chart server's
// context ends. A bind failure is logged and the chart server keeps running
// without metrics.
func startMetricsServer(ctx context.Context, addr string) {
	srv := newMetricsServer(addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", addr).Msg("Hermes metrics listener did not stop cleanly")
		}
	}()

	go func() {
		log.Info().Str("addr", addr).Str("path", metricsPath).Msg("Serving hermes export metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", addr).Msg("Hermes metrics listener failed, continuing without metrics")
		}
	}()
}
