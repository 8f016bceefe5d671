package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hermes-analytics/hermes/internal/api"
	"github.com/hermes-analytics/hermes/internal/config"
	"github.com/hermes-analytics/hermes/internal/logging"
	"github.com/hermes-analytics/hermes/internal/metrics"
	"github.com/hermes-analytics/hermes/internal/websocket"
	"github.com/hermes-analytics/hermes/pkg/reporting"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	chartPath  string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:           "hermes",
	Short:         "Hermes - chart view and report export",
	Long:          `Hermes serves an ECharts chart view with light and dark themes and exports it as PNG images, PDF reports and CSV tables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chart view and export API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		return runServer(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Hermes %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Fprintf(out, "Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&chartPath, "chart", "", "chart option JSON file (overrides HERMES_CHART_CONFIG)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides HERMES_LISTEN_ADDR)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(versionCmd)

	// Wire Prometheus metrics for every export attempt
	reporting.SetMetricHook(func(format reporting.ReportFormat, err error, elapsed time.Duration) {
		metrics.RecordExport(string(format), err, elapsed)
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the environment configuration, applies the shared flags
// and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if chartPath != "" {
		cfg.ChartConfigPath = chartPath
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "hermes",
		FilePath:  cfg.LogFile,
	})
	return cfg, nil
}

func newExporter(cfg *config.Config) *reporting.Exporter {
	return reporting.NewExporter(reporting.Options{
		ScreenPixelRatio: cfg.ScreenPixelRatio,
		PrintPixelRatio:  cfg.PrintPixelRatio,
		Timeout:          cfg.ExportTimeout,
		Compress:         true,
	})
}

func runServer(cfg *config.Config) error {
	defer logging.Shutdown()
	log.Info().Str("version", Version).Msg("Starting Hermes chart server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr)
	}

	state := api.NewChartState(cfg.ChartWidth, cfg.ChartHeight)

	wsHub := websocket.NewHub(api.HubState(cfg, state))
	go wsHub.Run(ctx)
	state.OnChange(wsHub.Refresh)

	if opt, err := config.LoadChartOption(cfg.ChartConfigPath); err != nil {
		// The view still starts; exports report the missing chart until the file appears.
		log.Warn().Err(err).Str("path", cfg.ChartConfigPath).Msg("Chart option not loaded")
	} else {
		state.SetSource(opt)
	}

	optionWatcher, err := config.NewOptionWatcher(cfg.ChartConfigPath, state.SetSource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create chart option watcher, changes will require restart")
	} else {
		if err := optionWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start chart option watcher")
		}
		defer optionWatcher.Stop()
	}

	// ReadHeaderTimeout instead of ReadTimeout so upgraded WebSocket
	// connections are not cut off.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(cfg, state, newExporter(cfg), wsHub),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	defer signal.Stop(reloadChan)

	for {
		select {
		case <-reloadChan:
			log.Info().Msg("Received SIGHUP, reloading chart option")
			if optionWatcher != nil {
				optionWatcher.Reload()
			}

		case err := <-serverErr:
			return fmt.Errorf("http server: %w", err)

		case <-sigChan:
			log.Info().Msg("Shutting down server...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server shutdown error")
			}
			log.Info().Msg("Server stopped")
			return nil
		}
	}
}
