package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/hermes-analytics/hermes/pkg/chartopt"
)

// Config holds the runtime settings of the hermes server and CLI.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	LogLevel  string
	LogFormat string
	LogFile   string

	ChartConfigPath string // JSON chart option document
	AnalysisPath    string // optional analysis text for PDF exports
	Dark            bool
	OutputDir       string
	DateLayout      string

	ScreenPixelRatio float64
	PrintPixelRatio  float64
	ChartWidth       int
	ChartHeight      int
	ExportTimeout    time.Duration

	// EnvOverrides records which settings came from the environment.
	EnvOverrides map[string]bool
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ListenAddr:       "127.0.0.1:7700",
		MetricsAddr:      "127.0.0.1:9107",
		LogLevel:         "info",
		LogFormat:        "auto",
		ChartConfigPath:  "chart.json",
		OutputDir:        ".",
		DateLayout:       "02/01/2006",
		ScreenPixelRatio: 2,
		PrintPixelRatio:  3,
		ChartWidth:       800,
		ChartHeight:      600,
		ExportTimeout:    30 * time.Second,
		EnvOverrides:     make(map[string]bool),
	}
}

// Load reads an optional .env file and applies HERMES_* environment overrides
// on top of the defaults.
func Load() (*Config, error) {
	envFile := ".env"
	if dir := os.Getenv("HERMES_CONFIG_DIR"); dir != "" {
		envFile = filepath.Join(dir, ".env")
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			log.Debug().Str("file", envFile).Msg("Loaded .env file")
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"HERMES_LISTEN_ADDR":   &c.ListenAddr,
		"HERMES_METRICS_ADDR":  &c.MetricsAddr,
		"HERMES_LOG_LEVEL":     &c.LogLevel,
		"HERMES_LOG_FORMAT":    &c.LogFormat,
		"HERMES_LOG_FILE":      &c.LogFile,
		"HERMES_CHART_CONFIG":  &c.ChartConfigPath,
		"HERMES_ANALYSIS_FILE": &c.AnalysisPath,
		"HERMES_OUTPUT_DIR":    &c.OutputDir,
		"HERMES_DATE_FORMAT":   &c.DateLayout,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
			c.EnvOverrides[key] = true
			log.Debug().Str("env", key).Msg("Setting overridden by environment")
		}
	}

	if v, ok := os.LookupEnv("HERMES_THEME"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "dark":
			c.Dark = true
		case "light", "":
			c.Dark = false
		default:
			return fmt.Errorf("HERMES_THEME: unknown theme %q", v)
		}
		c.EnvOverrides["HERMES_THEME"] = true
	}

	floats := map[string]*float64{
		"HERMES_SCREEN_PIXEL_RATIO": &c.ScreenPixelRatio,
		"HERMES_PRINT_PIXEL_RATIO":  &c.PrintPixelRatio,
	}
	for key, dst := range floats {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
			c.EnvOverrides[key] = true
		}
	}

	ints := map[string]*int{
		"HERMES_CHART_WIDTH":  &c.ChartWidth,
		"HERMES_CHART_HEIGHT": &c.ChartHeight,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
			c.EnvOverrides[key] = true
		}
	}

	if v, ok := os.LookupEnv("HERMES_EXPORT_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("HERMES_EXPORT_TIMEOUT: %w", err)
		}
		c.ExportTimeout = d
		c.EnvOverrides["HERMES_EXPORT_TIMEOUT"] = true
	}
	return nil
}

// Validate rejects settings the exporter cannot work with.
func (c *Config) Validate() error {
	if c.ScreenPixelRatio <= 0 {
		return fmt.Errorf("screen pixel ratio must be positive, got %v", c.ScreenPixelRatio)
	}
	if c.PrintPixelRatio <= 0 {
		return fmt.Errorf("print pixel ratio must be positive, got %v", c.PrintPixelRatio)
	}
	if c.ChartWidth <= 0 || c.ChartHeight <= 0 {
		return fmt.Errorf("chart size must be positive, got %dx%d", c.ChartWidth, c.ChartHeight)
	}
	if c.ExportTimeout < 0 {
		return fmt.Errorf("export timeout must not be negative, got %s", c.ExportTimeout)
	}
	if strings.TrimSpace(c.DateLayout) == "" {
		return fmt.Errorf("date layout must not be empty")
	}
	return nil
}

// FormatDate renders t with the configured date layout.
func (c *Config) FormatDate(t time.Time) string {
	return t.Format(c.DateLayout)
}

// LoadChartOption reads a JSON chart option document.
func LoadChartOption(path string) (chartopt.Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chart option %s: %w", path, err)
	}
	opt, err := chartopt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse chart option %s: %w", path, err)
	}
	return opt, nil
}

// LoadAnalysisText reads the analysis text file. An empty path yields "".
func LoadAnalysisText(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read analysis text %s: %w", path, err)
	}
	return string(data), nil
}
