package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermes-analytics/hermes/internal/config"
	"github.com/hermes-analytics/hermes/pkg/reporting"
)

const testChart = `{
	"title": {"text": "Vendas"},
	"legend": {},
	"series": [{
		"type": "pie",
		"data": [{"name": "Norte", "value": 10}, {"name": "Sul", "value": 30}]
	}]
}`

func resetFlags() {
	chartPath = ""
	listenAddr = ""
	exportTheme = ""
	exportOutDir = ""
	exportDate = ""
	exportIncludeText = false
	exportAnalysisFile = ""
	mergeDark = false
	mergePrint = false
}

// setupEnv isolates a test from the caller's environment and writes the
// sample chart option. It returns the chart path.
func setupEnv(t *testing.T) string {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	dir := t.TempDir()
	t.Setenv("HERMES_CONFIG_DIR", dir)
	t.Setenv("HERMES_LOG_LEVEL", "error")
	t.Setenv("HERMES_SCREEN_PIXEL_RATIO", "1")
	t.Setenv("HERMES_PRINT_PIXEL_RATIO", "1")
	t.Setenv("HERMES_CHART_WIDTH", "400")
	t.Setenv("HERMES_CHART_HEIGHT", "300")

	path := filepath.Join(dir, "chart.json")
	require.NoError(t, os.WriteFile(path, []byte(testChart), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := Version, BuildTime, GitCommit
	defer func() {
		Version, BuildTime, GitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	Version = "1.2.3"
	BuildTime = "2024-01-01"
	GitCommit = "abcdef"

	output, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "Hermes 1.2.3")
	assert.Contains(t, output, "Built: 2024-01-01")
	assert.Contains(t, output, "Commit: abcdef")

	BuildTime = "unknown"
	GitCommit = "unknown"
	output, err = execute(t, "version")
	require.NoError(t, err)
	assert.NotContains(t, output, "Built:")
	assert.NotContains(t, output, "Commit:")
}

func TestMergeCmd(t *testing.T) {
	path := setupEnv(t)

	output, err := execute(t, "merge", "--chart", path, "--dark")
	require.NoError(t, err)

	var merged map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &merged))
	title := merged["title"].(map[string]any)
	assert.Equal(t, "#e5e7eb", title["textStyle"].(map[string]any)["color"])
	series := merged["series"].([]any)[0].(map[string]any)
	assert.Equal(t, "#ffffff", series["label"].(map[string]any)["color"])
}

func TestMergeCmd_Print(t *testing.T) {
	path := setupEnv(t)

	output, err := execute(t, "merge", "--chart", path, "--dark", "--print")
	require.NoError(t, err)

	var merged map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &merged))
	assert.Equal(t, "#ffffff", merged["backgroundColor"])
	series := merged["series"].([]any)[0].(map[string]any)
	label := series["label"].(map[string]any)
	assert.Equal(t, "#1f2937", label["color"])
	assert.Equal(t, "#ffffff", label["textBorderColor"])
}

func TestMergeCmd_MissingChart(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "merge", "--chart", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestExportCmds(t *testing.T) {
	tests := []struct {
		format string
		args   []string
		file   string
		magic  string
	}{
		{"png", nil, "grafico-hermes-05_03_2024.png", "\x89PNG"},
		{"pdf", nil, "relatorio-hermes-05_03_2024.pdf", "%PDF-"},
		{"pdf", []string{"--include-text"}, "relatorio-hermes-05_03_2024.pdf", "%PDF-"},
		{"csv", nil, "dados-hermes-05_03_2024.csv", ""},
	}

	for _, tc := range tests {
		t.Run(tc.format+strings.Join(tc.args, ""), func(t *testing.T) {
			path := setupEnv(t)
			outDir := t.TempDir()

			analysis := filepath.Join(t.TempDir(), "analysis.md")
			require.NoError(t, os.WriteFile(analysis, []byte("# Resumo\nSul lidera."), 0644))

			args := []string{"export", tc.format, "--chart", path, "--out", outDir, "--date", "05/03/2024"}
			if tc.format == "pdf" {
				args = append(args, "--analysis-file", analysis)
			}
			args = append(args, tc.args...)

			output, err := execute(t, args...)
			require.NoError(t, err)

			written := filepath.Join(outDir, tc.file)
			assert.Equal(t, written, strings.TrimSpace(output))

			data, err := os.ReadFile(written)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(data), tc.magic))
		})
	}
}

func TestResolveExportParams(t *testing.T) {
	resetFlags()
	defer resetFlags()

	cfg := config.Default()
	cfg.Dark = true
	cfg.OutputDir = "/srv/exports"
	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)

	params, err := resolveExportParams(cfg, reporting.FormatPNG, now)
	require.NoError(t, err)
	assert.True(t, params.Dark)
	assert.Equal(t, "/srv/exports", params.OutDir)
	assert.Equal(t, "05/03/2024", params.Date)

	exportTheme = "light"
	exportOutDir = "out"
	exportDate = "hoje"
	params, err = resolveExportParams(cfg, reporting.FormatPNG, now)
	require.NoError(t, err)
	assert.False(t, params.Dark)
	assert.Equal(t, "out", params.OutDir)
	assert.Equal(t, "hoje", params.Date)

	exportTheme = "sepia"
	_, err = resolveExportParams(cfg, reporting.FormatPNG, now)
	assert.Error(t, err)
}

func TestRunExport_MissingChart(t *testing.T) {
	cfg := config.Default()
	cfg.ChartConfigPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := runExport(context.Background(), cfg, exportParams{Format: reporting.FormatPNG, Date: "x"})
	assert.Error(t, err)
}

func TestMetricsServer(t *testing.T) {
	srv := newMetricsServer("127.0.0.1:0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hermes_view_clients")

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
