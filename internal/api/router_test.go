package api

import (
	"bytes"
	"encoding/json"
	"fmt"
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
	exporterrors "github.com/hermes-analytics/hermes/internal/errors"
	"github.com/hermes-analytics/hermes/pkg/chartopt"
	"github.com/hermes-analytics/hermes/pkg/reporting"
)

const samplePie = `{
	"title": {"text": "Vendas por região"},
	"legend": {"bottom": 0},
	"series": [{
		"type": "pie",
		"data": [
			{"name": "Norte", "value": 10},
			{"name": "Sul", "value": 30},
			{"name": "Uma região com um nome bem comprido", "value": 60}
		]
	}]
}`

func newTestServer(t *testing.T, loaded bool) (http.Handler, *ChartState) {
	t.Helper()
	cfg := config.Default()
	cfg.ChartWidth = 400
	cfg.ChartHeight = 300

	state := NewChartState(cfg.ChartWidth, cfg.ChartHeight)
	if loaded {
		opt, err := chartopt.Parse([]byte(samplePie))
		require.NoError(t, err)
		state.SetSource(opt)
	}

	opts := reporting.DefaultOptions()
	opts.ScreenPixelRatio = 1
	opts.PrintPixelRatio = 1
	exporter := reporting.NewExporter(opts)
	return NewRouter(cfg, state, exporter, nil), state
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHandleChart_MergedForTheme(t *testing.T) {
	h, _ := newTestServer(t, true)

	tests := []struct {
		theme      string
		titleColor string
		labelColor string
	}{
		{"dark", "#e5e7eb", "#ffffff"},
		{"light", "#374151", "#1f2937"},
	}

	for _, tc := range tests {
		t.Run(tc.theme, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/api/chart?theme="+tc.theme, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var opt map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opt))

			title := opt["title"].(map[string]any)
			assert.Equal(t, "Vendas por região", title["text"])
			assert.Equal(t, tc.titleColor, title["textStyle"].(map[string]any)["color"])

			series := opt["series"].([]any)[0].(map[string]any)
			assert.Equal(t, []any{"40%", "60%"}, series["radius"])
			label := series["label"].(map[string]any)
			assert.Equal(t, true, label["show"])
			assert.Equal(t, tc.labelColor, label["color"])
			assert.Equal(t, chartopt.LabelTemplate, label["formatter"])
		})
	}
}

func TestHandleChart_Errors(t *testing.T) {
	h, _ := newTestServer(t, false)

	rec := serve(h, http.MethodGet, "/api/chart", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "precondition_failed", decodeAPIError(t, rec).Code)

	rec = serve(h, http.MethodGet, "/api/chart?theme=sepia", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPost, "/api/chart", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleExportPNG(t *testing.T) {
	h, _ := newTestServer(t, true)

	rec := serve(h, http.MethodPost, "/api/export/png?theme=dark", `{"date":"05/03/2024"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, reporting.ContentTypePNG, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="grafico-hermes-05/03/2024.png"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestHandleExportPNG_NotRendered(t *testing.T) {
	h, _ := newTestServer(t, false)

	rec := serve(h, http.MethodPost, "/api/export/png", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "precondition_failed", decodeAPIError(t, rec).Code)
}

func TestHandleExportPDF(t *testing.T) {
	h, _ := newTestServer(t, true)

	body := `{"includeText":true,"analysisText":"# Resumo\n**Sul** lidera","date":"05/03/2024"}`
	rec := serve(h, http.MethodPost, "/api/export/pdf?theme=dark", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, reporting.ContentTypePDF, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="relatorio-hermes-05/03/2024.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestHandleExportPDF_AnalysisFileFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analise.md")
	require.NoError(t, os.WriteFile(path, []byte("Arquivo"), 0o644))

	cfg := config.Default()
	cfg.ChartWidth = 400
	cfg.ChartHeight = 300
	cfg.AnalysisPath = path

	state := NewChartState(cfg.ChartWidth, cfg.ChartHeight)
	opt, err := chartopt.Parse([]byte(samplePie))
	require.NoError(t, err)
	state.SetSource(opt)
	h := NewRouter(cfg, state, reporting.NewExporter(reporting.Options{PrintPixelRatio: 1}), nil)

	tests := []struct {
		name     string
		body     string
		fromFile bool
	}{
		{"empty text reads the file", `{"includeText":true,"analysisText":""}`, true},
		{"missing text reads the file", `{"includeText":true}`, true},
		{"blank text is kept", `{"includeText":true,"analysisText":"   "}`, false},
		{"own text wins", `{"includeText":true,"analysisText":"Enviado"}`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, http.MethodPost, "/api/export/pdf", tc.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			pdf := rec.Body.Bytes()
			assert.Contains(t, string(pdf), "lise Detalhada", "analysis page")
			assert.Equal(t, tc.fromFile, bytes.Contains(pdf, []byte("(Arquivo) Tj")))
		})
	}
}

func TestHandleExportPDF_BadBody(t *testing.T) {
	h, _ := newTestServer(t, true)

	rec := serve(h, http.MethodPost, "/api/export/pdf", `{"includeText":"yes please"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, "/api/export/pdf", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleExportCSV(t *testing.T) {
	h, _ := newTestServer(t, true)

	rec := serve(h, http.MethodGet, "/api/export/csv", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, reporting.ContentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dados-hermes-")
	assert.Contains(t, rec.Body.String(), "Norte")
}

func TestHandleExports_History(t *testing.T) {
	h, _ := newTestServer(t, true)

	rec := serve(h, http.MethodPost, "/api/export/png?theme=light", `{"date":"05/03/2024"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = serve(h, http.MethodGet, "/api/export/csv", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/exports", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Exports []ExportRecord `json:"exports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Exports, 2)

	assert.Equal(t, "csv", resp.Exports[0].Format)
	assert.Empty(t, resp.Exports[0].Theme)
	assert.Equal(t, "png", resp.Exports[1].Format)
	assert.Equal(t, "light", resp.Exports[1].Theme)
	assert.Equal(t, "grafico-hermes-05/03/2024.png", resp.Exports[1].Filename)
	assert.True(t, resp.Exports[1].Success)
	assert.Positive(t, resp.Exports[1].Bytes)
	assert.NotEmpty(t, resp.Exports[1].ID)

	rec = serve(h, http.MethodGet, "/api/exports?limit=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Exports, 1)

	rec = serve(h, http.MethodGet, "/api/exports?limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExports_RecordsFailures(t *testing.T) {
	h, _ := newTestServer(t, false)

	rec := serve(h, http.MethodPost, "/api/export/pdf?theme=dark", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(h, http.MethodGet, "/api/exports", "")
	var resp struct {
		Exports []ExportRecord `json:"exports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Exports, 1)
	assert.False(t, resp.Exports[0].Success)
	assert.Equal(t, "chart has not rendered yet", resp.Exports[0].Error)
	assert.Equal(t, "dark", resp.Exports[0].Theme)
}

func TestChartHandlers_DefaultDate(t *testing.T) {
	cfg := config.Default()
	handlers := NewChartHandlers(cfg, NewChartState(200, 150), reporting.NewExporter(reporting.DefaultOptions()))
	handlers.now = func() time.Time { return time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC) }

	assert.Equal(t, "05/03/2024", handlers.date(exportBody{}))
	assert.Equal(t, "01/01/2020", handlers.date(exportBody{Date: " 01/01/2020 "}))
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestServer(t, true)

	rec := serve(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["chart_loaded"])
}

func TestHandleView(t *testing.T) {
	h, _ := newTestServer(t, true)

	rec := serve(h, http.MethodGet, "/?theme=dark", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `class="dark"`)
	assert.Contains(t, body, "echarts.min.js")
	assert.Contains(t, body, `"dark"`)

	rec = serve(h, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorHandler_RequestIDAndPanic(t *testing.T) {
	panicky := ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chart", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	panicky.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, "internal_error", apiErr.Code)
	assert.Equal(t, "req-123", apiErr.RequestID)
}

func TestWriteExportError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"precondition", exporterrors.Precondition("export_png", "chart has not rendered yet"), http.StatusConflict, "precondition_failed"},
		{"timeout", exporterrors.NewExportError(exporterrors.ErrorTypeTimeout, "export_pdf", nil), http.StatusGatewayTimeout, "timeout"},
		{"canceled", exporterrors.NewExportError(exporterrors.ErrorTypeCanceled, "export_pdf", nil), http.StatusServiceUnavailable, "canceled"},
		{"other", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "export_failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeExportError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			apiErr := decodeAPIError(t, rec)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.NotContains(t, apiErr.ErrorMessage, "disk on fire")
		})
	}
}

func TestNormalizeRoute(t *testing.T) {
	assert.Equal(t, "/", normalizeRoute(""))
	assert.Equal(t, "/api/export/pdf", normalizeRoute("/api/export/pdf"))
	assert.Equal(t, "other", normalizeRoute("/wp-admin/setup.php"))
}
