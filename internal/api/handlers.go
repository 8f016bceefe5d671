package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hermes-analytics/hermes/internal/buffer"
	"github.com/hermes-analytics/hermes/internal/config"
	exporterrors "github.com/hermes-analytics/hermes/internal/errors"
	"github.com/hermes-analytics/hermes/internal/logging"
	"github.com/hermes-analytics/hermes/internal/utils"
	"github.com/hermes-analytics/hermes/pkg/reporting"
)

// ChartHandlers serves the chart view, its option and the exports
type ChartHandlers struct {
	config   *config.Config
	state    *ChartState
	exporter *reporting.Exporter
	history  *buffer.Ring[ExportRecord]
	now      func() time.Time
	started  time.Time
}

// exportHistorySize is how many exports /api/exports remembers.
const exportHistorySize = 50

// ExportRecord describes one finished or failed export
type ExportRecord struct {
	ID         string    `json:"id"`
	Format     string    `json:"format"`
	Theme      string    `json:"theme,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Bytes      int       `json:"bytes"`
	Pages      int       `json:"pages,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"durationMs"`
}

// NewChartHandlers creates the chart handlers
func NewChartHandlers(cfg *config.Config, state *ChartState, exporter *reporting.Exporter) *ChartHandlers {
	return &ChartHandlers{
		config:   cfg,
		state:    state,
		exporter: exporter,
		history:  buffer.New[ExportRecord](exportHistorySize),
		now:      time.Now,
		started:  time.Now(),
	}
}

// exportBody is the optional JSON body of the export endpoints
type exportBody struct {
	IncludeText  bool   `json:"includeText"`
	AnalysisText string `json:"analysisText"`
	Date         string `json:"date"`
}

// parseTheme reads ?theme=dark|light. ok is false for unknown themes.
func parseTheme(r *http.Request, fallback bool) (isDark, ok bool) {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("theme"))) {
	case "":
		return fallback, true
	case "dark":
		return true, true
	case "light":
		return false, true
	default:
		return false, false
	}
}

func themeName(isDark bool) string {
	if isDark {
		return "dark"
	}
	return "light"
}

// record remembers the outcome of an export for /api/exports.
func (h *ChartHandlers) record(format reporting.ReportFormat, theme string, artifact *reporting.Artifact, err error, started time.Time) {
	rec := ExportRecord{
		ID:         uuid.NewString(),
		Format:     string(format),
		Theme:      theme,
		Success:    err == nil,
		Timestamp:  started,
		DurationMs: h.now().Sub(started).Milliseconds(),
	}
	if artifact != nil {
		rec.Filename = artifact.Filename
		rec.Bytes = len(artifact.Data)
		rec.Pages = artifact.Pages
	}
	if err != nil {
		rec.Error = exporterrors.Reason(err)
	}
	h.history.Push(rec)
}

func (h *ChartHandlers) date(body exportBody) string {
	if d := strings.TrimSpace(body.Date); d != "" {
		return d
	}
	return h.config.FormatDate(h.now())
}

// HandleChart returns the theme-merged option as JSON
func (h *ChartHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	isDark, ok := parseTheme(r, h.config.Dark)
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_theme", "theme must be 'dark' or 'light'", nil)
		return
	}

	merged := h.state.Merged(isDark)
	if merged == nil {
		writeErrorResponse(w, http.StatusConflict, "precondition_failed", "chart option is not loaded", nil)
		return
	}
	if err := utils.WriteJSONResponse(w, merged); err != nil {
		log.Error().Err(err).Msg("Failed to write chart option")
	}
}

// HandleExportPNG snapshots the live chart of the requested theme
func (h *ChartHandlers) HandleExportPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	isDark, ok := parseTheme(r, h.config.Dark)
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_theme", "theme must be 'dark' or 'light'", nil)
		return
	}
	var body exportBody
	if err := utils.DecodeJSONBody(w, r, &body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}

	started := h.now()
	artifact, err := h.exporter.ExportImage(r.Context(), h.state.Handle(isDark), isDark, h.date(body))
	h.record(reporting.FormatPNG, themeName(isDark), artifact, err, started)
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeArtifact(w, r, artifact)
}

// HandleExportPDF composes the report from the print-safe chart
func (h *ChartHandlers) HandleExportPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	isDark, ok := parseTheme(r, h.config.Dark)
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_theme", "theme must be 'dark' or 'light'", nil)
		return
	}
	var body exportBody
	if err := utils.DecodeJSONBody(w, r, &body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}

	text := body.AnalysisText
	if body.IncludeText && text == "" {
		// Fall back to the analysis file the server was started with. Text made
		// of blanks is kept and still gets its analysis page.
		loaded, err := config.LoadAnalysisText(h.config.AnalysisPath)
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, "analysis_unavailable",
				sanitizeErrorForClient(err, "Failed to read analysis text"), nil)
			return
		}
		text = loaded
	}

	started := h.now()
	artifact, err := h.exporter.ExportPDF(r.Context(), reporting.ExportRequest{
		Handle:       h.state.Handle(isDark),
		Option:       h.state.Merged(isDark),
		IncludeText:  body.IncludeText,
		AnalysisText: text,
		Date:         h.date(body),
	})
	h.record(reporting.FormatPDF, themeName(isDark), artifact, err, started)
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeArtifact(w, r, artifact)
}

// HandleExportCSV writes the chart data as a CSV table
func (h *ChartHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body exportBody
	if r.Method == http.MethodPost {
		if err := utils.DecodeJSONBody(w, r, &body); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
			return
		}
	}

	started := h.now()
	artifact, err := h.exporter.ExportCSV(r.Context(), h.state.Source(), h.date(body))
	h.record(reporting.FormatCSV, "", artifact, err, started)
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeArtifact(w, r, artifact)
}

// HandleExports lists the most recent exports, newest first
func (h *ChartHandlers) HandleExports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}

	resp := map[string]any{"exports": h.history.Recent(limit)}
	if err := utils.WriteJSONResponse(w, resp); err != nil {
		log.Error().Err(err).Msg("Failed to write export history")
	}
}

// HandleHealth handles health check requests
func (h *ChartHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]any{
		"status":       "healthy",
		"timestamp":    h.now().Unix(),
		"uptime":       time.Since(h.started).Seconds(),
		"chart_loaded": h.state.Source() != nil,
	}
	if err := utils.WriteJSONResponse(w, health); err != nil {
		log.Error().Err(err).Msg("Failed to write health response")
	}
}

func writeArtifact(w http.ResponseWriter, r *http.Request, artifact *reporting.Artifact) {
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", utils.ContentDisposition(artifact.Filename))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(artifact.Data); err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Str("file", artifact.Filename).Msg("Failed to write export")
	}
}
