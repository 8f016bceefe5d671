package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hermes-analytics/hermes/internal/metrics"
	"github.com/hermes-analytics/hermes/pkg/theme"
)

//go:embed templates/view.html
var viewFS embed.FS

var viewTemplate = template.Must(template.ParseFS(viewFS, "templates/view.html"))

// ViewTitle is the heading of the chart page.
const ViewTitle = "Hermes"

type viewData struct {
	Title         string
	Theme         string
	Dark          bool
	Width         int
	Height        int
	MaxNameLength int
}

// HandleView renders the chart page for the requested theme
func (h *ChartHandlers) HandleView(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routeView {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	isDark, ok := parseTheme(r, h.config.Dark)
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_theme", "theme must be 'dark' or 'light'", nil)
		return
	}

	var buf bytes.Buffer
	err := viewTemplate.Execute(&buf, viewData{
		Title:         ViewTitle,
		Theme:         metrics.ThemeLabel(isDark),
		Dark:          isDark,
		Width:         h.config.ChartWidth,
		Height:        h.config.ChartHeight,
		MaxNameLength: theme.MaxLabelNameLength,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "render_failed",
			sanitizeErrorForClient(err, "Failed to render chart view"), nil)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug().Err(err).Msg("Failed to write chart view")
	}
}
