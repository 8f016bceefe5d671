package api

import (
	"net/http"

	"github.com/hermes-analytics/hermes/internal/config"
	"github.com/hermes-analytics/hermes/internal/websocket"
	"github.com/hermes-analytics/hermes/pkg/reporting"
)

const (
	routeView      = "/"
	routeChart     = "/api/chart"
	routeExportPNG = "/api/export/png"
	routeExportPDF = "/api/export/pdf"
	routeExportCSV = "/api/export/csv"
	routeExports   = "/api/exports"
	routeWebSocket = "/ws"
	routeHealth    = "/healthz"
)

// Router handles HTTP routing
type Router struct {
	mux      *http.ServeMux
	config   *config.Config
	state    *ChartState
	exporter *reporting.Exporter
	wsHub    *websocket.Hub
	handlers *ChartHandlers
}

// NewRouter creates the HTTP handler of the chart server
func NewRouter(cfg *config.Config, state *ChartState, exporter *reporting.Exporter, wsHub *websocket.Hub) http.Handler {
	r := &Router{
		mux:      http.NewServeMux(),
		config:   cfg,
		state:    state,
		exporter: exporter,
		wsHub:    wsHub,
		handlers: NewChartHandlers(cfg, state, exporter),
	}

	r.setupRoutes()
	return ErrorHandler(r.mux)
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	r.mux.HandleFunc(routeView, r.handlers.HandleView)
	r.mux.HandleFunc(routeChart, r.handlers.HandleChart)
	r.mux.HandleFunc(routeExportPNG, r.handlers.HandleExportPNG)
	r.mux.HandleFunc(routeExportPDF, r.handlers.HandleExportPDF)
	r.mux.HandleFunc(routeExportCSV, r.handlers.HandleExportCSV)
	r.mux.HandleFunc(routeExports, r.handlers.HandleExports)
	r.mux.HandleFunc(routeHealth, r.handlers.HandleHealth)

	if r.wsHub != nil {
		r.mux.HandleFunc(routeWebSocket, r.wsHub.HandleWebSocket)
	}
}

// HubState returns the websocket state getter: the option merged for the
// theme the client asked for in its ?theme= query.
func HubState(cfg *config.Config, state *ChartState) func(r *http.Request) any {
	return func(r *http.Request) any {
		isDark, ok := parseTheme(r, cfg.Dark)
		if !ok {
			isDark = cfg.Dark
		}
		merged := state.Merged(isDark)
		if merged == nil {
			return nil
		}
		return merged
	}
}
