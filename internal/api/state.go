package api

import (
	"sync"

	"github.com/hermes-analytics/hermes/internal/metrics"
	"github.com/hermes-analytics/hermes/pkg/chartopt"
	"github.com/hermes-analytics/hermes/pkg/render"
	"github.com/hermes-analytics/hermes/pkg/reporting"
	"github.com/hermes-analytics/hermes/pkg/theme"
)

// ChartState owns the source chart option and one live chart per theme.
// Every source change is re-merged for both themes so views and exports
// always see the option that matches their theme.
type ChartState struct {
	mu        sync.RWMutex
	source    chartopt.Option
	merged    map[bool]chartopt.Option
	charts    map[bool]*render.Instance
	listeners []func()
}

// NewChartState creates an empty state whose charts are drawn at width x height.
func NewChartState(width, height int) *ChartState {
	return &ChartState{
		merged: make(map[bool]chartopt.Option),
		charts: map[bool]*render.Instance{
			false: render.NewInstance(width, height),
			true:  render.NewInstance(width, height),
		},
	}
}

// SetSource replaces the source option and re-skins both live charts.
func (s *ChartState) SetSource(opt chartopt.Option) {
	s.mu.Lock()
	s.source = opt
	for _, isDark := range []bool{false, true} {
		merged := theme.Merge(opt, isDark)
		metrics.RecordThemeMerge(isDark)
		s.merged[isDark] = merged
		s.charts[isDark].SetOption(merged, true)
	}
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnChange registers fn to run after every SetSource.
func (s *ChartState) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Source returns the raw option as loaded.
func (s *ChartState) Source() chartopt.Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Merged returns the theme-merged option, nil before the first SetSource.
func (s *ChartState) Merged(isDark bool) chartopt.Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merged[isDark]
}

// Handle returns the live chart for a theme, or nil while nothing has been
// rendered. The nil is untyped so exporters can detect it.
func (s *ChartState) Handle(isDark bool) reporting.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.source == nil {
		return nil
	}
	return s.charts[isDark]
}
