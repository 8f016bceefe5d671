// Package render turns chart options into raster snapshots with go-chart.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/hermes-analytics/hermes/pkg/chartopt"
)

// Default canvas size in CSS pixels, before the pixel ratio is applied.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// ErrNoOption is returned when a snapshot is requested before any option was set.
var ErrNoOption = errors.New("chart has no option")

// DataURLOptions mirrors the snapshot options of the browser chart engine.
type DataURLOptions struct {
	Type            string  // "png" (default) or "svg"
	PixelRatio      float64 // multiplier applied to width, height and DPI
	BackgroundColor string  // CSS color; empty falls back to the option's backgroundColor
}

// Instance is a live chart: the option currently on display plus the canvas
// size it is drawn at. It is safe for concurrent use.
type Instance struct {
	mu     sync.RWMutex
	option chartopt.Option
	width  int
	height int
}

// NewInstance creates a chart drawn at width x height CSS pixels. Non-positive
// sizes fall back to the defaults.
func NewInstance(width, height int) *Instance {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Instance{width: width, height: height}
}

// SetOption replaces the displayed option when notMerge is set, otherwise
// merges its top-level keys into the current one.
func (i *Instance) SetOption(opt chartopt.Option, notMerge bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if notMerge || i.option == nil {
		i.option = opt
		return
	}
	merged := i.option.Clone()
	for k, v := range opt {
		merged[k] = v
	}
	i.option = merged
}

// Option returns the option currently on display.
func (i *Instance) Option() chartopt.Option {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.option
}

// Size returns the canvas size in CSS pixels.
func (i *Instance) Size() (int, int) {
	return i.width, i.height
}

// DataURL snapshots the option currently on display.
func (i *Instance) DataURL(opts DataURLOptions) (string, error) {
	opt := i.Option()
	if opt == nil {
		return "", ErrNoOption
	}
	return i.RenderDataURL(opt, opts)
}

// RenderDataURL snapshots opt without touching the displayed option.
func (i *Instance) RenderDataURL(opt chartopt.Option, opts DataURLOptions) (string, error) {
	if opt == nil {
		return "", ErrNoOption
	}
	format, err := parseFormat(opts.Type)
	if err != nil {
		return "", err
	}

	c, err := build(opt, canvas{
		width:      i.width,
		height:     i.height,
		pixelRatio: opts.PixelRatio,
		background: opts.BackgroundColor,
	})
	if err != nil {
		return "", fmt.Errorf("build chart: %w", err)
	}

	var buf bytes.Buffer
	if err := c.Render(format.provider, &buf); err != nil {
		return "", fmt.Errorf("render %s: %w", format.name, err)
	}
	return EncodeDataURL(format.mime, buf.Bytes()), nil
}
