package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hermes-analytics/hermes/pkg/chartopt"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoSeries is returned for options without any drawable series.
var ErrNoSeries = errors.New("chart option has no series")

var defaultBackground = drawing.ColorWhite

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

type canvas struct {
	width      int
	height     int
	pixelRatio float64
	background string
}

func (c canvas) scaled() (int, int, float64) {
	ratio := c.pixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	return int(math.Round(float64(c.width) * ratio)),
		int(math.Round(float64(c.height) * ratio)),
		chart.DefaultDPI * ratio
}

func (c canvas) fill(opt chartopt.Option) drawing.Color {
	if col, ok := parseColor(c.background); ok {
		return col
	}
	if col, ok := parseColor(opt[chartopt.KeyBackgroundColor]); ok {
		return col
	}
	return defaultBackground
}

// slice is one named data point of a series.
type slice struct {
	name  string
	raw   any
	value float64
}

func build(opt chartopt.Option, cv canvas) (renderable, error) {
	series, _ := chartopt.Slice(opt[chartopt.KeySeries])
	if len(series) == 0 {
		return nil, ErrNoSeries
	}
	first := chartopt.Map(series[0])
	if first == nil {
		return nil, fmt.Errorf("series[0] is %T, want an object", series[0])
	}

	width, height, dpi := cv.scaled()
	bg := chart.Style{FillColor: cv.fill(opt)}
	title, titleStyle := titleOf(opt)

	switch chartopt.String(first, chartopt.KeyType) {
	case chartopt.SeriesTypePie:
		values, err := pieValues(first)
		if err != nil {
			return nil, err
		}
		if isDonut(first[chartopt.KeyRadius]) {
			return chart.DonutChart{
				Title: title, TitleStyle: titleStyle,
				Width: width, Height: height, DPI: dpi,
				Background: bg, Canvas: bg,
				Values: values,
			}, nil
		}
		return chart.PieChart{
			Title: title, TitleStyle: titleStyle,
			Width: width, Height: height, DPI: dpi,
			Background: bg, Canvas: bg,
			Values: values,
		}, nil
	case "bar":
		if len(series) == 1 {
			bars := barValues(opt, first)
			if len(bars) == 0 {
				return nil, ErrNoSeries
			}
			ys := make([]float64, len(bars))
			for i, b := range bars {
				ys[i] = b.Value
			}
			return chart.BarChart{
				Title: title, TitleStyle: titleStyle,
				Width: width, Height: height, DPI: dpi,
				Background: bg, Canvas: bg,
				YAxis: chart.YAxis{Range: valueRange(ys)},
				Bars:  bars,
			}, nil
		}
	}
	return lineChart(opt, series, title, titleStyle, width, height, dpi, bg)
}

func lineChart(opt chartopt.Option, series []any, title string, titleStyle chart.Style, width, height int, dpi float64, bg chart.Style) (renderable, error) {
	categories := categoriesOf(opt)
	graph := chart.Chart{
		Title: title, TitleStyle: titleStyle,
		Width: width, Height: height, DPI: dpi,
		Background: bg, Canvas: bg,
	}

	var all []float64
	points := 0
	for i, s := range series {
		m := chartopt.Map(s)
		if m == nil {
			continue
		}
		data := dataOf(m)
		if len(data) == 0 {
			continue
		}
		xs := make([]float64, len(data))
		ys := make([]float64, len(data))
		for j, p := range data {
			xs[j] = float64(j)
			ys[j] = p.value
		}
		all = append(all, ys...)
		points = max(points, len(data))
		name := chartopt.String(m, chartopt.KeyName)
		if name == "" {
			name = "series " + strconv.Itoa(i+1)
		}
		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeWidth: 2},
		})
	}
	if len(graph.Series) == 0 {
		return nil, ErrNoSeries
	}
	graph.YAxis = chart.YAxis{Range: valueRange(all)}

	// go-chart rejects an axis whose range has zero width, so a single
	// point is centred in a unit-wide window.
	span := max(points, len(categories))
	if span <= 1 {
		graph.XAxis.Range = &chart.ContinuousRange{Min: -0.5, Max: 0.5}
	}
	if len(categories) > 0 {
		ticks := make([]chart.Tick, len(categories))
		for i, c := range categories {
			ticks[i] = chart.Tick{Value: float64(i), Label: c}
		}
		// ticks set the x range, so they must cover every point
		switch {
		case span <= 1:
			ticks = append([]chart.Tick{{Value: -0.5}}, append(ticks, chart.Tick{Value: 0.5})...)
		case len(categories) < span:
			ticks = append(ticks, chart.Tick{Value: float64(span - 1)})
		}
		graph.XAxis.Ticks = ticks
	}

	if legend := chartopt.Map(opt[chartopt.KeyLegend]); legend != nil {
		graph.Elements = []chart.Renderable{chart.Legend(&graph, textStyleOf(legend))}
	}
	return graph, nil
}

// valueRange spans the values and zero. An all-zero series gets [0, 1].
func valueRange(values []float64) *chart.ContinuousRange {
	var lo, hi float64
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		hi = 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func titleOf(opt chartopt.Option) (string, chart.Style) {
	t := chartopt.Map(opt[chartopt.KeyTitle])
	if t == nil {
		return "", chart.Style{}
	}
	if show, ok := t["show"].(bool); ok && !show {
		return "", chart.Style{Hidden: true}
	}
	return chartopt.String(t, chartopt.KeyText), textStyleOf(t)
}

func textStyleOf(section map[string]any) chart.Style {
	var st chart.Style
	ts := chartopt.Map(section[chartopt.KeyTextStyle])
	if col, ok := parseColor(ts["color"]); ok {
		st.FontColor = col
	}
	if size, ok := chartopt.Number(ts["fontSize"]); ok {
		st.FontSize = size
	}
	return st
}

func isDonut(radius any) bool {
	r, ok := chartopt.Slice(radius)
	return ok && len(r) == 2
}

func pieValues(series map[string]any) ([]chart.Value, error) {
	// zero and negative slices take no angle and are not drawn
	var points []slice
	var total float64
	for _, p := range dataOf(series) {
		if p.value > 0 {
			points = append(points, p)
			total += p.value
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("pie series %q has no positive data", chartopt.String(series, chartopt.KeyName))
	}

	label := chartopt.Map(series[chartopt.KeyLabel])
	show := true
	if v, ok := label["show"].(bool); ok {
		show = v
	}
	var labelStyle chart.Style
	if col, ok := parseColor(label["color"]); ok {
		labelStyle.FontColor = col
	}
	if size, ok := chartopt.Number(label["fontSize"]); ok {
		labelStyle.FontSize = size
	}

	values := make([]chart.Value, 0, len(points))
	for _, p := range points {
		v := chart.Value{Value: p.value, Style: labelStyle}
		if show {
			percent := math.Round(p.value/total*10000) / 100
			v.Label = formatLabel(label["formatter"], series, p, percent)
		}
		values = append(values, v)
	}
	return values, nil
}

// formatLabel applies a Go formatter or an ECharts string template.
func formatLabel(formatter any, series map[string]any, p slice, percent float64) string {
	switch f := formatter.(type) {
	case chartopt.LabelFormatter:
		return f(p.name, p.raw, percent)
	case func(string, any, float64) string:
		return f(p.name, p.raw, percent)
	case string:
		return strings.NewReplacer(
			"{a}", chartopt.String(series, chartopt.KeyName),
			"{b}", p.name,
			"{c}", formatRaw(p.raw),
			"{d}", strconv.FormatFloat(percent, 'f', -1, 64),
		).Replace(f)
	}
	return p.name
}

func formatRaw(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func barValues(opt chartopt.Option, series map[string]any) []chart.Value {
	categories := categoriesOf(opt)
	points := dataOf(series)
	bars := make([]chart.Value, len(points))
	for i, p := range points {
		name := p.name
		if name == "" && i < len(categories) {
			name = categories[i]
		}
		bars[i] = chart.Value{Label: name, Value: p.value}
	}
	return bars
}

// categoriesOf reads xAxis.data, accepting a single axis or a list of axes.
func categoriesOf(opt chartopt.Option) []string {
	axis := opt[chartopt.KeyXAxis]
	if axes, ok := chartopt.Slice(axis); ok {
		if len(axes) == 0 {
			return nil
		}
		axis = axes[0]
	}
	data, _ := chartopt.Slice(chartopt.Map(axis)[chartopt.KeyData])
	out := make([]string, len(data))
	for i, d := range data {
		if m := chartopt.Map(d); m != nil {
			out[i] = formatRaw(m["value"])
			continue
		}
		out[i] = formatRaw(d)
	}
	return out
}

// dataOf reads series.data as plain numbers, {name, value} objects or
// [x, y] pairs. Entries without a numeric value are skipped.
func dataOf(series map[string]any) []slice {
	data, _ := chartopt.Slice(series[chartopt.KeyData])
	out := make([]slice, 0, len(data))
	for _, d := range data {
		var p slice
		switch v := d.(type) {
		case map[string]any:
			p.name = chartopt.String(v, chartopt.KeyName)
			p.raw = v["value"]
		case []any:
			if len(v) == 0 {
				continue
			}
			p.raw = v[len(v)-1]
		default:
			p.raw = v
		}
		n, ok := numeric(p.raw)
		if !ok {
			continue
		}
		p.value = n
		out = append(out, p)
	}
	return out
}

func numeric(v any) (float64, bool) {
	if n, ok := chartopt.Number(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return n, err == nil
	}
	return 0, false
}
