package reporting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/hermes-analytics/hermes/pkg/chartopt"
)

// CSVGenerator writes the data behind a chart as CSV.
type CSVGenerator struct{}

// NewCSVGenerator creates a new CSV generator.
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Generate creates a CSV table from the series of opt.
func (g *CSVGenerator) Generate(opt chartopt.Option, date string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := g.writeHeader(w, opt, date); err != nil {
		return nil, fmt.Errorf("write CSV header section: %w", err)
	}

	if err := g.writeData(w, opt); err != nil {
		return nil, fmt.Errorf("write CSV data section: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV write error: %w", err)
	}

	return buf.Bytes(), nil
}

// writeHeader writes the report header information.
func (g *CSVGenerator) writeHeader(w *csv.Writer, opt chartopt.Option, date string) error {
	title := chartopt.String(chartopt.Map(opt[chartopt.KeyTitle]), chartopt.KeyText)
	headers := [][]string{
		{"# Hermes Chart Data"},
		{"# Title:", title},
		{"# Date:", date},
		{""},
	}

	for _, row := range headers {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write header row %q: %w", row[0], err)
		}
	}
	return nil
}

// writeData writes one row per data point of every series.
func (g *CSVGenerator) writeData(w *csv.Writer, opt chartopt.Option) error {
	if err := w.Write([]string{"Series", "Type", "Name", "Value"}); err != nil {
		return fmt.Errorf("write data column headers: %w", err)
	}

	categories := axisCategories(opt)
	series, _ := chartopt.Slice(opt[chartopt.KeySeries])
	for i, s := range series {
		m := chartopt.Map(s)
		if m == nil {
			continue
		}
		name := chartopt.String(m, chartopt.KeyName)
		if name == "" {
			name = "series " + strconv.Itoa(i+1)
		}
		seriesType := chartopt.String(m, chartopt.KeyType)

		data, _ := chartopt.Slice(m[chartopt.KeyData])
		for j, d := range data {
			label, value := dataPoint(d)
			if label == "" && j < len(categories) {
				label = categories[j]
			}
			if err := w.Write([]string{name, seriesType, label, value}); err != nil {
				return fmt.Errorf("write data row for series %q: %w", name, err)
			}
		}
	}
	return nil
}

func dataPoint(d any) (string, string) {
	switch v := d.(type) {
	case map[string]any:
		return chartopt.String(v, chartopt.KeyName), formatCell(v["value"])
	case []any:
		if len(v) == 0 {
			return "", ""
		}
		if len(v) == 1 {
			return "", formatCell(v[0])
		}
		return formatCell(v[0]), formatCell(v[len(v)-1])
	}
	return "", formatCell(d)
}

func axisCategories(opt chartopt.Option) []string {
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
		out[i] = formatCell(d)
	}
	return out
}

// formatCell formats a value with full precision.
func formatCell(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
