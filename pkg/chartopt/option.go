// Package chartopt holds the ECharts-style option document shared by the theme
// merger, the renderer and the exporters.
package chartopt

import (
	"encoding/json"
	"fmt"
)

// Option is an opaque chart option document. Keys that nothing in this module
// interprets are carried through untouched.
type Option map[string]any

// Well-known top-level keys.
const (
	KeyTitle           = "title"
	KeyLegend          = "legend"
	KeySeries          = "series"
	KeyBackgroundColor = "backgroundColor"
	KeyTextStyle       = "textStyle"
	KeyLabel           = "label"
	KeyType            = "type"
	KeyRadius          = "radius"
	KeyData            = "data"
	KeyXAxis           = "xAxis"
	KeyName            = "name"
	KeyText            = "text"
)

// SeriesTypePie is the series type that gets label overrides.
const SeriesTypePie = "pie"

// Parse decodes a JSON option document.
func Parse(data []byte) (Option, error) {
	var opt Option
	if err := json.Unmarshal(data, &opt); err != nil {
		return nil, fmt.Errorf("decode chart option: %w", err)
	}
	return opt, nil
}

// Clone returns a shallow copy. Nested values are shared with the source.
func (o Option) Clone() Option {
	if o == nil {
		return nil
	}
	out := make(Option, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Override returns a shallow copy of o with the named keys replaced by the
// result of their override function. A key is only rewritten when it is
// present and non-nil in o; absent keys stay absent.
func (o Option) Override(overrides map[string]func(v any) any) Option {
	if o == nil {
		return nil
	}
	out := o.Clone()
	for key, fn := range overrides {
		v, ok := o[key]
		if !ok || v == nil {
			continue
		}
		out[key] = fn(v)
	}
	return out
}

// Has reports whether the top-level key is present and non-nil.
func (o Option) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// MergeMap copies base and applies fields on top of it. A base that is not a
// map is treated as empty.
func MergeMap(base any, fields map[string]any) map[string]any {
	src := Map(base)
	out := make(map[string]any, len(src)+len(fields))
	for k, v := range src {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Map returns v as a string-keyed map, or nil.
func Map(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Option:
		return m
	}
	return nil
}

// Slice returns v as a slice of elements and whether it is one.
func Slice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

// MapSeries rewrites every element of a slice-valued series field with fn.
// Non-slice values are returned unchanged.
func MapSeries(series any, fn func(elem any) any) any {
	items, ok := Slice(series)
	if !ok {
		return series
	}
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = fn(s)
	}
	return out
}

// IsPie reports whether a series element has type "pie".
func IsPie(series any) bool {
	m := Map(series)
	if m == nil {
		return false
	}
	t, _ := m[KeyType].(string)
	return t == SeriesTypePie
}

// String returns s[key] when it is a string.
func String(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Number returns v as a float64 when it is numeric.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// LabelFormatter formats a slice label from its name, raw value and percentage
// share. It may be stored under a series' label.formatter key.
type LabelFormatter func(name string, value any, percent float64) string

// LabelTemplate is the ECharts string template closest to the default pie
// label: name, value and percent on two lines.
const LabelTemplate = "{b}\n{c} ({d}%)"

// MarshalJSON encodes the formatter as LabelTemplate so options holding Go
// formatters can still be sent to a browser.
func (f LabelFormatter) MarshalJSON() ([]byte, error) {
	return json.Marshal(LabelTemplate)
}
