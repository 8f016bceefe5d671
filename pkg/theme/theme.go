// Package theme decorates chart options for the dark and light UI themes and
// for print output.
package theme

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hermes-analytics/hermes/pkg/chartopt"
)

// Screen palette.
const (
	TextColorDark   = "#e5e7eb"
	TextColorLight  = "#374151"
	LabelColorDark  = "#ffffff"
	LabelColorLight = "#1f2937"

	TitleFontSize  = 16
	LegendFontSize = 12
)

// Print palette. Applied regardless of the on-screen theme.
const (
	PrintBackground   = "#ffffff"
	PrintTextColor    = "#374151"
	PrintLabelColor   = "#1f2937"
	PrintLabelOutline = "#ffffff"
	PrintOutlineWidth = 2
)

// MaxLabelNameLength is the number of characters kept from a pie slice name.
const MaxLabelNameLength = 20

const ellipsis = "..."

// PieRadius is the inner and outer radius forced onto pie series.
var PieRadius = []any{"40%", "60%"}

// PercentageFormatter renders "name\nvalue (percent%)", cutting names longer
// than MaxLabelNameLength characters.
func PercentageFormatter(name string, value any, percent float64) string {
	return TruncateName(name) + "\n" + FormatValue(value) + " (" + strconv.FormatFloat(percent, 'f', -1, 64) + "%)"
}

// TruncateName keeps the first MaxLabelNameLength characters of name and
// appends an ellipsis when anything was cut.
func TruncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= MaxLabelNameLength {
		return name
	}
	return string(runes[:MaxLabelNameLength]) + ellipsis
}

// FormatValue prints a slice value the way a script runtime would: integral
// floats without a fraction, strings verbatim.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func textColor(isDark bool) string {
	if isDark {
		return TextColorDark
	}
	return TextColorLight
}

func labelColor(isDark bool) string {
	if isDark {
		return LabelColorDark
	}
	return LabelColorLight
}

// Merge returns a copy of cfg decorated for the given theme. Title and legend
// text styles are replaced, pie series get a fixed radius and a percentage
// label. A nil cfg yields nil.
func Merge(cfg chartopt.Option, isDark bool) chartopt.Option {
	if cfg == nil {
		return nil
	}
	color := textColor(isDark)
	pieLabel := labelColor(isDark)

	return cfg.Override(map[string]func(any) any{
		chartopt.KeyTitle: func(v any) any {
			return chartopt.MergeMap(v, map[string]any{
				chartopt.KeyTextStyle: map[string]any{"color": color, "fontSize": TitleFontSize},
			})
		},
		chartopt.KeyLegend: func(v any) any {
			return chartopt.MergeMap(v, map[string]any{
				chartopt.KeyTextStyle: map[string]any{"color": color, "fontSize": LegendFontSize},
			})
		},
		chartopt.KeySeries: func(v any) any {
			return chartopt.MapSeries(v, func(s any) any {
				if !chartopt.IsPie(s) {
					return s
				}
				return chartopt.MergeMap(s, map[string]any{
					chartopt.KeyRadius: append([]any(nil), PieRadius...),
					chartopt.KeyLabel: chartopt.MergeMap(chartopt.Map(s)[chartopt.KeyLabel], map[string]any{
						"show":      true,
						"formatter": chartopt.LabelFormatter(PercentageFormatter),
						"color":     pieLabel,
					}),
				})
			})
		},
	})
}

// PrintSafe returns a copy of a merged option re-skinned for a white page:
// white background, dark title and legend text, and outlined dark pie labels.
// Other text style fields are kept.
func PrintSafe(merged chartopt.Option) chartopt.Option {
	if merged == nil {
		return nil
	}
	recolor := func(v any) any {
		section := chartopt.Map(v)
		return chartopt.MergeMap(v, map[string]any{
			chartopt.KeyTextStyle: chartopt.MergeMap(section[chartopt.KeyTextStyle], map[string]any{"color": PrintTextColor}),
		})
	}

	out := merged.Override(map[string]func(any) any{
		chartopt.KeyTitle:  recolor,
		chartopt.KeyLegend: recolor,
		chartopt.KeySeries: func(v any) any {
			return chartopt.MapSeries(v, func(s any) any {
				if !chartopt.IsPie(s) {
					return s
				}
				return chartopt.MergeMap(s, map[string]any{
					chartopt.KeyLabel: chartopt.MergeMap(chartopt.Map(s)[chartopt.KeyLabel], map[string]any{
						"color":           PrintLabelColor,
						"textBorderColor": PrintLabelOutline,
						"textBorderWidth": PrintOutlineWidth,
					}),
				})
			})
		},
	})
	out[chartopt.KeyBackgroundColor] = PrintBackground
	return out
}
