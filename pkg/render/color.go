package render

import (
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

var namedColors = map[string]drawing.Color{
	"white":       drawing.ColorWhite,
	"black":       drawing.ColorBlack,
	"transparent": drawing.ColorTransparent,
}

// parseColor understands the CSS color forms that show up in chart options:
// #rgb, #rrggbb, #rrggbbaa, rgb(), rgba() and a few names.
func parseColor(v any) (drawing.Color, bool) {
	s, ok := v.(string)
	if !ok {
		return drawing.Color{}, false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		return parseHex(hex)
	}
	if body, ok := strings.CutPrefix(s, "rgba("); ok {
		return parseRGB(strings.TrimSuffix(body, ")"), true)
	}
	if body, ok := strings.CutPrefix(s, "rgb("); ok {
		return parseRGB(strings.TrimSuffix(body, ")"), false)
	}
	return drawing.Color{}, false
}

func parseHex(hex string) (drawing.Color, bool) {
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 && len(hex) != 8 {
		return drawing.Color{}, false
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return drawing.Color{}, false
	}
	return drawing.Color{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, true
}

func parseRGB(body string, alpha bool) (drawing.Color, bool) {
	parts := strings.Split(body, ",")
	want := 3
	if alpha {
		want = 4
	}
	if len(parts) != want {
		return drawing.Color{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return drawing.Color{}, false
		}
		ch[i] = uint8(n)
	}
	a := uint8(255)
	if alpha {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || f < 0 || f > 1 {
			return drawing.Color{}, false
		}
		a = uint8(f * 255)
	}
	return drawing.Color{R: ch[0], G: ch[1], B: ch[2], A: a}, true
}
