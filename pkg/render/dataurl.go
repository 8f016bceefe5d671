package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
)

// MIME types produced by the renderer.
const (
	MimePNG = "image/png"
	MimeSVG = "image/svg+xml"
)

// ErrInvalidDataURL is returned for anything that is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid data URL")

type outputFormat struct {
	name     string
	mime     string
	provider chart.RendererProvider
}

func parseFormat(t string) (outputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "png":
		return outputFormat{name: "png", mime: MimePNG, provider: chart.PNG}, nil
	case "svg":
		return outputFormat{name: "svg", mime: MimeSVG, provider: chart.SVG}, nil
	default:
		return outputFormat{}, fmt.Errorf("unsupported image type %q", t)
	}
}

// EncodeDataURL wraps raw bytes in a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL returns the MIME type and raw bytes of a base64 data URL.
func DecodeDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}
