package reporting

import (
	"reflect"
	"time"

	"github.com/hermes-analytics/hermes/pkg/chartopt"
	"github.com/hermes-analytics/hermes/pkg/render"
)

// ReportFormat represents the output format of an export
type ReportFormat string

const (
	FormatPNG ReportFormat = "png"
	FormatPDF ReportFormat = "pdf"
	FormatCSV ReportFormat = "csv"
)

// Content types of the produced artifacts.
const (
	ContentTypePNG = "image/png"
	ContentTypePDF = "application/pdf"
	ContentTypeCSV = "text/csv"
)

// Handle is the live chart an export reads from. Pointer handles get a lock
// of their own; non-comparable value handles share one per type.
type Handle interface {
	DataURL(opts render.DataURLOptions) (string, error)
	SetOption(opt chartopt.Option, notMerge bool)
}

// OffscreenRenderer is implemented by handles that can rasterize an option
// without putting it on screen. Exports prefer it over re-skinning the live
// chart.
type OffscreenRenderer interface {
	RenderDataURL(opt chartopt.Option, opts render.DataURLOptions) (string, error)
}

// ExportRequest bundles the inputs of a single PDF export.
type ExportRequest struct {
	Handle       Handle
	Option       chartopt.Option // theme-merged option currently on display
	IncludeText  bool
	AnalysisText string
	Date         string
}

// Artifact is a finished export ready to be downloaded or written.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Format      ReportFormat
	Pages       int     // PDF only
	PageWidth   float64 // PDF only, mm
	PageHeight  float64 // PDF only, mm
}

// Landscape reports whether a PDF artifact was laid out in landscape.
func (a *Artifact) Landscape() bool {
	return a.PageWidth > a.PageHeight
}

// ImageFilename is the download name of a PNG export.
func ImageFilename(date string) string {
	return "grafico-hermes-" + date + ".png"
}

// PDFFilename is the download name of a PDF export.
func PDFFilename(date string) string {
	return "relatorio-hermes-" + date + ".pdf"
}

// CSVFilename is the download name of a data export.
func CSVFilename(date string) string {
	return "dados-hermes-" + date + ".csv"
}

// Options tunes the exporter.
type Options struct {
	ScreenPixelRatio float64       // PNG export density
	PrintPixelRatio  float64       // PDF snapshot density
	Timeout          time.Duration // zero disables the deadline
	Compress         bool          // compress PDF content streams
}

// DefaultOptions returns the densities used by the browser app.
func DefaultOptions() Options {
	return Options{
		ScreenPixelRatio: 2,
		PrintPixelRatio:  3,
		Timeout:          30 * time.Second,
		Compress:         true,
	}
}

var (
	exportHook func(format ReportFormat, err error, elapsed time.Duration)
)

// SetMetricHook registers a callback invoked after every export attempt.
func SetMetricHook(fn func(format ReportFormat, err error, elapsed time.Duration)) {
	exportHook = fn
}

func recordExport(format ReportFormat, err error, started time.Time) {
	if exportHook != nil {
		exportHook(format, err, time.Since(started))
	}
}

// isNilHandle also catches typed nil pointers stored in the interface.
func isNilHandle(h Handle) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}
