package reporting

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // register the PNG decoder for DecodeConfig
	"reflect"
	"sync"
	"time"

	exporterrors "github.com/hermes-analytics/hermes/internal/errors"
	"github.com/hermes-analytics/hermes/internal/logging"
	"github.com/hermes-analytics/hermes/pkg/chartopt"
	"github.com/hermes-analytics/hermes/pkg/render"
	"github.com/hermes-analytics/hermes/pkg/theme"
	"golang.org/x/sync/semaphore"
)

// Snapshot backgrounds of the PNG export.
const (
	ImageBackgroundDark  = "#0B0E14"
	ImageBackgroundLight = "#ffffff"
)

// Exporter produces PNG and PDF exports from a live chart handle.
type Exporter struct {
	opts  Options
	pdf   *PDFGenerator
	csv   *CSVGenerator
	locks sync.Map // Handle or its reflect.Type -> *semaphore.Weighted
}

// NewExporter creates an exporter. Zero pixel ratios fall back to the defaults.
func NewExporter(opts Options) *Exporter {
	defaults := DefaultOptions()
	if opts.ScreenPixelRatio <= 0 {
		opts.ScreenPixelRatio = defaults.ScreenPixelRatio
	}
	if opts.PrintPixelRatio <= 0 {
		opts.PrintPixelRatio = defaults.PrintPixelRatio
	}
	return &Exporter{
		opts: opts,
		pdf:  NewPDFGenerator(opts.Compress),
		csv:  NewCSVGenerator(),
	}
}

// Options returns the effective exporter options.
func (e *Exporter) Options() Options {
	return e.opts
}

func (e *Exporter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.Timeout > 0 {
		return context.WithTimeout(ctx, e.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func imageBackground(isDark bool) string {
	if isDark {
		return ImageBackgroundDark
	}
	return ImageBackgroundLight
}

// ExportImage snapshots the chart at screen density on a theme-matching
// background.
func (e *Exporter) ExportImage(ctx context.Context, handle Handle, isDark bool, date string) (artifact *Artifact, err error) {
	const op = "export_png"
	started := time.Now()
	defer func() { recordExport(FormatPNG, err, started) }()

	if isNilHandle(handle) {
		return nil, exporterrors.Precondition(op, "chart has not rendered yet")
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := logging.FromContext(ctx)

	url, err := handle.DataURL(render.DataURLOptions{
		Type:            "png",
		PixelRatio:      e.opts.ScreenPixelRatio,
		BackgroundColor: imageBackground(isDark),
	})
	if err != nil {
		return nil, exporterrors.NewExportError(exporterrors.ErrorTypeRender, op, err).WithFormat(string(FormatPNG))
	}
	_, data, err := render.DecodeDataURL(url)
	if err != nil {
		return nil, exporterrors.NewExportError(exporterrors.ErrorTypeDecode, op, err).WithFormat(string(FormatPNG))
	}
	if err := ctx.Err(); err != nil {
		return nil, exporterrors.WrapContextError(op, err)
	}

	logger.Info().
		Str("format", string(FormatPNG)).
		Bool("dark", isDark).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(started)).
		Msg("Chart image exported")

	return &Artifact{
		Filename:    ImageFilename(date),
		ContentType: ContentTypePNG,
		Data:        data,
		Format:      FormatPNG,
	}, nil
}

// ExportPDF rasterizes a print-safe version of the chart and composes the
// report document.
func (e *Exporter) ExportPDF(ctx context.Context, req ExportRequest) (artifact *Artifact, err error) {
	const op = "export_pdf"
	started := time.Now()
	defer func() { recordExport(FormatPDF, err, started) }()

	if isNilHandle(req.Handle) {
		return nil, exporterrors.Precondition(op, "chart has not rendered yet")
	}
	if req.Option == nil {
		return nil, exporterrors.Precondition(op, "chart option is missing")
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := logging.FromContext(ctx)

	url, err := e.printSnapshot(ctx, req.Handle, req.Option)
	if err != nil {
		return nil, err
	}

	img, err := loadSnapshot(url)
	if err != nil {
		return nil, exporterrors.NewExportError(exporterrors.ErrorTypeDecode, op, err).WithFormat(string(FormatPDF))
	}
	if err := ctx.Err(); err != nil {
		return nil, exporterrors.WrapContextError(op, err)
	}

	doc, err := e.pdf.Generate(&ReportData{
		Date:         req.Date,
		Image:        img.data,
		ImageWidth:   img.width,
		ImageHeight:  img.height,
		IncludeText:  req.IncludeText,
		AnalysisText: req.AnalysisText,
	})
	if err != nil {
		return nil, exporterrors.NewExportError(exporterrors.ErrorTypeCompose, op, err).WithFormat(string(FormatPDF))
	}

	logger.Info().
		Str("format", string(FormatPDF)).
		Bool("include_text", req.IncludeText).
		Int("pages", doc.Pages).
		Int("bytes", len(doc.Data)).
		Dur("elapsed", time.Since(started)).
		Msg("Chart report exported")

	return &Artifact{
		Filename:    PDFFilename(req.Date),
		ContentType: ContentTypePDF,
		Data:        doc.Data,
		Format:      FormatPDF,
		Pages:       doc.Pages,
		PageWidth:   doc.PageWidth,
		PageHeight:  doc.PageHeight,
	}, nil
}

// ExportCSV writes the data of the chart option as a table.
func (e *Exporter) ExportCSV(ctx context.Context, opt chartopt.Option, date string) (artifact *Artifact, err error) {
	const op = "export_csv"
	started := time.Now()
	defer func() { recordExport(FormatCSV, err, started) }()

	if opt == nil {
		return nil, exporterrors.Precondition(op, "chart option is missing")
	}
	data, err := e.csv.Generate(opt, date)
	if err != nil {
		return nil, exporterrors.NewExportError(exporterrors.ErrorTypeCompose, op, err).WithFormat(string(FormatCSV))
	}
	logging.FromContext(ctx).Debug().Int("bytes", len(data)).Msg("Chart data exported")

	return &Artifact{
		Filename:    CSVFilename(date),
		ContentType: ContentTypeCSV,
		Data:        data,
		Format:      FormatCSV,
	}, nil
}

// printSnapshot rasterizes the print re-skin of merged. Handles that can
// render off-screen are never touched; others are re-skinned, captured and
// restored while holding the handle's export lock.
func (e *Exporter) printSnapshot(ctx context.Context, handle Handle, merged chartopt.Option) (string, error) {
	const op = "rasterize"
	printOpt := theme.PrintSafe(merged)
	opts := render.DataURLOptions{
		Type:            "png",
		PixelRatio:      e.opts.PrintPixelRatio,
		BackgroundColor: theme.PrintBackground,
	}

	if off, ok := handle.(OffscreenRenderer); ok {
		url, err := off.RenderDataURL(printOpt, opts)
		if err != nil {
			return "", exporterrors.NewExportError(exporterrors.ErrorTypeRender, op, err).WithFormat(string(FormatPDF))
		}
		return url, nil
	}

	sem := e.lockFor(handle)
	if err := sem.Acquire(ctx, 1); err != nil {
		return "", exporterrors.WrapContextError(op, err)
	}
	defer sem.Release(1)

	handle.SetOption(printOpt, true)
	url, err := handle.DataURL(opts)
	handle.SetOption(merged, true)
	if err != nil {
		return "", exporterrors.NewExportError(exporterrors.ErrorTypeRender, op, err).WithFormat(string(FormatPDF))
	}
	return url, nil
}

// lockFor returns the export lock of handle, keyed by the handle itself.
// Handle values that cannot be map keys (a struct holding a map, say) share
// one lock per dynamic type.
func (e *Exporter) lockFor(handle Handle) *semaphore.Weighted {
	var key any = handle
	if !reflect.ValueOf(handle).Comparable() {
		key = reflect.TypeOf(handle)
	}
	sem, _ := e.locks.LoadOrStore(key, semaphore.NewWeighted(1))
	return sem.(*semaphore.Weighted)
}

type snapshot struct {
	data   []byte
	width  int
	height int
}

// loadSnapshot decodes a PNG data URL far enough to know its pixel size.
func loadSnapshot(url string) (*snapshot, error) {
	mime, data, err := render.DecodeDataURL(url)
	if err != nil {
		return nil, err
	}
	if mime != ContentTypePNG {
		return nil, fmt.Errorf("%w: snapshot is %s, want %s", exporterrors.ErrInvalidImage, mime, ContentTypePNG)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", exporterrors.ErrInvalidImage, err)
	}
	return &snapshot{data: data, width: cfg.Width, height: cfg.Height}, nil
}
