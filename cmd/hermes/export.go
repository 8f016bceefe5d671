package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hermes-analytics/hermes/internal/config"
	"github.com/hermes-analytics/hermes/internal/logging"
	"github.com/hermes-analytics/hermes/internal/metrics"
	"github.com/hermes-analytics/hermes/pkg/reporting"
	"github.com/hermes-analytics/hermes/pkg/render"
	"github.com/hermes-analytics/hermes/pkg/theme"
)

var (
	exportTheme        string
	exportOutDir       string
	exportDate         string
	exportIncludeText  bool
	exportAnalysisFile string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the chart as a PNG image, PDF report or CSV table",
}

var exportPNGCmd = &cobra.Command{
	Use:   "png",
	Short: "Export the chart as a PNG image",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExportCmd(cmd, reporting.FormatPNG)
	},
}

var exportPDFCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Export the chart as a PDF report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExportCmd(cmd, reporting.FormatPDF)
	},
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Export the chart data as a CSV table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExportCmd(cmd, reporting.FormatCSV)
	},
}

func init() {
	exportCmd.PersistentFlags().StringVar(&exportTheme, "theme", "", "dark or light (defaults to HERMES_THEME)")
	exportCmd.PersistentFlags().StringVarP(&exportOutDir, "out", "o", "", "output directory (defaults to HERMES_OUTPUT_DIR)")
	exportCmd.PersistentFlags().StringVar(&exportDate, "date", "", "date used in the file name and report (defaults to today)")
	exportPDFCmd.Flags().BoolVar(&exportIncludeText, "include-text", false, "add the analysis text pages")
	exportPDFCmd.Flags().StringVar(&exportAnalysisFile, "analysis-file", "", "analysis text file (defaults to HERMES_ANALYSIS_FILE)")

	exportCmd.AddCommand(exportPNGCmd)
	exportCmd.AddCommand(exportPDFCmd)
	exportCmd.AddCommand(exportCSVCmd)
}

// exportParams are the resolved inputs of a command-line export
type exportParams struct {
	Format       reporting.ReportFormat
	Dark         bool
	OutDir       string
	Date         string
	IncludeText  bool
	AnalysisPath string
}

func runExportCmd(cmd *cobra.Command, format reporting.ReportFormat) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	params, err := resolveExportParams(cfg, format, time.Now())
	if err != nil {
		return err
	}

	ctx, _ := logging.WithRequestID(cmd.Context(), "")
	path, err := runExport(ctx, cfg, params)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func resolveExportParams(cfg *config.Config, format reporting.ReportFormat, now time.Time) (exportParams, error) {
	params := exportParams{
		Format:       format,
		Dark:         cfg.Dark,
		OutDir:       cfg.OutputDir,
		Date:         cfg.FormatDate(now),
		IncludeText:  exportIncludeText,
		AnalysisPath: cfg.AnalysisPath,
	}

	switch strings.ToLower(strings.TrimSpace(exportTheme)) {
	case "":
	case "dark":
		params.Dark = true
	case "light":
		params.Dark = false
	default:
		return params, fmt.Errorf("unknown theme %q (want dark or light)", exportTheme)
	}
	if exportOutDir != "" {
		params.OutDir = exportOutDir
	}
	if d := strings.TrimSpace(exportDate); d != "" {
		params.Date = d
	}
	if exportAnalysisFile != "" {
		params.AnalysisPath = exportAnalysisFile
	}
	return params, nil
}

// runExport renders the configured chart off-screen, exports it and writes
// the artifact to the output directory. It returns the written path.
func runExport(ctx context.Context, cfg *config.Config, params exportParams) (string, error) {
	source, err := config.LoadChartOption(cfg.ChartConfigPath)
	if err != nil {
		return "", err
	}

	merged := theme.Merge(source, params.Dark)
	metrics.RecordThemeMerge(params.Dark)

	chart := render.NewInstance(cfg.ChartWidth, cfg.ChartHeight)
	chart.SetOption(merged, true)

	exporter := newExporter(cfg)

	var artifact *reporting.Artifact
	switch params.Format {
	case reporting.FormatPNG:
		artifact, err = exporter.ExportImage(ctx, chart, params.Dark, params.Date)
	case reporting.FormatPDF:
		var text string
		if params.IncludeText {
			if text, err = config.LoadAnalysisText(params.AnalysisPath); err != nil {
				return "", err
			}
		}
		artifact, err = exporter.ExportPDF(ctx, reporting.ExportRequest{
			Handle:       chart,
			Option:       merged,
			IncludeText:  params.IncludeText,
			AnalysisText: text,
			Date:         params.Date,
		})
	case reporting.FormatCSV:
		artifact, err = exporter.ExportCSV(ctx, source, params.Date)
	default:
		return "", fmt.Errorf("unsupported export format %q", params.Format)
	}
	if err != nil {
		return "", err
	}

	sink := reporting.FileSink{Dir: params.OutDir}
	if err := sink.Deliver(ctx, artifact); err != nil {
		return "", err
	}
	return sink.Path(artifact), nil
}
