package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hermes-analytics/hermes/internal/config"
	"github.com/hermes-analytics/hermes/internal/logging"
	"github.com/hermes-analytics/hermes/internal/metrics"
	"github.com/hermes-analytics/hermes/pkg/theme"
)

var (
	mergeDark  bool
	mergePrint bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Print the chart option merged with a theme",
	Long:  `Print the chart option merged with the light or dark theme. With --print the print-safe variant used for PDF reports is shown instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logging.Shutdown()

		source, err := config.LoadChartOption(cfg.ChartConfigPath)
		if err != nil {
			return err
		}

		merged := theme.Merge(source, mergeDark)
		metrics.RecordThemeMerge(mergeDark)
		if mergePrint {
			merged = theme.PrintSafe(merged)
		}

		out, err := json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return fmt.Errorf("encode merged option: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeDark, "dark", false, "merge with the dark theme")
	mergeCmd.Flags().BoolVar(&mergePrint, "print", false, "show the print-safe re-skin")
}
