package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/app"
)

var (
	reportFrom     string
	reportTo       string
	reportCurrency string
	reportNotes    string
	reportCSVPath  string
	reportPNGPath  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a balance and category report in a target currency",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReportOptions{
			Currency: reportCurrency,
			Notes:    reportNotes,
			CSVPath:  reportCSVPath,
			PNGPath:  reportPNGPath,
		}

		now := time.Now().UTC()
		opts.From = now.AddDate(0, -1, 0)
		opts.To = now

		if reportFrom != "" {
			from, err := time.Parse("2006-01-02", reportFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = from
		}

		if reportTo != "" {
			to, err := time.Parse("2006-01-02", reportTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = to
		}

		return getApp().Report(cmd.Context(), opts)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start date (YYYY-MM-DD, inclusive; defaults to one month ago)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End date (YYYY-MM-DD, inclusive; defaults to today)")
	reportCmd.Flags().StringVar(&reportCurrency, "currency", "", "Target currency (defaults to config)")
	reportCmd.Flags().StringVar(&reportNotes, "notes", "", "Free-form notes attached to the report")
	reportCmd.Flags().StringVar(&reportCSVPath, "csv", "", "Path to write monthly buckets as CSV")
	reportCmd.Flags().StringVar(&reportPNGPath, "png", "", "Path to write monthly income/expense chart as PNG")
}
