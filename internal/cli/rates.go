package cli

import (
	"github.com/spf13/cobra"

	"fintrack/internal/app"
)

var ratesBase string

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "List stored rate samples for a base currency",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Rates(cmd.Context(), app.RatesOptions{Base: ratesBase})
	},
}

func init() {
	ratesCmd.Flags().StringVar(&ratesBase, "base", "", "Base currency (defaults to the pivot currency)")
}
