package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/SiluPanda/coinmonitor/internal/app"
)

var (
	exportCoin     string
	exportLookback time.Duration
	exportPNGPath  string
	exportCSVPath  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one coin's price history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Coin:     exportCoin,
			Lookback: exportLookback,
			PNGPath:  exportPNGPath,
			CSVPath:  exportCSVPath,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCoin, "coin", "", "Coin code to export, e.g. BTC")
	exportCmd.Flags().DurationVar(&exportLookback, "lookback", 0, "History window to fetch (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
