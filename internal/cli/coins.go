package cli

import (
	"github.com/spf13/cobra"
)

var coinsCmd = &cobra.Command{
	Use:   "coins",
	Short: "Print the current top monitorable coins",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Coins(cmd.Context())
	},
}
