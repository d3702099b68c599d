package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// Coins fetches and prints the current top monitorable coins.
func (a *App) Coins(ctx context.Context) error {
	provider := a.newProvider()
	snapshots, err := provider.ListTopCoins(ctx, a.Config.Market.TopLimit, a.Config.Market.QuoteCurrency)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stdout, "no coins returned")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Code\tName\tRate (%s)\tVolume\tMarket Cap\n", a.Config.Market.QuoteCurrency)
	for _, snap := range snapshots {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			snap.Code,
			snap.Name,
			snap.Rate.StringFixed(4),
			snap.Volume.StringFixed(0),
			snap.Cap.StringFixed(0),
		)
	}
	return writer.Flush()
}
