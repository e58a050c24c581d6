package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pairwatch/internal/app"
)

var (
	ticksInstrument string
	ticksSince      time.Duration
	ticksLimit      int
)

var ticksCmd = &cobra.Command{
	Use:   "ticks",
	Short: "Display recent stored ticks for an instrument",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ticksLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		if ticksSince < 0 {
			return fmt.Errorf("--since cannot be negative")
		}

		opts := app.TicksOptions{
			Instrument: ticksInstrument,
			Since:      ticksSince,
			Limit:      ticksLimit,
		}
		return getApp().Ticks(cmd.Context(), opts)
	},
}

func init() {
	ticksCmd.Flags().StringVar(&ticksInstrument, "instrument", "", "Instrument to show (defaults to the first configured symbol)")
	ticksCmd.Flags().DurationVar(&ticksSince, "since", 0, "Only show ticks newer than this age, e.g. 10m")
	ticksCmd.Flags().IntVar(&ticksLimit, "limit", 20, "Number of ticks to display")
}
