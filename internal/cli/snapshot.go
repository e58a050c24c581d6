package cli

import (
	"github.com/spf13/cobra"

	"pairwatch/internal/app"
)

var snapshotFromRedis bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one refresh cycle against the tick store and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Snapshot(cmd.Context(), app.SnapshotOptions{FromRedis: snapshotFromRedis})
	},
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotFromRedis, "from-redis", false, "Print the last snapshot published to Redis instead")
}
