package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pairwatch/internal/config"
)

var runProvider string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest the trade feed and refresh signals until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if runProvider != "" {
			provider := strings.ToLower(runProvider)
			if provider != config.ProviderBinance && provider != config.ProviderStub {
				return fmt.Errorf("--provider must be %q or %q", config.ProviderBinance, config.ProviderStub)
			}
			a.Config.Feed.Provider = provider
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Override feed.provider (binance or stub)")
}
