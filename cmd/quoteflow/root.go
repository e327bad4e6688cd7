package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "quoteflow",
	Short: "Multi-provider swap and bridge quoting",
	Long: `quoteflow fans a swap or bridge request out to every configured liquidity
provider, ranks the results and keeps them fresh.

Examples:
  quoteflow serve --config quoteflow.yaml
  quoteflow quote --from BASE.USDC --to ARB.ETH --amount 100 --receiver 0x...
  quoteflow tokens --chain BASE`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
}
