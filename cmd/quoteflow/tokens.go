package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/quoteflow/swaps"
)

var (
	tokensChain string
	tokensJSON  bool
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens"},
	Short:   "List the assets quotes can be requested for",
	RunE:    runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&tokensChain, "chain", "", "only list one chain, e.g. BASE")
	tokensCmd.Flags().BoolVar(&tokensJSON, "json", false, "print JSON")
}

func runTokens(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var chainID uint64
	if tokensChain != "" {
		chain, ok := swaps.ChainByName(tokensChain)
		if !ok {
			return fmt.Errorf("unknown chain %q", tokensChain)
		}
		chainID = chain.ID
	}

	a, err := newApp(ctx, os.Stderr, false)
	if err != nil {
		return err
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = os.Stderr
	if !tokensJSON {
		s.Suffix = " Loading token lists..."
		s.Start()
	}
	a.loadCurrencies(ctx)
	s.Stop()

	list := a.registry.Currencies(chainID)
	if tokensJSON {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(list) == 0 {
		fmt.Println("\nNo tokens found.")
		return nil
	}

	var current uint64
	for _, c := range list {
		if c.ChainID != current {
			current = c.ChainID
			name := fmt.Sprint(c.ChainID)
			if chain, ok := swaps.ChainByID(c.ChainID); ok {
				name = chain.Name
			}
			color.Cyan("\n%s", name)
			fmt.Println(strings.Repeat("-", 72))
		}
		address := c.Address
		if c.IsNative() {
			address = "native"
		}
		fmt.Printf("  %-10s  %2d decimals  %s\n", color.YellowString(c.Symbol), c.Decimals, color.HiBlackString(address))
	}
	fmt.Printf("\nTotal: %d tokens\n\n", len(list))
	return nil
}
