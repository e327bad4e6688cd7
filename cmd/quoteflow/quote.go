package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/quotestate"
	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/slippage"
	"github.com/RaghavSood/quoteflow/swaps"
)

type quoteOptions struct {
	from      string
	to        string
	amount    string
	receiver  string
	sender    string
	slippage  string
	minOut    string
	preCalls  []string
	postCalls []string
	destGas   uint64
	timeout   time.Duration
}

var quoteFlags quoteOptions

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Fetch ranked quotes once and print them",
	Long: `Fetch quotes from every configured provider and print them ranked by
expected output.

Examples:
  quoteflow quote --from BASE.USDC --to ARB.ETH --amount 100 --receiver 0x...
  quoteflow quote --from ETH.USDT --to BASE.USDC --amount 250 --slippage 1
  quoteflow quote --from BASE.USDC --to ARB.USDC --amount 50 --receiver 0x... \
      --post-call 0xTarget:0xcalldata --dest-gas 250000 --min-out 49.9`,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	f := quoteCmd.Flags()
	f.StringVar(&quoteFlags.from, "from", "", "source asset as CHAIN.SYMBOL[-0xcontract]")
	f.StringVar(&quoteFlags.to, "to", "", "destination asset as CHAIN.SYMBOL[-0xcontract]")
	f.StringVar(&quoteFlags.amount, "amount", "", "amount of the source asset, in whole units")
	f.StringVar(&quoteFlags.receiver, "receiver", "", "destination address")
	f.StringVar(&quoteFlags.sender, "sender", "", "source address, used for refunds")
	f.StringVar(&quoteFlags.slippage, "slippage", "", "slippage tolerance in percent (default from config)")
	f.StringVar(&quoteFlags.minOut, "min-out", "", "required destination amount in whole units; warns when a quote falls short")
	f.StringArrayVar(&quoteFlags.preCalls, "call", nil, "call to run before the trade, as TARGET:DATA[:VALUE] (repeatable)")
	f.StringArrayVar(&quoteFlags.postCalls, "post-call", nil, "call to run after the trade, as TARGET:DATA[:VALUE] (repeatable)")
	f.Uint64Var(&quoteFlags.destGas, "dest-gas", 0, "gas budget for post calls on the destination chain")
	f.DurationVar(&quoteFlags.timeout, "timeout", 45*time.Second, "give up after this long")
	quoteCmd.MarkFlagRequired("from")
	quoteCmd.MarkFlagRequired("to")
	quoteCmd.MarkFlagRequired("amount")
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), quoteFlags.timeout)
	defer cancel()

	a, err := newApp(ctx, os.Stderr, false)
	if err != nil {
		return err
	}
	defer a.Close()
	a.loadCurrencies(ctx)

	slip, err := a.cfg.DefaultSlippage()
	if err != nil {
		return err
	}
	req, err := quoteFlags.request(a.registry, slip)
	if err != nil {
		return err
	}

	e := engine.New(a.router,
		engine.WithLogger(a.logger),
		engine.WithCurrencies(a.registry),
		engine.WithValidator(slippage.New(a.slippageConfig())),
		engine.WithRefreshInterval(time.Hour),
	)
	go e.Run(ctx)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Fetching quotes for %s %s → %s...", req.Amount.Decimal(), req.Amount.Currency, req.To)
	s.Writer = os.Stderr
	s.Start()

	v, err := quoteOnce(ctx, e, req)
	s.Stop()
	if err != nil {
		return err
	}
	printQuotes(v)
	return nil
}

// quoteOnce submits req to a running engine and returns the first settled
// view.
func quoteOnce(ctx context.Context, e *engine.Engine, req *swaps.QuoteRequest) (engine.View, error) {
	views, unsubscribe := e.Subscribe()
	defer unsubscribe()

	e.SetRequest(req)
	v, err := waitSettled(ctx, views)
	if err != nil {
		return v, err
	}
	if v.Status == quotestate.Error {
		return v, errors.New(v.Error)
	}
	return v, nil
}

// request resolves the options into a quote request. defaultSlippage is a
// fraction and applies when no --slippage was given.
func (o quoteOptions) request(reg *resolver.Registry, defaultSlippage decimal.Decimal) (*swaps.QuoteRequest, error) {
	resolve := func(s string) (swaps.Currency, error) {
		asset, err := swaps.ParseAsset(s)
		if err != nil {
			return swaps.Currency{}, err
		}
		return reg.Resolve(asset)
	}

	from, err := resolve(o.from)
	if err != nil {
		return nil, err
	}
	to, err := resolve(o.to)
	if err != nil {
		return nil, err
	}
	amount, err := swaps.ParseAmount(from, o.amount)
	if err != nil {
		return nil, err
	}

	req := &swaps.QuoteRequest{
		Amount:         amount,
		To:             to,
		Slippage:       defaultSlippage,
		Receiver:       o.receiver,
		Sender:         o.sender,
		DestinationGas: o.destGas,
	}
	if o.slippage != "" {
		pct, err := decimal.NewFromString(strings.TrimSuffix(o.slippage, "%"))
		if err != nil {
			return nil, fmt.Errorf("invalid slippage %q: %w", o.slippage, err)
		}
		req.Slippage = pct.Shift(-2)
	}
	if o.minOut != "" {
		required, err := swaps.ParseAmount(to, o.minOut)
		if err != nil {
			return nil, fmt.Errorf("--min-out: %w", err)
		}
		req.MinOutput = required.Value
	}
	for _, spec := range o.preCalls {
		c, err := swaps.ParseCall(swaps.PhasePre, spec)
		if err != nil {
			return nil, fmt.Errorf("--call: %w", err)
		}
		req.PreCalls = append(req.PreCalls, c)
	}
	for _, spec := range o.postCalls {
		c, err := swaps.ParseCall(swaps.PhasePost, spec)
		if err != nil {
			return nil, fmt.Errorf("--post-call: %w", err)
		}
		req.PostCalls = append(req.PostCalls, c)
	}
	return req, req.Validate()
}

// waitSettled returns the first view holding a finished fetch.
func waitSettled(ctx context.Context, views <-chan engine.View) (engine.View, error) {
	for {
		select {
		case <-ctx.Done():
			return engine.View{}, fmt.Errorf("waiting for quotes: %w", ctx.Err())
		case v, ok := <-views:
			if !ok {
				return engine.View{}, errors.New("engine stopped")
			}
			if v.Request == nil || v.Quoting {
				continue
			}
			if v.Status == quotestate.Success || v.Status == quotestate.Error {
				return v, nil
			}
		}
	}
}

func printQuotes(v engine.View) {
	req := v.Request
	fmt.Println("\n" + strings.Repeat("=", 72))
	color.Green("  %s %s → %s", req.Amount.Decimal(), req.Amount.Currency, req.To)
	fmt.Println(strings.Repeat("=", 72))

	fmt.Printf("  %-3s  %-12s  %-10s  %-20s  %s\n", "#", "PROVIDER", "KIND", "OUTPUT", "MIN OUT")
	for i, q := range v.Quotes {
		out := swaps.FormatUnits(q.RealizedOutput(), req.To)
		minOut := swaps.FormatUnits(req.MinimumOut(q.RealizedOutput()), req.To)
		line := fmt.Sprintf("  %-3d  %-12s  %-10s  %-20s  %s", i+1, q.Provider, q.Kind, out, minOut)
		if i == 0 {
			color.Cyan("%s", line)
			continue
		}
		fmt.Println(line)
	}

	if req.HasCalls() {
		fmt.Printf("\n  %d call(s) before, %d after the trade\n", len(req.PreCalls), len(req.PostCalls))
	}
	if w := v.Warning; w != nil {
		color.Yellow("\n  %s", w)
		if w.SuggestedInput != nil {
			color.Yellow("  send about %s %s to receive %s %s",
				swaps.FormatUnits(w.SuggestedInput, req.Amount.Currency), req.Amount.Currency.Symbol,
				swaps.FormatUnits(req.MinOutput, req.To), req.To.Symbol)
		}
	}
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("\n%d quotes, slippage %s%%\n\n", len(v.Quotes), req.Slippage.Shift(2))
}
