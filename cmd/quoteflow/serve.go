package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RaghavSood/quoteflow/bot"
	"github.com/RaghavSood/quoteflow/db"
	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/metrics"
	"github.com/RaghavSood/quoteflow/server"
	"github.com/RaghavSood/quoteflow/session"
	"github.com/RaghavSood/quoteflow/swaps"
	"github.com/RaghavSood/quoteflow/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telegram bot, HTTP API and transaction tracker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, nil, true)
	if err != nil {
		return err
	}
	defer a.Close()
	a.loadCurrencies(ctx)

	sessions := session.NewManager(ctx, a.router, a.slippageConfig(),
		engine.WithRefreshInterval(a.cfg.Engine.RefreshInterval.Duration),
		engine.WithRefreshCeiling(a.cfg.Engine.RefreshCeiling.Duration),
		engine.WithLogger(a.logger),
		engine.WithRecorder(a.store),
		engine.WithCurrencies(a.registry),
		engine.WithMetrics(metrics.Quotes()),
	)

	// The bot is created after the tracker, so settlement goes through a
	// closure that picks the bot up once it exists.
	var b *bot.Bot
	onSettled := func(tx db.Transaction, status string) {
		if b != nil {
			b.OnSettled(tx, status)
			return
		}
		sessions.Settled(tx.SessionID)
	}

	var trk *tracker.Tracker
	if len(a.rpcs) > 0 {
		sources := make(map[uint64]tracker.ReceiptSource, len(a.rpcs))
		for id, c := range a.rpcs {
			sources[id] = c
		}
		trk = tracker.New(a.store, sources, a.cfg.Tracker.Interval.Duration, onSettled)
	}

	if a.cfg.Telegram.Token != "" {
		b, err = bot.New(a.cfg, sessions, a.registry, trk)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.New(a.cfg, sessions, a.store).Start(ctx) })
	if trk != nil {
		g.Go(func() error {
			trk.Run(ctx)
			return nil
		})
	}
	if b != nil {
		g.Go(func() error { return b.Run(ctx) })
	} else {
		a.logger.Warn("no telegram token configured, running without the bot")
	}

	a.logger.Info("quoteflow started", "providers", len(a.router.Providers(swaps.Aggregator))+len(a.router.Providers(swaps.Bridge)))
	err = g.Wait()
	a.logger.Info("shutting down")
	return err
}
