package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/RaghavSood/quoteflow/across"
	"github.com/RaghavSood/quoteflow/apilog"
	"github.com/RaghavSood/quoteflow/config"
	"github.com/RaghavSood/quoteflow/cowswap"
	"github.com/RaghavSood/quoteflow/db"
	"github.com/RaghavSood/quoteflow/houdini"
	"github.com/RaghavSood/quoteflow/logging"
	"github.com/RaghavSood/quoteflow/metrics"
	"github.com/RaghavSood/quoteflow/nearintents"
	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/simpleswap"
	"github.com/RaghavSood/quoteflow/slippage"
	"github.com/RaghavSood/quoteflow/swaps"
	"github.com/RaghavSood/quoteflow/thorchain"
	"github.com/RaghavSood/quoteflow/uniswap"
)

// app is the wired provider stack shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *db.Store // nil for one-shot commands
	rpcs     map[uint64]*ethclient.Client
	router   *swaps.Router
	registry *resolver.Registry
}

// newApp loads config, sets up logging and builds every enabled provider.
// withStore opens the database and logs provider HTTP traffic into it.
func newApp(ctx context.Context, logOut io.Writer, withStore bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Setup("quoteflow", cfg.Env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     logOut,
	})

	a := &app{cfg: cfg, logger: logger, rpcs: make(map[uint64]*ethclient.Client)}

	var sink apilog.Sink
	if withStore {
		store, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.store = store
		sink = store
	}

	for chainID, url := range cfg.RPCEndpoints {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to chain %d RPC: %w", chainID, err)
		}
		a.rpcs[chainID] = client
		logger.Info("connected RPC", "chain_id", chainID)
	}

	providers, sources := a.buildProviders(sink)
	a.router = swaps.NewRouter(providers,
		swaps.WithConcurrency(cfg.Engine.ProviderConcurrency),
		swaps.WithRouterLogger(logger),
		swaps.WithRouterMetrics(metrics.Quotes()),
	)
	a.registry = resolver.NewRegistry(append([]resolver.Source{resolver.Builtin()}, sources...)...)
	return a, nil
}

func (a *app) buildProviders(sink apilog.Sink) ([]swaps.Provider, []resolver.Source) {
	pc := a.cfg.Providers
	var (
		providers []swaps.Provider
		sources   []resolver.Source
	)
	enable := func(p swaps.Provider) {
		providers = append(providers, p)
		a.logger.Info("provider enabled", "provider", p.Name(), "kind", p.Kind().String())
	}

	if !pc.CowSwap.Disabled {
		enable(cowswap.NewProvider(cowswap.NewClient(pc.CowSwap.BaseURL, apilog.NewHTTPClient("cowswap", sink))))
	}
	if !pc.Uniswap.Disabled && len(a.rpcs) > 0 {
		callers := make(map[uint64]uniswap.Caller, len(a.rpcs))
		for id, c := range a.rpcs {
			callers[id] = c
		}
		enable(uniswap.NewProvider(callers))
	}
	if !pc.Across.Disabled {
		enable(across.NewProvider(across.NewClient(pc.Across.BaseURL, apilog.NewHTTPClient("across", sink))))
	}
	if !pc.Thorchain.Disabled {
		limiter := rate.NewLimiter(rate.Limit(pc.Thorchain.RequestsPerSec), 1)
		client := thorchain.NewClient(pc.Thorchain.BaseURL, apilog.NewHTTPClient("thorchain", sink), limiter)
		enable(thorchain.NewProvider(client))
		sources = append(sources, client.CurrencySource(pc.Thorchain.PoolsTTL.Duration))
	}
	if !pc.NearIntents.Disabled {
		p := nearintents.NewProvider(nearintents.NewClient(pc.NearIntents.APIKey, pc.NearIntents.BaseURL, apilog.NewHTTPClient("nearintents", sink)))
		enable(p)
		sources = append(sources, p.CurrencySource())
	}
	if !pc.SimpleSwap.Disabled && pc.SimpleSwap.APIKey != "" {
		enable(simpleswap.NewProvider(simpleswap.NewClient(pc.SimpleSwap.APIKey, pc.SimpleSwap.BaseURL, apilog.NewHTTPClient("simpleswap", sink))))
	}
	if !pc.Houdini.Disabled && pc.Houdini.APIKey != "" {
		client := houdini.NewClient(pc.Houdini.APIKey, pc.Houdini.APISecret, pc.Houdini.BaseURL, apilog.NewHTTPClient("houdini", sink))
		enable(houdini.NewProvider(client))
	}
	return providers, sources
}

func (a *app) slippageConfig() slippage.Config {
	return slippage.Config{
		InitialBps: a.cfg.Slippage.BufferBps,
		StepBps:    a.cfg.Slippage.StepBps,
		MaxBps:     a.cfg.Slippage.MaxBps,
	}
}

// loadCurrencies initializes the registry. Remote lists that fail to load
// only shrink the set of resolvable tokens.
func (a *app) loadCurrencies(ctx context.Context) {
	if err := a.registry.Load(ctx); err != nil {
		a.logger.Warn("some currency lists failed to load", "error", err)
	}
}

func (a *app) Close() {
	for _, c := range a.rpcs {
		c.Close()
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
