// Package uniswap quotes same-chain swaps against Uniswap V3 pools through
// the on-chain QuoterV2 contract.
package uniswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/RaghavSood/quoteflow/swaps"
)

// baseSwapGas is added to the quoter's gas estimate for router overhead.
const baseSwapGas = 60_000

// Caller is the subset of ethclient.Client the provider needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Provider struct {
	rpcs map[uint64]Caller
}

// NewProvider quotes on every chain that has both an RPC client and a known
// deployment.
func NewProvider(rpcs map[uint64]Caller) *Provider {
	return &Provider{rpcs: rpcs}
}

func (p *Provider) Name() string {
	return "uniswap"
}

func (p *Provider) Kind() swaps.ProviderKind {
	return swaps.Aggregator
}

type tierQuote struct {
	fee uint32
	out *big.Int
	gas uint64
}

func (p *Provider) Fetch(ctx context.Context, req swaps.QuoteRequest) (swaps.Trade, error) {
	chainID := req.Amount.Currency.ChainID
	dep, ok := Deployments[chainID]
	rpc := p.rpcs[chainID]
	if !ok || rpc == nil {
		return nil, fmt.Errorf("%w: uniswap not configured on chain %d", swaps.ErrUnsupportedPair, chainID)
	}
	if !swaps.IsEVMAddress(req.Receiver) {
		return nil, fmt.Errorf("%w: receiver %q is not an EVM address", swaps.ErrInvalidInput, req.Receiver)
	}

	tokenIn := tokenAddress(req.Amount.Currency, dep)
	tokenOut := tokenAddress(req.To, dep)
	if tokenIn == tokenOut {
		return nil, fmt.Errorf("%w: wrapping is not a swap", swaps.ErrUnsupportedPair)
	}

	results := make([]*tierQuote, len(FeeTiers))
	errs := make([]error, len(FeeTiers))
	var g errgroup.Group
	for i, fee := range FeeTiers {
		g.Go(func() error {
			// Pools that don't exist revert; other tiers may still quote.
			results[i], errs[i] = quote(ctx, rpc, dep.Quoter, tokenIn, tokenOut, req.Amount.Value, fee)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("fee tier %d: %w", fee, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var best *tierQuote
	for _, q := range results {
		if q != nil && (best == nil || q.out.Cmp(best.out) > 0) {
			best = q
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no uniswap pool quoted the pair: %w", errors.Join(errs...))
	}

	tx, err := swapTx(req, dep, tokenIn, tokenOut, best)
	if err != nil {
		return nil, err
	}
	return swaps.StaticTrade{Output: best.out, Tx: tx}, nil
}

func tokenAddress(c swaps.Currency, dep Deployment) common.Address {
	if c.IsNative() {
		return dep.Wrapped
	}
	return c.EVMAddress()
}

func quote(ctx context.Context, rpc Caller, quoter, tokenIn, tokenOut common.Address, amount *big.Int, fee uint32) (*tierQuote, error) {
	data, err := quoterABI.Pack("quoteExactInputSingle", quoteParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amount,
		Fee:               big.NewInt(int64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, err
	}

	raw, err := rpc.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("quoteExactInputSingle fee %d: %w", fee, err)
	}
	result, err := quoterABI.Unpack("quoteExactInputSingle", raw)
	if err != nil {
		return nil, fmt.Errorf("decoding quote: %w", err)
	}

	out := result[0].(*big.Int)
	if out.Sign() <= 0 {
		return nil, fmt.Errorf("fee %d: empty quote", fee)
	}
	return &tierQuote{fee: fee, out: out, gas: result[3].(*big.Int).Uint64()}, nil
}

// swapTx encodes exactInputSingle on SwapRouter02. Native output goes to
// the router first and is unwrapped to the receiver in the same multicall.
func swapTx(req swaps.QuoteRequest, dep Deployment, tokenIn, tokenOut common.Address, q *tierQuote) (*swaps.Transaction, error) {
	receiver := common.HexToAddress(req.Receiver)
	minOut := req.MinimumOut(q.out)

	recipient := receiver
	if req.To.IsNative() {
		recipient = routerSelf
	}

	data, err := routerABI.Pack("exactInputSingle", exactInputParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(int64(q.fee)),
		Recipient:         recipient,
		AmountIn:          req.Amount.Value,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding exactInputSingle: %w", err)
	}

	if req.To.IsNative() {
		unwrap, err := routerABI.Pack("unwrapWETH9", minOut, receiver)
		if err != nil {
			return nil, fmt.Errorf("encoding unwrapWETH9: %w", err)
		}
		data, err = routerABI.Pack("multicall", [][]byte{data, unwrap})
		if err != nil {
			return nil, fmt.Errorf("encoding multicall: %w", err)
		}
	}

	tx := &swaps.Transaction{
		ChainID: req.Amount.Currency.ChainID,
		To:      dep.Router,
		Value:   new(big.Int),
		Data:    data,
		Gas:     q.gas + baseSwapGas,
		Meta: map[string]string{
			"fee_tier": fmt.Sprintf("%d", q.fee),
			"min_out":  minOut.String(),
		},
	}
	if req.Amount.Currency.IsNative() {
		tx.Value = new(big.Int).Set(req.Amount.Value)
	} else {
		tx.Approval = &swaps.Approval{Token: tokenIn, Spender: dep.Router, Amount: new(big.Int).Set(req.Amount.Value)}
	}
	return tx, nil
}
