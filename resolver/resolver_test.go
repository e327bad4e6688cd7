package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/quoteflow/swaps"
)

func countingStore(ttl time.Duration) (*Store[int], *atomic.Int32) {
	var calls atomic.Int32
	s := NewStore[int](func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, ttl)
	return s, &calls
}

func TestStoreCachesUntilExpiry(t *testing.T) {
	s, calls := countingStore(time.Minute)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, ok := s.Get()
	assert.False(t, ok)

	v, err := s.GetOrLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, _ = s.GetOrLoad(context.Background())
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	v, _ = s.GetOrLoad(context.Background())
	assert.Equal(t, 2, v)
	assert.EqualValues(t, 2, calls.Load())
}

func TestStoreInvalidate(t *testing.T) {
	s, _ := countingStore(0)
	require.NoError(t, s.Init(context.Background()))

	s.Invalidate()
	v, ok := s.Get()
	assert.True(t, ok, "stale value stays readable")
	assert.Equal(t, 1, v)

	v, err := s.GetOrLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestStoreLoadErrorKeepsValue(t *testing.T) {
	fail := false
	s := NewStore[string](func(context.Context) (string, error) {
		if fail {
			return "", errors.New("down")
		}
		return "ok", nil
	}, 0)
	require.NoError(t, s.Init(context.Background()))

	fail = true
	_, err := s.Reload(context.Background())
	assert.Error(t, err)
	v, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, "ok", v)
}

func TestStoreSubscribe(t *testing.T) {
	s, _ := countingStore(0)

	var a, b []int
	unsubA := s.Subscribe(func(v int) { a = append(a, v) })
	s.Subscribe(func(v int) { b = append(b, v) })

	require.NoError(t, s.Init(context.Background()))
	unsubA()
	_, err := s.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1}, a)
	assert.Equal(t, []int{1, 2}, b)
}

func TestRegistryGetCurrency(t *testing.T) {
	r := NewRegistry(Builtin())
	require.NoError(t, r.Load(context.Background()))

	c, ok := r.GetCurrency(swaps.ChainBase, "0x833589FCD6EDB6E08F4C7C32D4F71B54BDA02913")
	require.True(t, ok)
	assert.Equal(t, "USDC", c.Symbol)
	assert.EqualValues(t, 6, c.Decimals)
	assert.Equal(t, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", c.Address)

	eth, ok := r.GetCurrency(swaps.ChainEthereum, "")
	require.True(t, ok)
	assert.Equal(t, "ETH", eth.Symbol)

	_, ok = r.GetCurrency(swaps.ChainBase, "0x0000000000000000000000000000000000000001")
	assert.False(t, ok)
}

func TestRegistryPrecedenceAndReload(t *testing.T) {
	remote := []swaps.Currency{
		{ChainID: swaps.ChainBase, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC.e", Decimals: 18},
	}
	src := NewStore[[]swaps.Currency](func(context.Context) ([]swaps.Currency, error) { return remote, nil }, 0)
	r := NewRegistry(Builtin(), Source{Name: "remote", Store: src})
	require.NoError(t, r.Load(context.Background()))

	c, ok := r.GetCurrency(swaps.ChainBase, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	require.True(t, ok)
	assert.EqualValues(t, 6, c.Decimals, "earlier source wins")

	_, ok = r.Lookup(swaps.ChainBase, "DEGEN")
	assert.False(t, ok)

	remote = append(remote, swaps.Currency{ChainID: swaps.ChainBase, Address: "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed", Symbol: "DEGEN", Decimals: 18})
	require.NoError(t, r.Invalidate(context.Background()))

	degen, ok := r.Lookup(swaps.ChainBase, "degen")
	require.True(t, ok)
	assert.Equal(t, "0x4ed4e862860bed51a9570b96d89af5e1b0efefed", degen.Address)
}

func TestRegistryResolve(t *testing.T) {
	dup := []swaps.Currency{
		{ChainID: swaps.ChainEthereum, Address: "0x1111111111111111111111111111111111111111", Symbol: "FOO", Decimals: 18},
		{ChainID: swaps.ChainEthereum, Address: "0x2222222222222222222222222222222222222222", Symbol: "FOO", Decimals: 18},
	}
	r := NewRegistry(Builtin(), Source{Name: "dup", Store: Static(dup)})
	require.NoError(t, r.Load(context.Background()))

	resolve := func(s string) (swaps.Currency, error) {
		a, err := swaps.ParseAsset(s)
		require.NoError(t, err)
		return r.Resolve(a)
	}

	c, err := resolve("BASE.USDC")
	require.NoError(t, err)
	assert.Equal(t, swaps.ChainBase, c.ChainID)

	c, err = resolve("ARB.ETH")
	require.NoError(t, err)
	assert.True(t, c.IsNative())

	_, err = resolve("ETH.FOO")
	assert.ErrorIs(t, err, swaps.ErrInvalidInput)

	c, err = resolve("ETH.FOO-0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	assert.Equal(t, "FOO", c.Symbol)

	_, err = resolve("ETH.NOPE")
	assert.ErrorIs(t, err, swaps.ErrInvalidInput)
}

func TestRegistryCurrenciesSorted(t *testing.T) {
	r := NewRegistry(Builtin())
	require.NoError(t, r.Load(context.Background()))

	base := r.Currencies(swaps.ChainBase)
	require.Len(t, base, 3)
	assert.Equal(t, []string{"ETH", "USDC", "WETH"}, []string{base[0].Symbol, base[1].Symbol, base[2].Symbol})
	assert.Greater(t, len(r.Currencies(0)), len(base))
}
