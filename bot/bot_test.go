package bot

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/RaghavSood/quoteflow/config"
	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/quotestate"
	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/session"
	"github.com/RaghavSood/quoteflow/slippage"
	"github.com/RaghavSood/quoteflow/swaps"
)

func TestParseQuoteArgs(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		receiver string
		slippage string
		minOut   string
		wantErr  bool
	}{
		{name: "minimal", in: "100 BASE.USDC ARB.ETH"},
		{name: "receiver", in: "100 BASE.USDC ARB.ETH 0xabc", receiver: "0xabc"},
		{name: "receiver and slippage", in: "1.5 BASE.USDC ARB.ETH 0xabc 0.5%", receiver: "0xabc", slippage: "0.005"},
		{name: "slippage first", in: "1 BASE.USDC ARB.ETH 1 0xabc", receiver: "0xabc", slippage: "0.01"},
		{name: "too few", in: "100 BASE.USDC", wantErr: true},
		{name: "bad amount", in: "abc BASE.USDC ARB.ETH", wantErr: true},
		{name: "zero amount", in: "0 BASE.USDC ARB.ETH", wantErr: true},
		{name: "bad asset", in: "1 USDC ARB.ETH", wantErr: true},
		{name: "slippage too high", in: "1 BASE.USDC ARB.ETH 100", wantErr: true},
		{name: "two receivers", in: "1 BASE.USDC ARB.ETH 0xa 0xb", wantErr: true},
		{name: "minimum", in: "100 BASE.USDC ARB.USDC min=99.5", minOut: "99.5"},
		{name: "everything", in: "100 BASE.USDC ARB.USDC MIN=99 0xabc 1%", receiver: "0xabc", slippage: "0.01", minOut: "99"},
		{name: "bad minimum", in: "100 BASE.USDC ARB.USDC min=lots", wantErr: true},
		{name: "minimum twice", in: "100 BASE.USDC ARB.USDC min=1 min=2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuoteArgs(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.receiver, got.Receiver)
			assert.Equal(t, tt.minOut, got.MinOut)
			if tt.slippage == "" {
				assert.Nil(t, got.Slippage)
			} else {
				require.NotNil(t, got.Slippage)
				assert.True(t, decimal.RequireFromString(tt.slippage).Equal(*got.Slippage))
			}
		})
	}
}

func TestParseIndexAndHash(t *testing.T) {
	i, err := parseIndex(" 2 ")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = parseIndex("0")
	assert.Error(t, err)

	_, err = parseTxHash("0x1234")
	assert.Error(t, err)
	h, err := parseTxHash("0x" + strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", 32), h.Hex())
}

var (
	usdc = swaps.Currency{ChainID: swaps.ChainBase, Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Symbol: "USDC", Decimals: 6}
	eth  = swaps.Currency{ChainID: swaps.ChainArbitrum, Symbol: "ETH", Decimals: 18}
)

func TestRenderView(t *testing.T) {
	req := &swaps.QuoteRequest{
		Amount: swaps.Amount{Currency: usdc, Value: big.NewInt(100_000_000)},
		To:     eth,
	}
	quotes := []swaps.Quote{
		{Provider: "across", Trade: swaps.StaticTrade{Output: big.NewInt(30_000_000_000_000_000)}},
		{Provider: "near_intents", Trade: swaps.StaticTrade{Output: big.NewInt(29_000_000_000_000_000)}},
	}
	v := engine.View{
		Status:             quotestate.Success,
		Request:            req,
		Quotes:             quotes,
		SelectedIndex:      1,
		Selected:           &quotes[1],
		FetchedAt:          time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC),
		Warning:            &slippage.Warning{},
		AutoRefreshStopped: true,
	}

	out := renderView(v)
	assert.Contains(t, out, "*100 USDC*")
	assert.Contains(t, out, "1. across: 0.03 ETH")
	assert.Contains(t, out, "▶ 2. near\\_intents: 0.029 ETH")
	assert.Contains(t, out, "Updated 12:30:00 UTC")
	assert.Contains(t, out, "Auto-refresh paused")

	v.Status = quotestate.Error
	v.Quotes = nil
	v.Error = "no quotes available"
	assert.Contains(t, renderView(v), "No quotes: no quotes available")

	assert.Contains(t, renderView(engine.View{}), "No active quote")
}

type fakeSender struct {
	mu     sync.Mutex
	nextID int
	sent   []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, "edit:"+m.Text)
		}
	}
	return out
}

func (f *fakeSender) contains(sub string) bool {
	for _, s := range f.texts() {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type staticFetcher struct{}

func (staticFetcher) Fetch(_ context.Context, req swaps.QuoteRequest) ([]swaps.Quote, error) {
	tx := &swaps.Transaction{
		ChainID: req.Amount.Currency.ChainID,
		To:      usdc.EVMAddress(),
		Value:   new(big.Int),
		Data:    []byte{0xde, 0xad},
		Meta:    map[string]string{"min_out": "1"},
	}
	return []swaps.Quote{
		{Provider: "across", Kind: swaps.Bridge, Trade: swaps.StaticTrade{Output: big.NewInt(30_000_000_000_000_000), Tx: tx}},
		{Provider: "relay", Kind: swaps.Bridge, Trade: swaps.StaticTrade{Output: big.NewInt(29_000_000_000_000_000), Tx: tx}},
	}, nil
}

func newTestBot(t *testing.T) (*Bot, *fakeSender) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{}
	cfg.Engine.Slippage = "0.005"
	cfg.Telegram.EditsPerSecond = 1

	registry := resolver.NewRegistry(resolver.Builtin())
	require.NoError(t, registry.Load(ctx))

	sessions := session.NewManager(ctx, staticFetcher{}, slippage.Config{}, engine.WithRefreshInterval(time.Hour))

	sender := &fakeSender{}
	b, err := newBot(sender, cfg, sessions, registry, nil)
	require.NoError(t, err)
	b.editRate = rate.Inf
	return b, sender
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		MessageID: 1,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func TestQuoteSelectExecuteFlow(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, command(7, "/quote 100 BASE.USDC ARB.ETH 0x1111111111111111111111111111111111111111 0.5"))

	s, ok := b.sessions.ByOwner("telegram:7")
	require.True(t, ok)
	require.Eventually(t, func() bool { return s.View().Status == quotestate.Success }, time.Second, time.Millisecond)
	assert.True(t, decimal.RequireFromString("0.005").Equal(s.View().Request.Slippage))
	require.Eventually(t, func() bool { return sender.contains("1. across: 0.03 ETH") }, time.Second, time.Millisecond)

	b.handleMessage(ctx, command(7, "/select 2"))
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, 1, s.View().SelectedIndex)

	b.handleMessage(ctx, command(7, "/select 9"))
	assert.True(t, sender.contains("There is no quote 9."))

	b.handleMessage(ctx, command(7, "/execute"))
	require.NoError(t, s.Sync(ctx))
	assert.True(t, s.View().Transacting)
	assert.True(t, sender.contains("*relay* transaction on chain 8453"))
	assert.True(t, sender.contains("Data: `0xdead`"))

	b.handleMessage(ctx, command(7, "/sent 0x"+strings.Repeat("ab", 32)))
	assert.True(t, sender.contains("Transaction tracking is not configured"))

	b.handleMessage(ctx, command(7, "/cancel"))
	require.NoError(t, s.Sync(ctx))
	assert.False(t, s.View().Transacting)
}

func TestQuoteRejectsUnknownToken(t *testing.T) {
	b, sender := newTestBot(t)

	b.handleMessage(context.Background(), command(7, "/quote 1 BASE.NOPE ARB.ETH"))
	assert.True(t, sender.contains("unknown token"))
	_, ok := b.sessions.ByOwner("telegram:7")
	assert.False(t, ok)
}

func TestCommandsWithoutSession(t *testing.T) {
	b, sender := newTestBot(t)

	b.handleMessage(context.Background(), command(3, "/refresh"))
	assert.True(t, sender.contains("No active quote"))
}

func TestTokensCommand(t *testing.T) {
	b, sender := newTestBot(t)

	b.handleMessage(context.Background(), command(3, "/tokens BASE"))
	assert.True(t, sender.contains("BASE.USDC `0x833589fcd6edb6e08f4c7c32d4f71b54bda02913`"))
	assert.False(t, sender.contains("ARB."))

	b.handleMessage(context.Background(), command(3, "/tokens MARS"))
	assert.True(t, sender.contains("Unknown chain"))
}

func TestQuoteWithMinimumWarns(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, command(9, "/quote 100 BASE.USDC ARB.ETH 0x1111111111111111111111111111111111111111 min=0.05"))

	s, ok := b.sessions.ByOwner("telegram:9")
	require.True(t, ok)
	require.Eventually(t, func() bool { return s.View().Warning != nil }, time.Second, time.Millisecond)
	assert.EqualValues(t, 50_000_000_000_000_000, s.View().Request.MinOutput.Int64())
	assert.EqualValues(t, 4000, s.View().Warning.ShortfallBps)

	require.Eventually(t, func() bool { return sender.contains("Send about") }, time.Second, time.Millisecond)
	assert.True(t, sender.contains("Required: 0.05 ETH"))
}

func TestQuoteRejectsHugeAmount(t *testing.T) {
	b, sender := newTestBot(t)

	b.handleMessage(context.Background(), command(7, "/quote 1e20000000 BASE.USDC ARB.ETH"))
	assert.True(t, sender.contains("too large"))
	_, ok := b.sessions.ByOwner("telegram:7")
	assert.False(t, ok)
}
