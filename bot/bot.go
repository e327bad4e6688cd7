package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/RaghavSood/quoteflow/config"
	"github.com/RaghavSood/quoteflow/db"
	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/session"
	"github.com/RaghavSood/quoteflow/swaps"
	"github.com/RaghavSood/quoteflow/tracker"
)

// Sender is the part of the telegram API the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	config   *config.Config
	sessions *session.Manager
	registry *resolver.Registry
	tracker  *tracker.Tracker // nil when no RPCs are configured

	slippage decimal.Decimal
	editRate rate.Limit

	mu       sync.Mutex
	watchers map[int64]*watcher
}

func New(cfg *config.Config, sessions *session.Manager, registry *resolver.Registry, tr *tracker.Tracker) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	b, err := newBot(api, cfg, sessions, registry, tr)
	if err != nil {
		return nil, err
	}
	b.api = api

	log.Printf("Authorized on account %s", api.Self.UserName)
	return b, nil
}

func newBot(sender Sender, cfg *config.Config, sessions *session.Manager, registry *resolver.Registry, tr *tracker.Tracker) (*Bot, error) {
	slip, err := cfg.DefaultSlippage()
	if err != nil {
		return nil, err
	}
	return &Bot{
		sender:   sender,
		config:   cfg,
		sessions: sessions,
		registry: registry,
		tracker:  tr,
		slippage: slip,
		editRate: rate.Limit(cfg.Telegram.EditsPerSecond),
		watchers: make(map[int64]*watcher),
	}, nil
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}

			if !b.config.IsAuthorized(update.Message.From.ID) {
				b.reply(update.Message, "You are not authorized to use this bot.")
				continue
			}

			b.handleMessage(ctx, update.Message)
		}
	}
}

// OnSettled is the tracker callback: it tells the chat and resumes quoting.
func (b *Bot) OnSettled(tx db.Transaction, status string) {
	b.sessions.Settled(tx.SessionID)

	b.mu.Lock()
	var chatID int64
	for id, w := range b.watchers {
		if w.sessionID == tx.SessionID {
			chatID = id
		}
	}
	b.mu.Unlock()
	if chatID == 0 {
		return
	}

	text := fmt.Sprintf("Transaction `%s` %s. Quoting resumed.", tx.TxHash, status)
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.reply(msg, usage)
	case "quote":
		b.handleQuote(msg)
	case "select":
		b.handleSelect(msg)
	case "refresh":
		b.withSession(msg, func(s *session.Session) { s.Refresh() })
	case "abort":
		b.withSession(msg, func(s *session.Session) { s.Abort() })
	case "clear":
		b.withSession(msg, func(s *session.Session) { s.Clear() })
	case "execute":
		b.handleExecute(ctx, msg)
	case "sent":
		b.handleSent(ctx, msg)
	case "cancel":
		b.withSession(msg, func(s *session.Session) {
			s.SetTransacting(false)
			b.reply(msg, "Transaction abandoned, quoting resumed.")
		})
	case "status":
		b.withSession(msg, func(s *session.Session) { b.reply(msg, renderView(s.View())) })
	case "tokens":
		b.handleTokens(msg)
	default:
		b.reply(msg, "Unknown command. Use /help to see what I can do.")
	}
}

func owner(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) withSession(msg *tgbotapi.Message, fn func(*session.Session)) {
	s, ok := b.sessions.ByOwner(owner(msg.Chat.ID))
	if !ok {
		b.reply(msg, "No active quote. Use /quote to start.")
		return
	}
	fn(s)
}

func (b *Bot) handleQuote(msg *tgbotapi.Message) {
	args, err := parseQuoteArgs(msg.CommandArguments())
	if err != nil {
		b.reply(msg, esc(err.Error()))
		return
	}

	req, err := b.buildRequest(args)
	if err != nil {
		b.reply(msg, esc(err.Error()))
		return
	}

	s := b.sessions.Open(owner(msg.Chat.ID))
	w := b.watch(msg.Chat.ID, s)
	w.resetMessage()
	s.SetRequest(req)
}

func (b *Bot) buildRequest(args quoteArgs) (*swaps.QuoteRequest, error) {
	from, err := b.registry.Resolve(args.From)
	if err != nil {
		return nil, err
	}
	to, err := b.registry.Resolve(args.To)
	if err != nil {
		return nil, err
	}
	amount, err := swaps.ParseAmount(from, args.Amount)
	if err != nil {
		return nil, err
	}

	req := &swaps.QuoteRequest{
		Amount:   amount,
		To:       to,
		Slippage: b.slippage,
		Receiver: args.Receiver,
	}
	if args.Slippage != nil {
		req.Slippage = *args.Slippage
	}
	if args.MinOut != "" {
		required, err := swaps.ParseAmount(to, args.MinOut)
		if err != nil {
			return nil, err
		}
		req.MinOutput = required.Value
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (b *Bot) handleSelect(msg *tgbotapi.Message) {
	idx, err := parseIndex(msg.CommandArguments())
	if err != nil {
		b.reply(msg, esc(err.Error()))
		return
	}
	b.withSession(msg, func(s *session.Session) {
		if idx >= len(s.View().Quotes) {
			b.reply(msg, fmt.Sprintf("There is no quote %d.", idx+1))
			return
		}
		s.SelectQuote(idx)
	})
}

func (b *Bot) handleExecute(ctx context.Context, msg *tgbotapi.Message) {
	b.withSession(msg, func(s *session.Session) {
		if s.View().Transacting {
			b.reply(msg, "A transaction is already in progress. /cancel to abandon it.")
			return
		}
		q, tx, err := s.Assemble(ctx)
		if errors.Is(err, engine.ErrNoSelection) {
			b.reply(msg, "No quote selected yet.")
			return
		}
		if err != nil {
			b.reply(msg, esc(fmt.Sprintf("Could not build the transaction: %v", err)))
			return
		}
		s.SetTransacting(true)
		b.reply(msg, renderTx(q.Provider, tx))
	})
}

func (b *Bot) handleSent(ctx context.Context, msg *tgbotapi.Message) {
	hash, err := parseTxHash(msg.CommandArguments())
	if err != nil {
		b.reply(msg, esc(err.Error()))
		return
	}
	b.withSession(msg, func(s *session.Session) {
		v := s.View()
		if !v.Transacting || v.Request == nil {
			b.reply(msg, "Use /execute before /sent.")
			return
		}
		if b.tracker == nil {
			b.reply(msg, "Transaction tracking is not configured. Use /cancel once it is mined.")
			return
		}
		provider := ""
		if v.Selected != nil {
			provider = v.Selected.Provider
		}
		if _, err := b.tracker.Track(ctx, s.ID(), v.Request.Amount.Currency.ChainID, hash, provider); err != nil {
			b.reply(msg, esc(fmt.Sprintf("Cannot track it: %v", err)))
			return
		}
		b.reply(msg, fmt.Sprintf("Watching `%s`. I'll tell you when it is mined.", hash.Hex()))
	})
}

func (b *Bot) handleTokens(msg *tgbotapi.Message) {
	var chainID uint64
	if arg := msg.CommandArguments(); arg != "" {
		chain, ok := swaps.ChainByName(arg)
		if !ok {
			b.reply(msg, esc(fmt.Sprintf("Unknown chain %q.", arg)))
			return
		}
		chainID = chain.ID
	}
	b.reply(msg, renderTokens(b.registry.Currencies(chainID)))
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	b.send(reply)
}

func (b *Bot) send(c tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	c.ParseMode = tgbotapi.ModeMarkdown
	m, err := b.sender.Send(c)
	if err != nil {
		log.Printf("Error sending message: %v", err)
	}
	return m, err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
