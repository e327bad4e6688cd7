package bot

import (
	"context"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/session"
)

// watcher mirrors a session's view into one status message per chat,
// editing it in place at most editRate times per second.
type watcher struct {
	sessionID string
	chatID    int64
	limiter   *rate.Limiter
	stop      func()

	mu        sync.Mutex
	messageID int
	lastText  string
}

// resetMessage makes the next update post a fresh status message.
func (w *watcher) resetMessage() {
	w.mu.Lock()
	w.messageID = 0
	w.lastText = ""
	w.mu.Unlock()
}

func (b *Bot) watch(chatID int64, s *session.Session) *watcher {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.watchers[chatID]; ok {
		if w.sessionID == s.ID() {
			return w
		}
		w.stop()
	}

	ch, unsubscribe := s.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		sessionID: s.ID(),
		chatID:    chatID,
		limiter:   rate.NewLimiter(b.editRate, 1),
		stop: func() {
			cancel()
			unsubscribe()
		},
	}
	b.watchers[chatID] = w

	go b.runWatcher(ctx, w, ch)
	return w
}

func (b *Bot) runWatcher(ctx context.Context, w *watcher, ch <-chan engine.View) {
	defer func() {
		b.mu.Lock()
		if b.watchers[w.chatID] == w {
			delete(b.watchers, w.chatID)
		}
		b.mu.Unlock()
	}()

	for v := range ch {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		// Skip to the newest snapshot that arrived while throttled.
		select {
		case latest, ok := <-ch:
			if !ok {
				return
			}
			v = latest
		default:
		}
		b.render(w, v)
	}
}

func (b *Bot) render(w *watcher, v engine.View) {
	if v.Request == nil {
		return
	}
	text := renderView(v)

	w.mu.Lock()
	defer w.mu.Unlock()
	if text == w.lastText {
		return
	}

	if w.messageID == 0 {
		m, err := b.send(tgbotapi.NewMessage(w.chatID, text))
		if err != nil {
			return
		}
		w.messageID = m.MessageID
		w.lastText = text
		return
	}

	edit := tgbotapi.NewEditMessageText(w.chatID, w.messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.sender.Send(edit); err != nil {
		log.Printf("Error editing status message: %v", err)
		return
	}
	w.lastText = text
}
