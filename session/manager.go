// Package session keeps one running quote engine per front-end owner (a
// telegram chat, an API client) and routes transaction lifecycle events
// back to the right engine.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/slippage"
)

// Session is a running engine bound to an owner.
type Session struct {
	Owner   string
	Created time.Time
	*engine.Engine

	cancel context.CancelFunc
}

// Manager owns the engines. Every session shares the fetcher and the
// common options but gets its own slippage validator, since the buffer
// widens per session.
type Manager struct {
	ctx      context.Context
	fetcher  engine.Fetcher
	slippage slippage.Config
	opts     []engine.Option
	logger   *slog.Logger

	mu      sync.Mutex
	byID    map[string]*Session
	byOwner map[string]*Session
}

func NewManager(ctx context.Context, fetcher engine.Fetcher, slip slippage.Config, opts ...engine.Option) *Manager {
	return &Manager{
		ctx:      ctx,
		fetcher:  fetcher,
		slippage: slip,
		opts:     opts,
		logger:   slog.Default(),
		byID:     make(map[string]*Session),
		byOwner:  make(map[string]*Session),
	}
}

// Open returns the owner's session, starting one if needed.
func (m *Manager) Open(owner string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byOwner[owner]; ok {
		return s
	}

	opts := append([]engine.Option{engine.WithValidator(slippage.New(m.slippage))}, m.opts...)
	eng := engine.New(m.fetcher, opts...)
	ctx, cancel := context.WithCancel(m.ctx)
	s := &Session{Owner: owner, Created: time.Now(), Engine: eng, cancel: cancel}
	m.byID[eng.ID()] = s
	m.byOwner[owner] = s

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("engine exited", "session", eng.ID(), "error", err)
		}
		m.remove(s)
	}()

	m.logger.Info("session opened", "session", eng.ID(), "owner", owner)
	return s
}

// Get looks a session up by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	return s, ok
}

// ByOwner looks a session up by owner without creating one.
func (m *Manager) ByOwner(owner string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byOwner[owner]
	return s, ok
}

// List returns the sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Close stops a session and waits for its engine to exit.
func (m *Manager) Close(id string) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	s.cancel()
	<-s.Done()
	m.remove(s)
	return true
}

// Settled ends the transaction-in-flight state of a session once its
// transaction has been mined. Unknown sessions are ignored; they may have
// been closed in the meantime.
func (m *Manager) Settled(sessionID string) {
	if s, ok := m.Get(sessionID); ok {
		s.SetTransacting(false)
	}
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID[s.ID()] == s {
		delete(m.byID, s.ID())
	}
	if m.byOwner[s.Owner] == s {
		delete(m.byOwner, s.Owner)
	}
}
