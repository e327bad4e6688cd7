// Package server exposes health, metrics and read-only session state over
// HTTP for operators.
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RaghavSood/quoteflow/config"
	"github.com/RaghavSood/quoteflow/db"
	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/session"
	"github.com/RaghavSood/quoteflow/swaps"
)

const (
	defaultFetchLimit = 50
	maxFetchLimit     = 500
)

// History is the fetch log the server reads from.
type History interface {
	FetchHistory(ctx context.Context, sessionID string, limit int64) ([]db.FetchWithQuotes, error)
}

type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	history  History
	router   http.Handler
}

func New(cfg *config.Config, sessions *session.Manager, history History) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		history:  history,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(s.withAdminAuth)
		api.Get("/sessions", s.handleSessions)
		api.Get("/sessions/{id}", s.handleSession)
		api.Get("/fetches", s.handleFetches)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// --- Auth helpers ---

func hashPassword(pw string) [32]byte {
	return sha256.Sum256([]byte(pw))
}

// withAdminAuth requires "Authorization: Bearer <admin password>". With no
// password configured the API is closed.
func (s *Server) withAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.HTTP.AdminPassword == "" {
			http.Error(w, "api disabled", http.StatusForbidden)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		expected := hashPassword(s.cfg.HTTP.AdminPassword)
		got := hashPassword(token)
		if !ok || subtle.ConstantTimeCompare(expected[:], got[:]) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="quoteflow"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- API handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":   "ok",
		"sessions": len(s.sessions.List()),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	out := make([]sessionJSON, 0, len(list))
	for _, sess := range list {
		out = append(out, toSessionJSON(sess))
	}
	writeJSON(w, out)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, toSessionJSON(sess))
}

func (s *Server) handleFetches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}

	fetches, err := s.history.FetchHistory(r.Context(), r.URL.Query().Get("session"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, fetches)
}

type quoteJSON struct {
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Output   string `json:"output"`
}

type requestJSON struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Slippage string `json:"slippage"`
	Receiver string `json:"receiver,omitempty"`
}

type sessionJSON struct {
	ID                 string       `json:"id"`
	Owner              string       `json:"owner"`
	Created            time.Time    `json:"created"`
	Status             string       `json:"status"`
	Key                string       `json:"key,omitempty"`
	Request            *requestJSON `json:"request,omitempty"`
	Quotes             []quoteJSON  `json:"quotes"`
	SelectedIndex      int          `json:"selected_index"`
	FetchedAt          *time.Time   `json:"fetched_at,omitempty"`
	Quoting            bool         `json:"quoting"`
	Transacting        bool         `json:"transacting"`
	Error              string       `json:"error,omitempty"`
	Warning            string       `json:"warning,omitempty"`
	AutoRefreshStopped bool         `json:"auto_refresh_stopped"`
}

func toSessionJSON(sess *session.Session) sessionJSON {
	return viewJSON(sess.Owner, sess.Created, sess.View())
}

func viewJSON(owner string, created time.Time, v engine.View) sessionJSON {
	out := sessionJSON{
		ID:                 v.SessionID,
		Owner:              owner,
		Created:            created,
		Status:             v.Status.String(),
		Key:                v.Key,
		Quotes:             make([]quoteJSON, 0, len(v.Quotes)),
		SelectedIndex:      v.SelectedIndex,
		Quoting:            v.Quoting,
		Transacting:        v.Transacting,
		Error:              v.Error,
		AutoRefreshStopped: v.AutoRefreshStopped,
	}
	if req := v.Request; req != nil {
		out.Request = &requestJSON{
			From:     req.Amount.Currency.String(),
			To:       req.To.String(),
			Amount:   req.Amount.Decimal().String(),
			Slippage: req.Slippage.String(),
			Receiver: req.Receiver,
		}
	}
	for _, q := range v.Quotes {
		qj := quoteJSON{Provider: q.Provider, Kind: q.Kind.String()}
		if v.Request != nil {
			qj.Output = swaps.FormatUnits(q.RealizedOutput(), v.Request.To)
		}
		out.Quotes = append(out.Quotes, qj)
	}
	if !v.FetchedAt.IsZero() {
		t := v.FetchedAt
		out.FetchedAt = &t
	}
	if v.Warning != nil {
		out.Warning = v.Warning.String()
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
