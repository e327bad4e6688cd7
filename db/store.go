package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/swaps"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps sqlc Queries with connection management and helpers.
type Store struct {
	*Queries
	conn *sql.DB
}

func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{
		Queries: New(conn),
		conn:    conn,
	}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// RecordFetch stores a completed fan-out and its ranked quotes in one
// transaction.
func (s *Store) RecordFetch(ctx context.Context, rec engine.FetchRecord) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := s.WithTx(tx)
	params := InsertQuoteFetchParams{
		ID:          rec.ID,
		SessionID:   rec.SessionID,
		RequestKey:  rec.Key,
		Source:      rec.Request.Amount.Currency.String(),
		Destination: rec.Request.To.String(),
		Amount:      rec.Request.Amount.Decimal().String(),
		Refresh:     rec.Refresh,
		Outcome:     rec.Outcome,
		QuoteCount:  int64(len(rec.Quotes)),
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
		DurationMs:  rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
	}
	if rec.Err != nil {
		params.Error = sql.NullString{String: rec.Err.Error(), Valid: true}
	}
	if err := q.InsertQuoteFetch(ctx, params); err != nil {
		return fmt.Errorf("inserting fetch: %w", err)
	}

	for i, quote := range rec.Quotes {
		if err := q.InsertProviderQuote(ctx, InsertProviderQuoteParams{
			FetchID:  rec.ID,
			Rank:     int64(i),
			Provider: quote.Provider,
			Kind:     quote.Kind.String(),
			Output:   outputString(quote),
		}); err != nil {
			return fmt.Errorf("inserting quote %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func outputString(q swaps.Quote) string {
	if out := q.RealizedOutput(); out != nil {
		return out.String()
	}
	return "0"
}

// FetchWithQuotes is a fetch joined with its ranked quotes.
type FetchWithQuotes struct {
	QuoteFetch
	Quotes []ProviderQuote `json:"quotes"`
}

// FetchHistory returns the latest fetches, optionally for one session.
func (s *Store) FetchHistory(ctx context.Context, sessionID string, limit int64) ([]FetchWithQuotes, error) {
	var (
		fetches []QuoteFetch
		err     error
	)
	if sessionID != "" {
		fetches, err = s.ListQuoteFetchesBySession(ctx, ListQuoteFetchesBySessionParams{SessionID: sessionID, Limit: limit})
	} else {
		fetches, err = s.ListQuoteFetches(ctx, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing fetches: %w", err)
	}

	out := make([]FetchWithQuotes, 0, len(fetches))
	for _, f := range fetches {
		quotes, err := s.ListProviderQuotes(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("listing quotes for %s: %w", f.ID, err)
		}
		out = append(out, FetchWithQuotes{QuoteFetch: f, Quotes: quotes})
	}
	return out, nil
}
