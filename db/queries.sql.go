package db

import (
	"context"
	"database/sql"
	"time"
)

const insertQuoteFetch = `INSERT INTO quote_fetches (
    id, session_id, request_key, source, destination, amount, refresh,
    outcome, error, quote_count, started_at, finished_at, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertQuoteFetchParams struct {
	ID          string
	SessionID   string
	RequestKey  string
	Source      string
	Destination string
	Amount      string
	Refresh     bool
	Outcome     string
	Error       sql.NullString
	QuoteCount  int64
	StartedAt   time.Time
	FinishedAt  time.Time
	DurationMs  int64
}

func (q *Queries) InsertQuoteFetch(ctx context.Context, arg InsertQuoteFetchParams) error {
	_, err := q.db.ExecContext(ctx, insertQuoteFetch,
		arg.ID,
		arg.SessionID,
		arg.RequestKey,
		arg.Source,
		arg.Destination,
		arg.Amount,
		arg.Refresh,
		arg.Outcome,
		arg.Error,
		arg.QuoteCount,
		arg.StartedAt,
		arg.FinishedAt,
		arg.DurationMs,
	)
	return err
}

const insertProviderQuote = `INSERT INTO provider_quotes (fetch_id, rank, provider, kind, output)
VALUES (?, ?, ?, ?, ?)`

type InsertProviderQuoteParams struct {
	FetchID  string
	Rank     int64
	Provider string
	Kind     string
	Output   string
}

func (q *Queries) InsertProviderQuote(ctx context.Context, arg InsertProviderQuoteParams) error {
	_, err := q.db.ExecContext(ctx, insertProviderQuote,
		arg.FetchID,
		arg.Rank,
		arg.Provider,
		arg.Kind,
		arg.Output,
	)
	return err
}

const listQuoteFetches = `SELECT id, session_id, request_key, source, destination, amount, refresh,
    outcome, error, quote_count, started_at, finished_at, duration_ms
FROM quote_fetches
ORDER BY started_at DESC
LIMIT ?`

func (q *Queries) ListQuoteFetches(ctx context.Context, limit int64) ([]QuoteFetch, error) {
	rows, err := q.db.QueryContext(ctx, listQuoteFetches, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuoteFetches(rows)
}

const listQuoteFetchesBySession = `SELECT id, session_id, request_key, source, destination, amount, refresh,
    outcome, error, quote_count, started_at, finished_at, duration_ms
FROM quote_fetches
WHERE session_id = ?
ORDER BY started_at DESC
LIMIT ?`

type ListQuoteFetchesBySessionParams struct {
	SessionID string
	Limit     int64
}

func (q *Queries) ListQuoteFetchesBySession(ctx context.Context, arg ListQuoteFetchesBySessionParams) ([]QuoteFetch, error) {
	rows, err := q.db.QueryContext(ctx, listQuoteFetchesBySession, arg.SessionID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuoteFetches(rows)
}

func scanQuoteFetches(rows *sql.Rows) ([]QuoteFetch, error) {
	var items []QuoteFetch
	for rows.Next() {
		var i QuoteFetch
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.RequestKey,
			&i.Source,
			&i.Destination,
			&i.Amount,
			&i.Refresh,
			&i.Outcome,
			&i.Error,
			&i.QuoteCount,
			&i.StartedAt,
			&i.FinishedAt,
			&i.DurationMs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listProviderQuotes = `SELECT id, fetch_id, rank, provider, kind, output
FROM provider_quotes
WHERE fetch_id = ?
ORDER BY rank`

func (q *Queries) ListProviderQuotes(ctx context.Context, fetchID string) ([]ProviderQuote, error) {
	rows, err := q.db.QueryContext(ctx, listProviderQuotes, fetchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProviderQuote
	for rows.Next() {
		var i ProviderQuote
		if err := rows.Scan(&i.ID, &i.FetchID, &i.Rank, &i.Provider, &i.Kind, &i.Output); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertAPIRequest = `INSERT INTO api_requests (
    provider, method, url, request_headers, request_body,
    response_status, response_headers, response_body, error, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertAPIRequestParams struct {
	Provider        string
	Method          string
	Url             string
	RequestHeaders  sql.NullString
	RequestBody     sql.NullString
	ResponseStatus  sql.NullInt64
	ResponseHeaders sql.NullString
	ResponseBody    sql.NullString
	Error           sql.NullString
	DurationMs      sql.NullInt64
}

func (q *Queries) InsertAPIRequest(ctx context.Context, arg InsertAPIRequestParams) error {
	_, err := q.db.ExecContext(ctx, insertAPIRequest,
		arg.Provider,
		arg.Method,
		arg.Url,
		arg.RequestHeaders,
		arg.RequestBody,
		arg.ResponseStatus,
		arg.ResponseHeaders,
		arg.ResponseBody,
		arg.Error,
		arg.DurationMs,
	)
	return err
}

const listAPIRequests = `SELECT id, provider, method, url, request_headers, request_body,
    response_status, response_headers, response_body, error, duration_ms, created_at
FROM api_requests
WHERE provider = ?
ORDER BY id DESC
LIMIT ?`

type ListAPIRequestsParams struct {
	Provider string
	Limit    int64
}

func (q *Queries) ListAPIRequests(ctx context.Context, arg ListAPIRequestsParams) ([]ApiRequest, error) {
	rows, err := q.db.QueryContext(ctx, listAPIRequests, arg.Provider, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ApiRequest
	for rows.Next() {
		var i ApiRequest
		if err := rows.Scan(
			&i.ID,
			&i.Provider,
			&i.Method,
			&i.Url,
			&i.RequestHeaders,
			&i.RequestBody,
			&i.ResponseStatus,
			&i.ResponseHeaders,
			&i.ResponseBody,
			&i.Error,
			&i.DurationMs,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertTransaction = `INSERT INTO transactions (session_id, chain_id, tx_hash, provider)
VALUES (?, ?, ?, ?)
RETURNING id, session_id, chain_id, tx_hash, provider, status, block_number, created_at, settled_at`

type InsertTransactionParams struct {
	SessionID string
	ChainID   int64
	TxHash    string
	Provider  string
}

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, insertTransaction, arg.SessionID, arg.ChainID, arg.TxHash, arg.Provider)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.ChainID,
		&i.TxHash,
		&i.Provider,
		&i.Status,
		&i.BlockNumber,
		&i.CreatedAt,
		&i.SettledAt,
	)
	return i, err
}

const listPendingTransactions = `SELECT id, session_id, chain_id, tx_hash, provider, status, block_number, created_at, settled_at
FROM transactions
WHERE status = 'pending'
ORDER BY id`

func (q *Queries) ListPendingTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listPendingTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.ChainID,
			&i.TxHash,
			&i.Provider,
			&i.Status,
			&i.BlockNumber,
			&i.CreatedAt,
			&i.SettledAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransactionStatus = `UPDATE transactions
SET status = ?, block_number = ?, settled_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateTransactionStatusParams struct {
	Status      string
	BlockNumber sql.NullInt64
	ID          int64
}

func (q *Queries) UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateTransactionStatus, arg.Status, arg.BlockNumber, arg.ID)
	return err
}
