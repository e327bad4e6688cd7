package db

import (
	"database/sql"
	"time"
)

type QuoteFetch struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	RequestKey  string         `json:"request_key"`
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Amount      string         `json:"amount"`
	Refresh     bool           `json:"refresh"`
	Outcome     string         `json:"outcome"`
	Error       sql.NullString `json:"error"`
	QuoteCount  int64          `json:"quote_count"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	DurationMs  int64          `json:"duration_ms"`
}

type ProviderQuote struct {
	ID       int64  `json:"id"`
	FetchID  string `json:"fetch_id"`
	Rank     int64  `json:"rank"`
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Output   string `json:"output"`
}

type ApiRequest struct {
	ID              int64          `json:"id"`
	Provider        string         `json:"provider"`
	Method          string         `json:"method"`
	Url             string         `json:"url"`
	RequestHeaders  sql.NullString `json:"request_headers"`
	RequestBody     sql.NullString `json:"request_body"`
	ResponseStatus  sql.NullInt64  `json:"response_status"`
	ResponseHeaders sql.NullString `json:"response_headers"`
	ResponseBody    sql.NullString `json:"response_body"`
	Error           sql.NullString `json:"error"`
	DurationMs      sql.NullInt64  `json:"duration_ms"`
	CreatedAt       time.Time      `json:"created_at"`
}

type Transaction struct {
	ID          int64         `json:"id"`
	SessionID   string        `json:"session_id"`
	ChainID     int64         `json:"chain_id"`
	TxHash      string        `json:"tx_hash"`
	Provider    string        `json:"provider"`
	Status      string        `json:"status"`
	BlockNumber sql.NullInt64 `json:"block_number"`
	CreatedAt   time.Time     `json:"created_at"`
	SettledAt   sql.NullTime  `json:"settled_at"`
}
