// Package apilog records provider HTTP traffic. Every quote a provider
// returns can be traced back to the raw request and response.
package apilog

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/RaghavSood/quoteflow/db"
)

const (
	maxBodySize  = 64 * 1024
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

// Sink persists request logs. *db.Store satisfies it.
type Sink interface {
	InsertAPIRequest(ctx context.Context, arg db.InsertAPIRequestParams) error
}

var redactedHeaders = []string{"Authorization", "X-Api-Key", "Cookie"}

var redactedParams = []string{"api_key", "apiKey"}

// Transport wraps another RoundTripper and hands a copy of every exchange to
// a Sink. Writes happen on one background goroutine; when the queue is full
// entries are dropped rather than delaying provider calls.
type Transport struct {
	inner    http.RoundTripper
	provider string
	sink     Sink
	queue    chan db.InsertAPIRequestParams
	logger   *slog.Logger
}

// NewHTTPClient returns a client for provider whose traffic is logged to
// sink. A nil sink disables logging.
func NewHTTPClient(provider string, sink Sink) *http.Client {
	client := &http.Client{Timeout: 30 * time.Second}
	if sink != nil {
		client.Transport = NewTransport(provider, sink, nil)
	}
	return client
}

func NewTransport(provider string, sink Sink, inner http.RoundTripper) *Transport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	t := &Transport{
		inner:    inner,
		provider: provider,
		sink:     sink,
		queue:    make(chan db.InsertAPIRequestParams, queueSize),
		logger:   slog.Default().With("component", "apilog", "provider", provider),
	}
	go t.drain()
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBody := capture(&req.Body)

	entry := db.InsertAPIRequestParams{
		Provider:       t.provider,
		Method:         req.Method,
		Url:            redactURL(req),
		RequestHeaders: nullString(headerString(req.Header)),
		RequestBody:    nullString(truncate(reqBody)),
	}

	start := time.Now()
	resp, err := t.inner.RoundTrip(req)
	entry.DurationMs = sql.NullInt64{Int64: time.Since(start).Milliseconds(), Valid: true}

	switch {
	case err != nil:
		entry.Error = nullString(err.Error())
	default:
		entry.ResponseStatus = sql.NullInt64{Int64: int64(resp.StatusCode), Valid: true}
		entry.ResponseHeaders = nullString(headerString(resp.Header))
		entry.ResponseBody = nullString(truncate(capture(&resp.Body)))
	}

	select {
	case t.queue <- entry:
	default:
		t.logger.Warn("api log queue full, dropping entry", "method", entry.Method, "url", entry.Url)
	}
	return resp, err
}

func (t *Transport) drain() {
	for entry := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := t.sink.InsertAPIRequest(ctx, entry); err != nil {
			t.logger.Error("failed to store api request", "method", entry.Method, "url", entry.Url, "error", err)
		}
		cancel()
	}
}

// capture reads body fully and replaces it with a rewindable copy.
func capture(body *io.ReadCloser) string {
	if *body == nil || *body == http.NoBody {
		return ""
	}
	data, _ := io.ReadAll(*body)
	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(data))
	return string(data)
}

func redactURL(req *http.Request) string {
	u := *req.URL
	q := u.Query()
	changed := false
	for _, p := range redactedParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func headerString(h http.Header) string {
	h = h.Clone()
	for _, k := range redactedHeaders {
		if h.Get(k) != "" {
			h.Set(k, "REDACTED")
		}
	}
	var buf bytes.Buffer
	h.Write(&buf)
	return buf.String()
}

func truncate(s string) string {
	if len(s) <= maxBodySize {
		return s
	}
	return s[:maxBodySize] + "...[truncated]"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
