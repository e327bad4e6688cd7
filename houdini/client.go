package houdini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api-partner.houdiniswap.com"

// Pair names a route by Houdini currency IDs.
type Pair struct {
	From string
	To   string
}

func (p Pair) String() string { return p.From + "→" + p.To }

func (p Pair) query(cexOnly bool) url.Values {
	return url.Values{
		"from":      {p.From},
		"to":        {p.To},
		"anonymous": {"false"},
		"cexOnly":   {strconv.FormatBool(cexOnly)},
	}
}

// Limits bounds the input amount, in whole source units, for a pair.
type Limits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Allows reports whether amount is inside the limits. A zero maximum is
// unbounded.
func (l Limits) Allows(amount decimal.Decimal) bool {
	if amount.LessThan(l.Min) {
		return false
	}
	return l.Max.IsZero() || !amount.GreaterThan(l.Max)
}

type QuoteResponse struct {
	AmountIn   decimal.Decimal `json:"amountIn"`
	AmountOut  decimal.Decimal `json:"amountOut"`
	QuoteID    string          `json:"quoteId"`
	InQuoteID  string          `json:"inQuoteId"`
	OutQuoteID string          `json:"outQuoteId"`
	Duration   int             `json:"duration"`
	SwapName   string          `json:"swapName"`
}

type exchangeRequest struct {
	Amount    json.Number `json:"amount"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	AddressTo string      `json:"addressTo"`
	Anonymous bool        `json:"anonymous"`
	InQuoteID string      `json:"inQuoteId,omitempty"`
}

// ExchangeResponse describes a created exchange. SenderAddress is where the
// user deposits.
type ExchangeResponse struct {
	ID              string          `json:"id"`
	HoudiniID       string          `json:"houdiniId"`
	SenderAddress   string          `json:"senderAddress"`
	ReceiverAddress string          `json:"receiverAddress"`
	Status          int             `json:"status"`
	InAmount        decimal.Decimal `json:"inAmount"`
	OutAmount       decimal.Decimal `json:"outAmount"`
	Expires         string          `json:"expires"`
}

type Client struct {
	baseURL    string
	auth       string
	httpClient *http.Client
}

func NewClient(apiKey, apiSecret, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		auth:       apiKey + ":" + apiSecret,
		httpClient: httpClient,
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", c.auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("houdini %s: %s: %s", req.URL.Path, resp.Status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("houdini %s: decoding response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) Limits(ctx context.Context, pair Pair) (Limits, error) {
	var bounds [2]decimal.Decimal
	if err := c.get(ctx, "/getMinMax", pair.query(true), &bounds); err != nil {
		return Limits{}, err
	}
	return Limits{Min: bounds[0], Max: bounds[1]}, nil
}

// Quote prices amount (whole source units). CEX routes are tried first; any
// failure there retries across all routes.
func (c *Client) Quote(ctx context.Context, pair Pair, amount decimal.Decimal) (*QuoteResponse, error) {
	var lastErr error
	for _, cexOnly := range []bool{true, false} {
		q := pair.query(cexOnly)
		q.Set("amount", amount.String())

		var quote QuoteResponse
		if lastErr = c.get(ctx, "/quote", q, &quote); lastErr == nil {
			return &quote, nil
		}
	}
	return nil, lastErr
}

// CreateExchange opens an exchange for a previously quoted pair.
func (c *Client) CreateExchange(ctx context.Context, pair Pair, amount decimal.Decimal, receiver, quoteID string) (*ExchangeResponse, error) {
	req := exchangeRequest{
		Amount:    json.Number(amount.String()),
		From:      pair.From,
		To:        pair.To,
		AddressTo: receiver,
		InQuoteID: quoteID,
	}
	var ex ExchangeResponse
	if err := c.post(ctx, "/exchange", req, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}
