package simpleswap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.simpleswap.io"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) do(req *http.Request, op string, out any) error {
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
		return fmt.Errorf("simpleswap %s: %s: %s", op, resp.Status, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", op, err)
	}
	return nil
}

// GetEstimated returns the estimated output for a floating-rate swap of
// amount (whole units, decimal string).
func (c *Client) GetEstimated(ctx context.Context, from, to, amount string) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("fixed", "false")
	q.Set("currency_from", from)
	q.Set("currency_to", to)
	q.Set("amount", amount)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_estimated?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	// Response is a quoted string like "0.00123456"
	var result string
	if err := c.do(req, "get_estimated", &result); err != nil {
		return "", err
	}
	return result, nil
}

type Exchange struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AddressFrom string `json:"address_from"`
	AddressTo   string `json:"address_to"`
	AmountFrom  string `json:"expected_amount"`
	AmountTo    string `json:"amount_to"`
}

// CreateExchange creates a new exchange and returns the exchange details including the deposit address.
func (c *Client) CreateExchange(ctx context.Context, from, to, amount, addressTo, refundAddress string) (*Exchange, error) {
	payload := map[string]any{
		"fixed":               false,
		"currency_from":       from,
		"currency_to":         to,
		"amount":              amount,
		"address_to":          addressTo,
		"extra_id_to":         "",
		"user_refund_address": refundAddress,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + "/create_exchange?" + url.Values{"api_key": {c.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var exchange Exchange
	if err := c.do(req, "create_exchange", &exchange); err != nil {
		return nil, err
	}
	return &exchange, nil
}
