// Package across quotes cross-chain transfers through the Across protocol.
// Across relayers can execute a message on the destination chain, which makes
// it the bridge used for requests with attached calls.
package across

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
)

const DefaultBaseURL = "https://app.across.to/api"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// FeeParams is the query for /suggested-fees.
type FeeParams struct {
	InputToken         string
	OutputToken        string
	OriginChainID      uint64
	DestinationChainID uint64
	Amount             string
	Depositor          string
	Recipient          string
	Message            []byte
}

// flexUint accepts both JSON numbers and quoted decimal strings; the API
// mixes the two.
type flexUint uint64

func (f *flexUint) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexUint(v)
	return nil
}

type RelayFee struct {
	Pct   string `json:"pct"`
	Total string `json:"total"`
}

type SuggestedFees struct {
	TotalRelayFee       RelayFee `json:"totalRelayFee"`
	Timestamp           flexUint `json:"timestamp"`
	FillDeadline        flexUint `json:"fillDeadline"`
	ExclusiveRelayer    string   `json:"exclusiveRelayer"`
	ExclusivityDeadline flexUint `json:"exclusivityDeadline"`
	OutputAmount        string   `json:"outputAmount"`
	SpokePoolAddress    string   `json:"spokePoolAddress"`
	IsAmountTooLow      bool     `json:"isAmountTooLow"`
}

// SuggestedFees prices a deposit and returns the parameters the SpokePool
// deposit must carry.
func (c *Client) SuggestedFees(ctx context.Context, p FeeParams) (*SuggestedFees, error) {
	q := url.Values{}
	q.Set("inputToken", p.InputToken)
	q.Set("outputToken", p.OutputToken)
	q.Set("originChainId", strconv.FormatUint(p.OriginChainID, 10))
	q.Set("destinationChainId", strconv.FormatUint(p.DestinationChainID, 10))
	q.Set("amount", p.Amount)
	if p.Depositor != "" {
		q.Set("depositor", p.Depositor)
	}
	if p.Recipient != "" {
		q.Set("recipient", p.Recipient)
	}
	if len(p.Message) > 0 {
		q.Set("message", fmt.Sprintf("0x%x", p.Message))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/suggested-fees?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("across suggested-fees: %s: %s", resp.Status, body)
	}

	var fees SuggestedFees
	if err := json.Unmarshal(body, &fees); err != nil {
		return nil, fmt.Errorf("parsing suggested fees: %w", err)
	}
	return &fees, nil
}
