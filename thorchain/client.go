package thorchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

type QuoteResponse struct {
	InboundAddress      string    `json:"inbound_address"`
	Router              string    `json:"router"`
	Expiry              int64     `json:"expiry"`
	Memo                string    `json:"memo"`
	ExpectedAmountOut   string    `json:"expected_amount_out"`
	DustThreshold       string    `json:"dust_threshold"`
	RecommendedMinIn    string    `json:"recommended_min_amount_in"`
	RecommendedGasRate  string    `json:"recommended_gas_rate"`
	GasRateUnits        string    `json:"gas_rate_units"`
	Fees                QuoteFees `json:"fees"`
	OutboundDelayBlocks int64     `json:"outbound_delay_blocks"`
	OutboundDelaySecs   int64     `json:"outbound_delay_seconds"`
	TotalSwapSecs       int64     `json:"total_swap_seconds"`
	Warning             string    `json:"warning"`
	Notes               string    `json:"notes"`
}

type QuoteFees struct {
	Asset       string `json:"asset"`
	Affiliate   string `json:"affiliate"`
	Outbound    string `json:"outbound"`
	Liquidity   string `json:"liquidity"`
	Total       string `json:"total"`
	SlippageBps int    `json:"slippage_bps"`
	TotalBps    int    `json:"total_bps"`
}

type Pool struct {
	Asset    string `json:"asset"`
	Status   string `json:"status"`
	Decimals int    `json:"decimals"`
}

type InboundAddress struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Router  string `json:"router"`
	Halted  bool   `json:"halted"`
}

// QuoteParams are the inputs of /thorchain/quote/swap. Amount is in
// THORChain's 1e8 units.
type QuoteParams struct {
	FromAsset    string
	ToAsset      string
	Amount       *big.Int
	Destination  string
	RefundTo     string
	ToleranceBps int64
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a THORNode client. httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client, limiter *rate.Limiter) *Client {
	if baseURL == "" {
		baseURL = ThornodeBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(1, 1)
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, limiter: limiter}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Client) GetQuote(ctx context.Context, p QuoteParams) (*QuoteResponse, error) {
	params := url.Values{}
	params.Set("from_asset", p.FromAsset)
	params.Set("to_asset", p.ToAsset)
	params.Set("amount", p.Amount.String())
	params.Set("destination", p.Destination)
	if p.RefundTo != "" {
		params.Set("refund_address", p.RefundTo)
	}
	if p.ToleranceBps > 0 {
		params.Set("tolerance_bps", strconv.FormatInt(p.ToleranceBps, 10))
	}
	params.Set("streaming_interval", "1")
	params.Set("streaming_quantity", "0")

	var quote QuoteResponse
	if err := c.get(ctx, "/thorchain/quote/swap", params, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) GetPools(ctx context.Context) ([]Pool, error) {
	var pools []Pool
	if err := c.get(ctx, "/thorchain/pools", nil, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

func (c *Client) GetInboundAddresses(ctx context.Context) ([]InboundAddress, error) {
	var addrs []InboundAddress
	if err := c.get(ctx, "/thorchain/inbound_addresses", nil, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}
