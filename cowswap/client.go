// Package cowswap provides a client and quote provider for the CoW Protocol
// (CoWSwap) API. Orders are pre-signed on-chain so the assembled transaction
// can be signed by any external wallet.
package cowswap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RaghavSood/quoteflow/swaps"
)

const (
	// SettlementContract is the GPv2Settlement address (same on all chains).
	SettlementContract = "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"
	// VaultRelayer is the GPv2VaultRelayer address. Sell tokens must be approved to this.
	VaultRelayer = "0xC92E8bdf79f0507f65a392b0ab4667716BFE0110"
	// NativeToken is the placeholder address for the chain's native gas token.
	NativeToken = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

	DefaultBaseURL = "https://api.cow.fi"

	appDataJSON = `{"version":"1.3.0","metadata":{}}`
	appDataHash = "0xa872cd1c41362821123e195e2dc6a3f19502a451e1fb2a1f861131526e98fdc7"
)

// networks maps chain IDs to CoW API network path segments.
var networks = map[uint64]string{
	swaps.ChainEthereum:  "mainnet",
	swaps.ChainBase:      "base",
	swaps.ChainArbitrum:  "arbitrum_one",
	swaps.ChainAvalanche: "avalanche",
	swaps.ChainPolygon:   "polygon",
}

// Supported reports whether CoW Protocol settles orders on chainID.
func Supported(chainID uint64) bool {
	_, ok := networks[chainID]
	return ok
}

// Client handles CoW Protocol API interactions.
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

func (c *Client) apiBase(chainID uint64) (string, error) {
	network, ok := networks[chainID]
	if !ok {
		return "", fmt.Errorf("%w: chain %d not supported by CoW Protocol", swaps.ErrUnsupportedPair, chainID)
	}
	return c.baseURL + "/" + network + "/api/v1", nil
}

// QuoteRequest is the POST body for /api/v1/quote.
type QuoteRequest struct {
	SellToken           string `json:"sellToken"`
	BuyToken            string `json:"buyToken"`
	Receiver            string `json:"receiver"`
	SellAmountBeforeFee string `json:"sellAmountBeforeFee"`
	Kind                string `json:"kind"`
	From                string `json:"from"`
	AppData             string `json:"appData"`
	AppDataHash         string `json:"appDataHash"`
	SigningScheme       string `json:"signingScheme"`
}

// OrderQuote is the order part of a quote response.
type OrderQuote struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	ValidTo           uint32 `json:"validTo"`
	AppData           string `json:"appData"`
	AppDataHash       string `json:"appDataHash"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
}

// QuoteResult is the response from /api/v1/quote.
type QuoteResult struct {
	Quote      OrderQuote `json:"quote"`
	From       string     `json:"from"`
	Expiration string     `json:"expiration"`
	ID         int64      `json:"id"`
}

// OrderSubmission is the POST body for /api/v1/orders.
type OrderSubmission struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	ValidTo           uint32 `json:"validTo"`
	AppData           string `json:"appData"`
	AppDataHash       string `json:"appDataHash"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
	SigningScheme     string `json:"signingScheme"`
	Signature         string `json:"signature"`
	From              string `json:"from"`
	QuoteID           int64  `json:"quoteId,omitempty"`
}

func (c *Client) post(ctx context.Context, chainID uint64, path string, body any, want int, out any) error {
	base, err := c.apiBase(chainID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != want {
		return fmt.Errorf("cow %s returned %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// GetQuote requests a sell quote from the CoW Protocol API.
func (c *Client) GetQuote(ctx context.Context, chainID uint64, req QuoteRequest) (*QuoteResult, error) {
	if req.AppData == "" {
		req.AppData = appDataJSON
		req.AppDataHash = appDataHash
	}
	var qr QuoteResult
	if err := c.post(ctx, chainID, "/quote", req, http.StatusOK, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// SubmitOrder submits an order to the CoW Protocol API. Returns the order UID.
func (c *Client) SubmitOrder(ctx context.Context, chainID uint64, order OrderSubmission) (string, error) {
	var orderUID string
	if err := c.post(ctx, chainID, "/orders", order, http.StatusCreated, &orderUID); err != nil {
		return "", err
	}
	return orderUID, nil
}
