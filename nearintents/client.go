package nearintents

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
)

// Token is an entry of the 1click supported token list.
type Token struct {
	AssetID         string
	Symbol          string
	Blockchain      string
	ContractAddress string
	Decimals        uint8
}

// QuoteParams describe an exact-input swap.
type QuoteParams struct {
	OriginAsset      string
	DestinationAsset string
	Amount           string
	RefundTo         string
	Recipient        string
	SlippageBps      int64
	Deadline         time.Time
}

// Quote is the part of a 1click quote the provider relies on.
type Quote struct {
	DepositAddress string
	AmountOut      string
	CorrelationID  string
}

// Client wraps the 1click SDK with API key authentication.
type Client struct {
	api    *oneclick.APIClient
	apiKey string
}

// NewClient creates a new Near Intents 1click API client. httpClient may be
// nil; baseURL overrides the SDK's default server when set.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	cfg := oneclick.NewConfiguration()
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL != "" {
		cfg.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}
	return &Client{
		api:    oneclick.NewAPIClient(cfg),
		apiKey: apiKey,
	}
}

// authCtx returns a context with the bearer token set.
func (c *Client) authCtx(ctx context.Context) context.Context {
	if c.apiKey == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.apiKey)
}

// Tokens lists every asset 1click can route.
func (c *Client) Tokens(ctx context.Context) ([]Token, error) {
	resp, _, err := c.api.OneClickAPI.GetTokens(c.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("nearintents GetTokens: %w", err)
	}
	out := make([]Token, 0, len(resp))
	for _, t := range resp {
		out = append(out, Token{
			AssetID:         t.GetAssetId(),
			Symbol:          t.GetSymbol(),
			Blockchain:      string(t.GetBlockchain()),
			ContractAddress: t.GetContractAddress(),
			Decimals:        uint8(t.GetDecimals()),
		})
	}
	return out, nil
}

// Quote requests a non-dry quote, which reserves a deposit address.
func (c *Client) Quote(ctx context.Context, p QuoteParams) (*Quote, error) {
	quoteReq := *oneclick.NewQuoteRequest(
		false,               // dry
		"EXACT_INPUT",       // swapType
		float32(p.SlippageBps),
		p.OriginAsset,
		"ORIGIN_CHAIN", // depositType
		p.DestinationAsset,
		p.Amount,
		p.RefundTo,
		"ORIGIN_CHAIN", // refundType
		p.Recipient,
		"DESTINATION_CHAIN", // recipientType
		p.Deadline,
	)
	depositMode := "SIMPLE"
	quoteReq.DepositMode = &depositMode

	resp, _, err := c.api.OneClickAPI.GetQuote(c.authCtx(ctx)).QuoteRequest(quoteReq).Execute()
	if err != nil {
		return nil, fmt.Errorf("nearintents GetQuote: %w", err)
	}
	return &Quote{
		DepositAddress: resp.Quote.GetDepositAddress(),
		AmountOut:      resp.Quote.AmountOut,
		CorrelationID:  resp.CorrelationId,
	}, nil
}
