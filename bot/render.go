package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RaghavSood/quoteflow/engine"
	"github.com/RaghavSood/quoteflow/quotestate"
	"github.com/RaghavSood/quoteflow/swaps"
)

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// renderView formats a session view as the chat's status message.
func renderView(v engine.View) string {
	if v.Request == nil {
		return "No active quote. Use /quote to start."
	}

	req := v.Request
	var b strings.Builder
	fmt.Fprintf(&b, "*%s %s* (%s) → *%s*\n",
		esc(req.Amount.Decimal().String()), esc(req.Amount.Currency.Symbol),
		esc(req.Amount.Currency.String()), esc(req.To.String()))

	switch {
	case v.Transacting:
		b.WriteString("Transaction in progress, quotes paused.\n")
	case v.Status == quotestate.Error:
		fmt.Fprintf(&b, "No quotes: %s\nUse /refresh to try again.\n", esc(v.Error))
	case v.Quoting && len(v.Quotes) == 0:
		b.WriteString("Fetching quotes…\n")
	case v.Quoting:
		b.WriteString("Refreshing…\n")
	case v.Status == quotestate.Idle:
		b.WriteString("Stopped. Use /refresh to quote again.\n")
	}

	for i, q := range v.Quotes {
		marker := "  "
		if i == v.SelectedIndex {
			marker = "▶ "
		}
		fmt.Fprintf(&b, "%s%d. %s: %s %s\n", marker, i+1, esc(q.Provider),
			esc(swaps.FormatUnits(q.RealizedOutput(), req.To)), esc(req.To.Symbol))
	}

	if !v.FetchedAt.IsZero() && len(v.Quotes) > 0 {
		fmt.Fprintf(&b, "Updated %s UTC\n", v.FetchedAt.UTC().Format("15:04:05"))
	}
	if req.MinOutput != nil {
		fmt.Fprintf(&b, "Required: %s %s\n", esc(swaps.FormatUnits(req.MinOutput, req.To)), esc(req.To.Symbol))
	}
	if w := v.Warning; w != nil {
		fmt.Fprintf(&b, "⚠️ %s\n", esc(w.String()))
		if w.SuggestedInput != nil {
			fmt.Fprintf(&b, "Send about %s %s to cover it.\n",
				esc(swaps.FormatUnits(w.SuggestedInput, req.Amount.Currency)), esc(req.Amount.Currency.Symbol))
		}
	}
	if v.AutoRefreshStopped {
		b.WriteString("Auto-refresh paused. Use /refresh to resume.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderTx formats an assembled transaction for manual signing.
func renderTx(provider string, tx *swaps.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* transaction on chain %d\n", esc(provider), tx.ChainID)
	if tx.Approval != nil {
		fmt.Fprintf(&b, "First approve `%s` to spend `%s` of token `%s`\n",
			tx.Approval.Spender.Hex(), tx.Approval.Amount, tx.Approval.Token.Hex())
	}
	fmt.Fprintf(&b, "To: `%s`\n", tx.To.Hex())
	if tx.Value != nil && tx.Value.Sign() > 0 {
		fmt.Fprintf(&b, "Value: `%s` wei\n", tx.Value)
	}
	if len(tx.Data) > 0 {
		fmt.Fprintf(&b, "Data: `0x%x`\n", tx.Data)
	}
	if tx.Gas > 0 {
		fmt.Fprintf(&b, "Gas limit: %d\n", tx.Gas)
	}
	if n := len(tx.PreCalls) + len(tx.PostCalls); n > 0 {
		fmt.Fprintf(&b, "Bundled calls: %d before, %d after\n", len(tx.PreCalls), len(tx.PostCalls))
	}
	for _, k := range sortedKeys(tx.Meta) {
		fmt.Fprintf(&b, "%s: `%s`\n", esc(k), tx.Meta[k])
	}
	b.WriteString("Send it, then reply /sent <txhash>. /cancel to go back to quoting.")
	return b.String()
}

func renderTokens(list []swaps.Currency) string {
	if len(list) == 0 {
		return "No tokens known."
	}
	var b strings.Builder
	for _, c := range list {
		if c.IsNative() {
			fmt.Fprintf(&b, "%s (native)\n", esc(c.String()))
			continue
		}
		fmt.Fprintf(&b, "%s `%s`\n", esc(c.String()), c.Address)
	}
	return strings.TrimRight(b.String(), "\n")
}
