package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/RaghavSood/quoteflow/swaps"
)

const usage = `Commands:
/quote <amount> <CHAIN.SYMBOL> <CHAIN.SYMBOL> [receiver] [slippage%] [min=<amount>] - start quoting
/select <n> - pick quote n
/refresh - fetch fresh quotes
/abort - stop the current fetch
/clear - drop the request
/execute - build the transaction for the selected quote
/sent <txhash> - track a submitted transaction
/cancel - give up on the transaction and resume quoting
/status - show the current quotes
/tokens [CHAIN] - list known tokens

Example: /quote 100 BASE.USDC ARB.USDC 0xYourAddress 0.5 min=99.5`

type quoteArgs struct {
	Amount   string
	From     swaps.Asset
	To       swaps.Asset
	Receiver string
	Slippage *decimal.Decimal // nil means the configured default
	MinOut   string           // required destination amount, whole units
}

// parseQuoteArgs parses "<amount> <from> <to> [receiver] [slippage%]
// [min=<amount>]". The optional fields can come in any order; a bare number
// or a number with a % suffix is the slippage in percent.
func parseQuoteArgs(args string) (quoteArgs, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 || len(fields) > 6 {
		return quoteArgs{}, errors.New("usage: /quote <amount> <CHAIN.SYMBOL> <CHAIN.SYMBOL> [receiver] [slippage%] [min=<amount>]")
	}

	amount, err := decimal.NewFromString(fields[0])
	if err != nil || !amount.IsPositive() {
		return quoteArgs{}, fmt.Errorf("invalid amount %q", fields[0])
	}

	from, err := swaps.ParseAsset(fields[1])
	if err != nil {
		return quoteArgs{}, err
	}
	to, err := swaps.ParseAsset(fields[2])
	if err != nil {
		return quoteArgs{}, err
	}

	out := quoteArgs{Amount: fields[0], From: from, To: to}
	for _, f := range fields[3:] {
		if v, ok := strings.CutPrefix(strings.ToLower(f), "min="); ok {
			if out.MinOut != "" {
				return quoteArgs{}, errors.New("min= given twice")
			}
			if d, err := decimal.NewFromString(v); err != nil || !d.IsPositive() {
				return quoteArgs{}, fmt.Errorf("invalid minimum %q", v)
			}
			out.MinOut = v
			continue
		}
		if pct, ok := parsePercent(f); ok {
			if out.Slippage != nil {
				return quoteArgs{}, errors.New("slippage given twice")
			}
			if pct.IsNegative() || pct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
				return quoteArgs{}, fmt.Errorf("slippage %s%% out of range", pct)
			}
			frac := pct.Shift(-2)
			out.Slippage = &frac
			continue
		}
		if out.Receiver != "" {
			return quoteArgs{}, fmt.Errorf("unexpected argument %q", f)
		}
		out.Receiver = f
	}
	return out, nil
}

func parsePercent(s string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSuffix(s, "%")
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseIndex parses a 1-based quote number into a 0-based index.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("usage: /select <n> with n starting at 1")
	}
	return n - 1, nil
}

func parseTxHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return common.Hash{}, errors.New("usage: /sent <0x-prefixed transaction hash>")
	}
	return common.HexToHash(s), nil
}
