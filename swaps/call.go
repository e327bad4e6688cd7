package swaps

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallKind discriminates attached calls.
type CallKind uint8

const (
	// CallStatic executes Data as-is.
	CallStatic CallKind = iota
	// CallBalanceInjection overwrites 32 bytes of Data at Offset with the
	// executor's balance of Token right before the call.
	CallBalanceInjection
)

func (k CallKind) String() string {
	switch k {
	case CallStatic:
		return "static"
	case CallBalanceInjection:
		return "balance"
	default:
		return "unknown"
	}
}

// CallPhase says whether a call runs before or after the trade leg.
type CallPhase uint8

const (
	PhasePre CallPhase = iota
	PhasePost
)

func (p CallPhase) String() string {
	if p == PhasePre {
		return "pre"
	}
	return "post"
}

// Call is an operation bundled with a swap or bridge execution.
type Call struct {
	Phase  CallPhase
	Kind   CallKind
	Target common.Address
	Value  *big.Int
	Data   []byte
	Gas    uint64

	// Balance injection only.
	Token  common.Address
	Offset uint64
}

// ParseCall parses a static call written as TARGET:DATA[:VALUE], where DATA
// is 0x-prefixed calldata and VALUE is in wei.
func ParseCall(phase CallPhase, s string) (Call, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Call{}, fmt.Errorf("%w: call %q is not TARGET:DATA[:VALUE]", ErrInvalidInput, s)
	}
	if !common.IsHexAddress(parts[0]) {
		return Call{}, fmt.Errorf("%w: call target %q is not an address", ErrInvalidInput, parts[0])
	}
	data, err := hexutil.Decode(parts[1])
	if err != nil {
		return Call{}, fmt.Errorf("%w: call data %q: %v", ErrInvalidInput, parts[1], err)
	}
	c := Call{Phase: phase, Kind: CallStatic, Target: common.HexToAddress(parts[0]), Data: data}
	if len(parts) == 3 {
		v, ok := new(big.Int).SetString(parts[2], 10)
		if !ok || v.Sign() < 0 || v.BitLen() > 256 {
			return Call{}, fmt.Errorf("%w: call value %q", ErrInvalidInput, parts[2])
		}
		c.Value = v
	}
	return c, nil
}
