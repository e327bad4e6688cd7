package across

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/quoteflow/swaps"
)

// MulticallHandler is the Across destination handler that executes the
// instructions carried in a deposit message. Deployed at the same address
// on every supported chain.
var MulticallHandler = common.HexToAddress("0x924a9f036260DdD5808007E1AA95f08eD08aA569")

type handlerCall struct {
	Target   common.Address
	CallData []byte
	Value    *big.Int
}

type instructions struct {
	Calls             []handlerCall
	FallbackRecipient common.Address
}

type replacement struct {
	Token  common.Address
	Offset *big.Int
}

var instructionsArgs = func() abi.Arguments {
	t, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "calls", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "target", Type: "address"},
			{Name: "callData", Type: "bytes"},
			{Name: "value", Type: "uint256"},
		}},
		{Name: "fallbackRecipient", Type: "address"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

const handlerABIJSON = `[{
	"inputs": [
		{"name": "target", "type": "address"},
		{"name": "callData", "type": "bytes"},
		{"name": "value", "type": "uint256"},
		{"components": [
			{"name": "token", "type": "address"},
			{"name": "offset", "type": "uint256"}
		], "name": "replacement", "type": "tuple[]"}
	],
	"name": "makeCallWithBalance",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

var handlerABI = swaps.MustParseABI(handlerABIJSON)

// EncodeMessage encodes calls as MulticallHandler instructions. Balance
// injection calls are routed through the handler's makeCallWithBalance so
// the relayed amount is written into the calldata at execution time. Any
// leftover funds go to fallback.
func EncodeMessage(calls []swaps.Call, fallback common.Address) ([]byte, error) {
	ins := instructions{FallbackRecipient: fallback, Calls: make([]handlerCall, 0, len(calls))}
	for i, c := range calls {
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		hc := handlerCall{Target: c.Target, CallData: c.Data, Value: value}
		if c.Kind == swaps.CallBalanceInjection {
			data, err := handlerABI.Pack("makeCallWithBalance", c.Target, c.Data, value,
				[]replacement{{Token: c.Token, Offset: new(big.Int).SetUint64(c.Offset)}})
			if err != nil {
				return nil, fmt.Errorf("encoding call %d: %w", i, err)
			}
			hc = handlerCall{Target: MulticallHandler, CallData: data, Value: new(big.Int)}
		}
		ins.Calls = append(ins.Calls, hc)
	}
	return instructionsArgs.Pack(ins)
}
