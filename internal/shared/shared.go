package shared

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const selectorLength = 4

// MethodSelector returns the 0x-prefixed first four bytes of call data, or nil for plain transfers.
func MethodSelector(input []byte) *string {
	if len(input) < selectorLength {
		return nil
	}
	selector := hexutil.Encode(input[:selectorLength])
	return &selector
}

// BigString renders an optional quantity as a decimal string; absent values render as "0".
func BigString(v *hexutil.Big) string {
	if v == nil {
		return "0"
	}
	return v.ToInt().String()
}

// ToBig returns the value behind an optional quantity, nil when absent.
func ToBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return v.ToInt()
}
