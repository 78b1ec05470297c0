// Package classifier labels feed transactions from their value, call selector and derived metrics.
package classifier

import (
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

const (
	LabelSwap                = "Swap"
	LabelApproval            = "Approval"
	LabelTokenTransfer       = "Token Transfer"
	LabelLiquidity           = "Liquidity"
	LabelContractInteraction = "Contract Interaction"
	LabelTransfer            = "Transfer"
	LabelWhaleTransfer       = "Whale Transfer"
	LabelZeroValue           = "Zero-Value Call"

	qualifierHighSlippage = "High Slippage"
	qualifierHighImpact   = "High Impact"
)

const (
	highSlippagePercent   = 5.0
	highImpactPercent     = 10.0
	whaleThresholdInEther = 100
)

var selectorFamilies = map[string]string{
	// Uniswap V2 style routers
	"0x38ed1739": LabelSwap, // swapExactTokensForTokens
	"0x8803dbee": LabelSwap, // swapTokensForExactTokens
	"0x7ff36ab5": LabelSwap, // swapExactETHForTokens
	"0xfb3bdb41": LabelSwap, // swapETHForExactTokens
	"0x18cbafe5": LabelSwap, // swapExactTokensForETH
	"0x4a25d94a": LabelSwap, // swapTokensForExactETH
	"0xb6f9de95": LabelSwap, // swapExactETHForTokensSupportingFeeOnTransferTokens
	"0x791ac947": LabelSwap, // swapExactTokensForETHSupportingFeeOnTransferTokens
	"0x5c11d795": LabelSwap, // swapExactTokensForTokensSupportingFeeOnTransferTokens
	// Uniswap V3 / universal router
	"0x414bf389": LabelSwap, // exactInputSingle
	"0xc04b8d59": LabelSwap, // exactInput
	"0xdb3e2198": LabelSwap, // exactOutputSingle
	"0x3593564c": LabelSwap, // execute(bytes,bytes[],uint256)
	"0x5ae401dc": LabelSwap, // multicall(uint256,bytes[])
	// ERC-20
	"0x095ea7b3": LabelApproval,      // approve
	"0xa9059cbb": LabelTokenTransfer, // transfer
	"0x23b872dd": LabelTokenTransfer, // transferFrom
	// Liquidity
	"0xe8e33700": LabelLiquidity, // addLiquidity
	"0xf305d719": LabelLiquidity, // addLiquidityETH
	"0xbaa2abde": LabelLiquidity, // removeLiquidity
	"0x02751cec": LabelLiquidity, // removeLiquidityETH
}

var whaleThreshold = new(big.Int).Mul(big.NewInt(whaleThresholdInEther), big.NewInt(params.Ether))

// Classifier is stateless; the zero value is ready to use.
type Classifier struct{}

func New() Classifier {
	return Classifier{}
}

func (Classifier) Classify(value *big.Int, methodSelector *string, slippage, priceImpact *float64) string {
	return Classify(value, methodSelector, slippage, priceImpact)
}

// Classify is deterministic: equal inputs always produce the same label.
func Classify(value *big.Int, methodSelector *string, slippage, priceImpact *float64) string {
	if methodSelector == nil {
		return transferLabel(value)
	}

	family, known := selectorFamilies[strings.ToLower(*methodSelector)]
	if !known {
		return LabelContractInteraction
	}

	if family == LabelSwap || family == LabelLiquidity {
		switch {
		case slippage != nil && math.Abs(*slippage) > highSlippagePercent:
			return qualifierHighSlippage + " " + family
		case priceImpact != nil && *priceImpact > highImpactPercent:
			return qualifierHighImpact + " " + family
		}
	}

	return family
}

func transferLabel(value *big.Int) string {
	switch {
	case value == nil || value.Sign() == 0:
		return LabelZeroValue
	case value.Cmp(whaleThreshold) >= 0:
		return LabelWhaleTransfer
	default:
		return LabelTransfer
	}
}
