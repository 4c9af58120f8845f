package quote

import (
	"math/big"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// slippageScale is the fixed-point scale slippage fractions are converted to
// before any amount arithmetic. All division rounds up so the service never
// promises a better rate than the route can deliver, even by one unit.
const slippageScale = 100000

// MinBuyAmount computes the minimum acceptable buy amount for an exact-input
// trade: buyAmount scaled down by the slippage tolerance, rounded up.
func MinBuyAmount(buyAmount string, slippage decimal.Decimal) (*big.Int, error) {
	amount, err := parseAmount(buyAmount, "buy")
	if err != nil {
		return nil, err
	}
	factor := new(big.Int).Sub(big.NewInt(slippageScale), scaledSlippage(slippage))
	return ceilDiv(new(big.Int).Mul(amount, factor), big.NewInt(slippageScale)), nil
}

// MaxSellAmount computes the sell amount for an exact-output trade:
// sellAmount scaled up by the slippage tolerance, rounded up.
func MaxSellAmount(sellAmount string, slippage decimal.Decimal) (*big.Int, error) {
	amount, err := parseAmount(sellAmount, "sell")
	if err != nil {
		return nil, err
	}
	factor := new(big.Int).Add(big.NewInt(slippageScale), scaledSlippage(slippage))
	return ceilDiv(new(big.Int).Mul(amount, factor), big.NewInt(slippageScale)), nil
}

func parseAmount(raw, side string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, model.NewRequestError(http.StatusBadRequest, "invalid %s amount %q", side, raw)
	}
	if amount.Sign() < 0 {
		return nil, model.NewRequestError(http.StatusBadRequest, "insufficient %s amount", side)
	}
	return amount, nil
}

func scaledSlippage(slippage decimal.Decimal) *big.Int {
	return slippage.Mul(decimal.NewFromInt(slippageScale)).BigInt()
}

// ceilDiv divides num by denom rounding toward positive infinity. num must be
// non-negative, denom positive.
func ceilDiv(num, denom *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, denom, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
