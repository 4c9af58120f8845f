package quote

import (
	"math/big"
	"net/http"
	"sort"

	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// Best ranks quotes by buy amount descending, breaking ties with the lower
// gas estimate, and returns the winner. The sort is stable so equal quotes
// keep their arrival order. Amounts are compared as big integers; they
// routinely exceed 64-bit range.
func Best(quotes []*model.AggregatorQuote) (*model.AggregatorQuote, error) {
	if len(quotes) == 0 {
		return nil, model.NewRequestError(http.StatusInternalServerError, "no quotes to compare")
	}

	ranked := make([]*model.AggregatorQuote, len(quotes))
	copy(ranked, quotes)

	sort.SliceStable(ranked, func(i, j int) bool {
		a := parseBuyAmount(ranked[i].BuyAmount)
		b := parseBuyAmount(ranked[j].BuyAmount)
		switch a.Cmp(b) {
		case 1:
			return true
		case -1:
			return false
		}
		return ranked[i].EstimatedGas < ranked[j].EstimatedGas
	})
	return ranked[0], nil
}

func parseBuyAmount(raw string) *big.Int {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return big.NewInt(0)
	}
	return amount
}
