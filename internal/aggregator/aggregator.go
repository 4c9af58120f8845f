package aggregator

import (
	"context"

	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// Client is the uniform capability every liquidity-aggregator client
// implements. FetchQuote translates the normalized trade request into the
// provider's wire format, calls its API, and normalizes the response into an
// AggregatorQuote. Errors are *model.RequestError values carrying the
// upstream status and payload.
//
// When req.SkipValidation is set, clients return a quote without calldata
// rather than paying for the provider's build/assemble call.
type Client interface {
	Name() model.AggregatorName
	FetchQuote(ctx context.Context, req *model.TradeRequest) (*model.AggregatorQuote, error)
}
