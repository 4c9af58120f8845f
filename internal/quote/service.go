package quote

import (
	"context"
	"math/big"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/aggregator"
	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/metrics"
	"github.com/metaswap-labs/swap-aggregator/internal/txbuilder"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// Service fans a trade request out to every registered aggregator client,
// picks the best quote, and unless validation is skipped builds the
// executable transaction for it.
type Service struct {
	logger  *zap.Logger
	clients []aggregator.Client
	builder *txbuilder.Builder
}

func NewService(logger *zap.Logger, clients []aggregator.Client, builder *txbuilder.Builder) *Service {
	return &Service{
		logger:  logger,
		clients: clients,
		builder: builder,
	}
}

// GetBestQuote runs the full best-quote pipeline. skipTxBuild suppresses
// transaction building even when the request asks for validation; the
// gasless flow uses it to defer building until fees are known.
func (s *Service) GetBestQuote(ctx context.Context, req *model.TradeRequest, skipTxBuild bool) (*model.CompositeQuote, error) {
	quotes := s.fanOut(ctx, req)
	if len(quotes) == 0 {
		metrics.QuoteFailuresTotal.WithLabelValues("fanout").Inc()
		return nil, model.NewRequestError(http.StatusInternalServerError, "no aggregator produced a usable route")
	}

	winner, err := Best(quotes)
	if err != nil {
		metrics.QuoteFailuresTotal.WithLabelValues("compare").Inc()
		return nil, err
	}
	s.logger.Info("quote.winner_selected",
		zap.String("aggregator", string(winner.AggregatorName)),
		zap.String("buy_amount", winner.BuyAmount),
		zap.Uint64("estimated_gas", winner.EstimatedGas))

	composite := &model.CompositeQuote{
		ResultQuote:     resultQuote(req, winner),
		AggregatorQuote: *winner,
	}
	if skipTxBuild || req.SkipValidation {
		return composite, nil
	}

	tx, err := s.buildTransaction(ctx, req, winner)
	if err != nil {
		metrics.QuoteFailuresTotal.WithLabelValues("build").Inc()
		return nil, err
	}
	composite.ResultQuote.Tx = tx
	return composite, nil
}

// fanOut queries all clients concurrently and returns the successful quotes.
// Individual failures are logged and discarded; a failing client never
// poisons the others.
func (s *Service) fanOut(ctx context.Context, req *model.TradeRequest) []*model.AggregatorQuote {
	s.logger.Debug("quote.fanout_start",
		zap.Int64("chain_id", req.ChainID),
		zap.Int("clients", len(s.clients)))

	results := make([]*model.AggregatorQuote, len(s.clients))
	var wg sync.WaitGroup
	for i, client := range s.clients {
		wg.Add(1)
		go func(i int, client aggregator.Client) {
			defer wg.Done()
			q, err := client.FetchQuote(ctx, req)
			if err != nil {
				reqErr := model.AsRequestError(err)
				s.logger.Warn("quote.client_failed",
					zap.String("aggregator", string(client.Name())),
					zap.Int("status", reqErr.StatusCode),
					zap.String("reason", reqErr.Data))
				return
			}
			results[i] = q
		}(i, client)
	}
	wg.Wait()

	quotes := make([]*model.AggregatorQuote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, q)
		}
	}
	return quotes
}

// resultQuote derives the user-facing quote. On router chains the router is
// the contract pulling the sell token, so that is the address the caller
// must approve; the target is zeroed for native sells since nothing needs
// approval to spend native currency.
func resultQuote(req *model.TradeRequest, winner *model.AggregatorQuote) model.ResultQuote {
	allowanceTarget := winner.AllowanceTarget
	if router, ok := chains.RouterAddress[req.ChainID]; ok {
		allowanceTarget = router
	}
	if chains.IsNative(req.SellTokenAddress) {
		allowanceTarget = chains.ZeroAddress
	}
	return model.ResultQuote{
		EstimatedGas:     winner.EstimatedGas,
		BuyTokenAddress:  winner.BuyTokenAddress,
		BuyAmount:        winner.BuyAmount,
		SellTokenAddress: winner.SellTokenAddress,
		SellAmount:       winner.SellAmount,
		AllowanceTarget:  allowanceTarget,
	}
}

// buildTransaction picks the execution shape: chains with a router deployed
// get the adapter-wrapped router call, the rest execute the aggregator's own
// calldata directly.
func (s *Service) buildTransaction(ctx context.Context, req *model.TradeRequest, winner *model.AggregatorQuote) (*model.TransactionData, error) {
	if !chains.HasRouter(req.ChainID) {
		return s.builder.BuildTransaction(ctx, req.ChainID, req.From, winner.To, winner.Data, winner.Value, nil)
	}

	amountFrom, minAmount, err := adapterAmounts(winner, req)
	if err != nil {
		return nil, err
	}

	data, err := txbuilder.EncodeRouterSwap(txbuilder.SwapParams{
		AdapterID:  chains.SwapAdapterID,
		TokenFrom:  common.HexToAddress(req.SellTokenAddress),
		TokenTo:    common.HexToAddress(req.BuyTokenAddress),
		AmountFrom: amountFrom,
		MinAmount:  minAmount,
		Recipient:  common.HexToAddress(recipientOrDefault(req)),
		Aggregator: common.HexToAddress(winner.To),
		Data:       common.FromHex(winner.Data),
	})
	if err != nil {
		return nil, err
	}

	value := "0"
	if chains.IsNative(req.SellTokenAddress) {
		value = amountFrom.String()
	}
	return s.builder.BuildTransaction(ctx, req.ChainID, req.From, chains.RouterAddress[req.ChainID], data, value, nil)
}

// adapterAmounts derives the slippage-adjusted (amountFrom, minAmount) pair
// for adapter calldata. Exact-input pads the minimum received; exact-output
// pads the amount spent. Both pad toward the user's disadvantage.
func adapterAmounts(winner *model.AggregatorQuote, req *model.TradeRequest) (*big.Int, *big.Int, error) {
	switch winner.TradeType {
	case model.ExactOutput:
		amountFrom, err := MaxSellAmount(winner.SellAmount, req.Slippage)
		if err != nil {
			return nil, nil, err
		}
		minAmount, err := parseAmount(winner.BuyAmount, "buy")
		if err != nil {
			return nil, nil, err
		}
		return amountFrom, minAmount, nil
	default:
		amountFrom, err := parseAmount(winner.SellAmount, "sell")
		if err != nil {
			return nil, nil, err
		}
		minAmount, err := MinBuyAmount(winner.BuyAmount, req.Slippage)
		if err != nil {
			return nil, nil, err
		}
		return amountFrom, minAmount, nil
	}
}

func recipientOrDefault(req *model.TradeRequest) string {
	if req.Recipient != "" {
		return req.Recipient
	}
	return chains.DefaultRecipient
}
