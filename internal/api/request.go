package api

import (
	"github.com/shopspring/decimal"

	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// TradeQuery is the query-string shape of getQuote and getGaslessQuote.
type TradeQuery struct {
	SellTokenAddress string `query:"sellTokenAddress"`
	BuyTokenAddress  string `query:"buyTokenAddress"`
	SellAmount       string `query:"sellAmount"`
	BuyAmount        string `query:"buyAmount"`
	From             string `query:"fromAddress"`
	Recipient        string `query:"recipient"`
	Slippage         string `query:"slippage"`
	Affiliate        string `query:"affiliateAddress"`
	AffiliateFee     string `query:"affiliateFee"`
	SkipValidation   bool   `query:"skipValidation"`
	PermitData       string `query:"signaturePermitData"`
}

// HistoryQuery is the query-string shape of limitOrder/history.
type HistoryQuery struct {
	Account string `query:"account"`
}

// toTradeRequest converts a validated query into the canonical request.
func toTradeRequest(q TradeQuery, chainID int64) *model.TradeRequest {
	slippage, _ := decimal.NewFromString(q.Slippage)
	return &model.TradeRequest{
		ChainID:          chainID,
		SellTokenAddress: q.SellTokenAddress,
		BuyTokenAddress:  q.BuyTokenAddress,
		SellAmount:       q.SellAmount,
		BuyAmount:        q.BuyAmount,
		From:             q.From,
		Recipient:        q.Recipient,
		Slippage:         slippage,
		Affiliate:        q.Affiliate,
		AffiliateFee:     q.AffiliateFee,
		SkipValidation:   q.SkipValidation,
		PermitData:       q.PermitData,
	}
}
