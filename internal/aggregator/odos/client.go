package odos

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/httpclient"
	"github.com/metaswap-labs/swap-aggregator/internal/rate"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

const apiBase = "https://api.odos.xyz"

// Client fetches swap quotes from the Odos smart order router. Quoting is a
// two-step protocol: sor/quote/v2 prices the path, sor/assemble builds the
// transaction for it. Estimate-only requests stop after the first step.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
}

// NewClient constructs an Odos client. timeout bounds each HTTP call.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, 0, "odos", func(status int, body []byte) error {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)

		logger.Warn("odos.client_error",
			zap.Int("status", status),
			zap.Int("error_code", errResp.ErrorCode),
			zap.String("body", string(body)))

		msg := errResp.Detail
		if msg == "" {
			msg = string(body)
		}
		return model.NewRequestError(status, "%s", msg)
	})
	return &Client{
		logger:  logger,
		exec:    exec,
		baseURL: apiBase,
	}
}

// Name implements aggregator.Client.
func (c *Client) Name() model.AggregatorName {
	return model.AggregatorOdos
}

// FetchQuote implements aggregator.Client.
func (c *Client) FetchQuote(ctx context.Context, req *model.TradeRequest) (*model.AggregatorQuote, error) {
	if req.From == "" {
		return nil, model.NewRequestError(http.StatusBadRequest, "Odos requires a from address")
	}
	if req.SellAmount == "" {
		return nil, model.NewRequestError(http.StatusBadRequest, "Odos does not support exact-output trades")
	}

	slippage, _ := req.Slippage.Mul(decimal.NewFromInt(100)).Float64()
	quoteBody := quoteRequest{
		ChainID: req.ChainID,
		InputTokens: []inputToken{{
			TokenAddress: toOdosAddress(req.SellTokenAddress),
			Amount:       req.SellAmount,
		}},
		OutputTokens: []outputToken{{
			TokenAddress: toOdosAddress(req.BuyTokenAddress),
			Proportion:   1,
		}},
		UserAddr:             req.From,
		SlippageLimitPercent: slippage,
		Compact:              true,
	}

	var quote quoteResponse
	if err := c.post(ctx, "/sor/quote/v2", quoteBody, &quote); err != nil {
		return nil, err
	}
	if quote.PathID == "" || len(quote.InAmounts) == 0 || len(quote.OutAmounts) == 0 ||
		quote.InAmounts[0] == "0" || quote.OutAmounts[0] == "0" {
		return nil, model.NewRequestError(http.StatusInternalServerError, "Odos Quote failed")
	}

	result := &model.AggregatorQuote{
		EstimatedGas:     uint64(quote.GasEstimate),
		BuyTokenAddress:  req.BuyTokenAddress,
		BuyAmount:        quote.OutAmounts[0],
		SellTokenAddress: req.SellTokenAddress,
		SellAmount:       quote.InAmounts[0],
		AllowanceTarget:  chains.OdosAggregatorAddress[req.ChainID],
		From:             req.From,
		Recipient:        req.Recipient,
		TradeType:        model.ExactInput,
		AggregatorName:   model.AggregatorOdos,
	}

	if req.SkipValidation {
		return result, nil
	}

	var assembled assembleResponse
	assembleBody := assembleRequest{UserAddr: req.From, PathID: quote.PathID}
	if err := c.post(ctx, "/sor/assemble", assembleBody, &assembled); err != nil {
		return nil, err
	}

	result.To = assembled.Transaction.To
	result.Data = assembled.Transaction.Data
	result.Value = assembled.Transaction.Value
	if assembled.Transaction.Gas > 0 {
		result.EstimatedGas = assembled.Transaction.Gas
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return model.AsRequestError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return model.AsRequestError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.exec.DoJSON(ctx, httpReq, "odos", out)
}

// toOdosAddress translates the canonical native-token sentinel into the zero
// address Odos expects.
func toOdosAddress(addr string) string {
	if chains.IsNative(addr) {
		return chains.ZeroAddress
	}
	return addr
}
