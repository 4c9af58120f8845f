package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/httpclient"
	"github.com/metaswap-labs/swap-aggregator/internal/rate"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

const apiBase = "https://api.1inch.io/v4.0"

// Client fetches swap quotes from the 1inch aggregation API. 1inch only
// prices exact-input trades; the quote endpoint serves estimate-only
// requests and the swap endpoint serves executable ones.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	apiKey  string
	baseURL string
}

// NewClient constructs a 1inch client. timeout bounds each HTTP call.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, apiKey string, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, 0, "oneinch", func(status int, body []byte) error {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)

		logger.Warn("oneinch.client_error",
			zap.Int("status", status),
			zap.String("description", errResp.Description),
			zap.String("body", string(body)))

		msg := errResp.Description
		if msg == "" {
			msg = string(body)
		}
		return model.NewRequestError(status, "%s", msg)
	})
	return &Client{
		logger:  logger,
		exec:    exec,
		apiKey:  apiKey,
		baseURL: apiBase,
	}
}

// Name implements aggregator.Client.
func (c *Client) Name() model.AggregatorName {
	return model.AggregatorOneInch
}

// FetchQuote implements aggregator.Client.
func (c *Client) FetchQuote(ctx context.Context, req *model.TradeRequest) (*model.AggregatorQuote, error) {
	if req.SellAmount == "" {
		return nil, model.NewRequestError(http.StatusNotFound, "1inch does not support exact-output trades")
	}

	if req.SkipValidation {
		return c.fetchQuoteOnly(ctx, req)
	}
	return c.fetchSwap(ctx, req)
}

// fetchQuoteOnly calls the price-discovery endpoint; the result carries no
// executable calldata.
func (c *Client) fetchQuoteOnly(ctx context.Context, req *model.TradeRequest) (*model.AggregatorQuote, error) {
	var resp quoteResponse
	if err := c.get(ctx, req, "quote", &resp); err != nil {
		return nil, err
	}
	if resp.ToTokenAmount == "" || resp.ToTokenAmount == "0" {
		return nil, model.NewRequestError(http.StatusInternalServerError, "OneInch quote returned no route")
	}

	return &model.AggregatorQuote{
		EstimatedGas:     resp.EstimatedGas,
		BuyTokenAddress:  resp.ToToken.Address,
		BuyAmount:        resp.ToTokenAmount,
		SellTokenAddress: resp.FromToken.Address,
		SellAmount:       resp.FromTokenAmount,
		AllowanceTarget:  chains.OneInchAggregatorAddress[req.ChainID],
		From:             req.From,
		Recipient:        req.Recipient,
		TradeType:        model.ExactInput,
		AggregatorName:   model.AggregatorOneInch,
	}, nil
}

// fetchSwap calls the swap endpoint, which returns executable calldata.
func (c *Client) fetchSwap(ctx context.Context, req *model.TradeRequest) (*model.AggregatorQuote, error) {
	var resp swapResponse
	if err := c.get(ctx, req, "swap", &resp); err != nil {
		return nil, err
	}
	if resp.ToTokenAmount == "" || resp.ToTokenAmount == "0" {
		return nil, model.NewRequestError(http.StatusInternalServerError, "OneInch swap returned no route")
	}

	return &model.AggregatorQuote{
		To:               resp.Tx.To,
		Data:             resp.Tx.Data,
		Value:            resp.Tx.Value,
		EstimatedGas:     resp.Tx.Gas,
		BuyTokenAddress:  resp.ToToken.Address,
		BuyAmount:        resp.ToTokenAmount,
		SellTokenAddress: resp.FromToken.Address,
		SellAmount:       resp.FromTokenAmount,
		AllowanceTarget:  chains.OneInchAggregatorAddress[req.ChainID],
		From:             req.From,
		Recipient:        req.Recipient,
		TradeType:        model.ExactInput,
		AggregatorName:   model.AggregatorOneInch,
	}, nil
}

func (c *Client) get(ctx context.Context, req *model.TradeRequest, endpoint string, out any) error {
	q := url.Values{}
	q.Set("fromTokenAddress", req.SellTokenAddress)
	q.Set("toTokenAddress", req.BuyTokenAddress)
	q.Set("amount", req.SellAmount)
	q.Set("slippage", slippageParam(req))
	q.Set("fromAddress", req.From)
	q.Set("destReceiver", destReceiver(req))
	q.Set("disableEstimate", "true")
	if req.Affiliate != "" {
		q.Set("referrerAddress", req.Affiliate)
		if req.AffiliateFee != "" {
			q.Set("fee", req.AffiliateFee)
		}
	}

	u := fmt.Sprintf("%s/%d/%s?%s", c.baseURL, req.ChainID, endpoint, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.AsRequestError(err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.exec.DoJSON(ctx, httpReq, "oneinch", out)
}

// slippageParam converts the decimal slippage fraction into 1inch's percent
// parameter. Polygon deployments take the raw fraction.
func slippageParam(req *model.TradeRequest) string {
	if req.ChainID == chains.Polygon {
		return req.Slippage.String()
	}
	return req.Slippage.Mul(decimal.NewFromInt(100)).String()
}

// destReceiver routes output through the chain's flash wallet when one is
// deployed, falling back to the sender.
func destReceiver(req *model.TradeRequest) string {
	if fw, ok := chains.FlashWalletAddress[req.ChainID]; ok {
		return fw
	}
	return req.From
}
