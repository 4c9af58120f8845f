package zerox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/httpclient"
	"github.com/metaswap-labs/swap-aggregator/internal/rate"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// apiHost maps chain IDs to the 0x API deployment serving that chain.
var apiHost = map[int64]string{
	chains.Mainnet:  "https://api.0x.org",
	chains.Polygon:  "https://polygon.api.0x.org",
	chains.Optimism: "https://optimism.api.0x.org",
	chains.Arbitrum: "https://arbitrum.api.0x.org",
	chains.Base:     "https://base.api.0x.org",
}

// Client fetches swap quotes from the 0x aggregation API. 0x returns
// executable calldata in the quote call itself, so no second call is needed.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	apiKey string
	hosts  map[int64]string
}

// NewClient constructs a 0x client. timeout bounds each HTTP call.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, apiKey string, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, 0, "zerox", func(status int, body []byte) error {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)

		logger.Warn("zerox.client_error",
			zap.Int("status", status),
			zap.String("reason", errResp.Reason),
			zap.String("body", string(body)))

		msg := errResp.Reason
		if msg == "" {
			msg = string(body)
		}
		return model.NewRequestError(status, "%s", msg)
	})
	return &Client{
		logger: logger,
		exec:   exec,
		apiKey: apiKey,
		hosts:  apiHost,
	}
}

// Name implements aggregator.Client.
func (c *Client) Name() model.AggregatorName {
	return model.AggregatorZeroX
}

// FetchQuote implements aggregator.Client.
func (c *Client) FetchQuote(ctx context.Context, req *model.TradeRequest) (*model.AggregatorQuote, error) {
	host, ok := c.hosts[req.ChainID]
	if !ok {
		return nil, model.NewRequestError(http.StatusBadRequest, "0x does not support chain %d", req.ChainID)
	}

	q := url.Values{}
	q.Set("sellToken", req.SellTokenAddress)
	q.Set("buyToken", req.BuyTokenAddress)
	q.Set("slippagePercentage", req.Slippage.String())
	q.Set("takerAddress", req.From)
	// estimation happens in our own pipeline, against our router calldata
	q.Set("skipValidation", "true")
	if req.SellAmount != "" {
		q.Set("sellAmount", req.SellAmount)
	}
	if req.BuyAmount != "" {
		q.Set("buyAmount", req.BuyAmount)
	}
	if req.Affiliate != "" {
		q.Set("feeRecipient", req.Affiliate)
		if req.AffiliateFee != "" {
			q.Set("buyTokenPercentageFee", req.AffiliateFee)
		}
	}

	endpoint := fmt.Sprintf("%s/swap/v1/quote?%s", host, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.AsRequestError(err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("0x-api-key", c.apiKey)
	}

	var resp quoteResponse
	if err := c.exec.DoJSON(ctx, httpReq, "zerox:"+host, &resp); err != nil {
		return nil, model.AsRequestError(err)
	}

	if resp.BuyAmount == "" || resp.BuyAmount == "0" {
		return nil, model.NewRequestError(http.StatusInternalServerError, "ZeroX quote returned no route")
	}

	return c.normalize(&resp, req), nil
}

// normalize maps 0x's response into the uniform quote shape.
func (c *Client) normalize(resp *quoteResponse, req *model.TradeRequest) *model.AggregatorQuote {
	estimatedGas, _ := strconv.ParseUint(resp.EstimatedGas, 10, 64)

	// 0x hands back calldata in the quote call itself, so estimate-only
	// requests keep it for free; only providers with a separate build call
	// omit it under skip-validation.
	return &model.AggregatorQuote{
		To:               resp.To,
		Data:             resp.Data,
		Value:            resp.Value,
		EstimatedGas:     estimatedGas,
		BuyTokenAddress:  resp.BuyTokenAddress,
		BuyAmount:        resp.BuyAmount,
		SellTokenAddress: resp.SellTokenAddress,
		SellAmount:       resp.SellAmount,
		AllowanceTarget:  resp.AllowanceTarget,
		From:             req.From,
		Recipient:        req.Recipient,
		TradeType:        req.TradeType(),
		AggregatorName:   model.AggregatorZeroX,
	}
}
