package oneinch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(zap.NewNop(), nil, "bearer-token", 2*time.Second)
	c.baseURL = srv.URL
	return c
}

func testRequest(chainID int64) *model.TradeRequest {
	return &model.TradeRequest{
		ChainID:          chainID,
		SellTokenAddress: "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
		BuyTokenAddress:  "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619",
		SellAmount:       "1000000",
		From:             "0x00000000000000000000000000000000000000aa",
		Slippage:         decimal.RequireFromString("0.01"),
	}
}

const swapBody = `{
	"fromToken": {"address": "0x2791bca1f2de4661ed88a30c99a7a9449aa84174", "symbol": "USDC", "decimals": 6},
	"toToken": {"address": "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", "symbol": "WETH", "decimals": 18},
	"fromTokenAmount": "1000000",
	"toTokenAmount": "540000000000000000",
	"tx": {
		"from": "0x00000000000000000000000000000000000000aa",
		"to": "0x1111111254fb6c44bac0bed2854e76f90643097d",
		"data": "0x123456",
		"value": "0",
		"gas": 250000,
		"gasPrice": "30000000000"
	}
}`

func TestFetchQuoteExactOutputUnsupported(t *testing.T) {
	c := NewClient(zap.NewNop(), nil, "", time.Second)
	req := testRequest(chains.Polygon)
	req.SellAmount = ""
	req.BuyAmount = "500"

	_, err := c.FetchQuote(context.Background(), req)
	require.Error(t, err)
	reqErr := model.AsRequestError(err)
	assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	assert.Contains(t, reqErr.Data, "exact-output")
}

func TestFetchQuoteSwapPath(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	var gotAuth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(swapBody))
	})

	quote, err := c.FetchQuote(context.Background(), testRequest(chains.Polygon))
	require.NoError(t, err)

	assert.Equal(t, "/137/swap", gotPath)
	assert.Equal(t, "Bearer bearer-token", gotAuth)
	// Polygon takes the raw fraction
	assert.Equal(t, "0.01", gotQuery.Get("slippage"))
	assert.Equal(t, chains.FlashWalletAddress[chains.Polygon], gotQuery.Get("destReceiver"))
	assert.Equal(t, "true", gotQuery.Get("disableEstimate"))

	assert.Equal(t, model.AggregatorOneInch, quote.AggregatorName)
	assert.Equal(t, "0x123456", quote.Data)
	assert.Equal(t, uint64(250000), quote.EstimatedGas)
	assert.Equal(t, "540000000000000000", quote.BuyAmount)
	assert.Equal(t, chains.OneInchAggregatorAddress[chains.Polygon], quote.AllowanceTarget)
}

func TestFetchQuoteSlippageAsPercentOffPolygon(t *testing.T) {
	var gotQuery url.Values
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(swapBody))
	})

	_, err := c.FetchQuote(context.Background(), testRequest(chains.Arbitrum))
	require.NoError(t, err)
	assert.Equal(t, "1", gotQuery.Get("slippage"))
}

func TestFetchQuoteSkipValidationUsesQuoteEndpoint(t *testing.T) {
	var gotPath string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{
			"fromToken": {"address": "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"},
			"toToken": {"address": "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619"},
			"fromTokenAmount": "1000000",
			"toTokenAmount": "540000000000000000",
			"estimatedGas": 250000
		}`))
	})

	req := testRequest(chains.Polygon)
	req.SkipValidation = true
	quote, err := c.FetchQuote(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "/137/quote", gotPath)
	assert.Empty(t, quote.Data) // no calldata without the swap call
	assert.Equal(t, "540000000000000000", quote.BuyAmount)
	assert.Equal(t, uint64(250000), quote.EstimatedGas)
}

func TestFetchQuoteUpstreamError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode": 400, "error": "Bad Request", "description": "insufficient liquidity"}`))
	})

	_, err := c.FetchQuote(context.Background(), testRequest(chains.Polygon))
	require.Error(t, err)
	reqErr := model.AsRequestError(err)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, "insufficient liquidity", reqErr.Data)
}

func TestFetchQuoteEmptyRouteIsError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"toTokenAmount": "0"}`))
	})

	_, err := c.FetchQuote(context.Background(), testRequest(chains.Polygon))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, model.AsRequestError(err).StatusCode)
}
