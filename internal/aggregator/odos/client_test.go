package odos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

	c := NewClient(zap.NewNop(), nil, 2*time.Second)
	c.baseURL = srv.URL
	return c
}

func testRequest() *model.TradeRequest {
	return &model.TradeRequest{
		ChainID:          chains.Polygon,
		SellTokenAddress: "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
		BuyTokenAddress:  "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619",
		SellAmount:       "1000000",
		From:             "0x00000000000000000000000000000000000000aa",
		Slippage:         decimal.RequireFromString("0.01"),
	}
}

func TestFetchQuoteRequiresFrom(t *testing.T) {
	c := NewClient(zap.NewNop(), nil, time.Second)
	req := testRequest()
	req.From = ""
	_, err := c.FetchQuote(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, model.AsRequestError(err).StatusCode)
}

func TestFetchQuoteExactOutputUnsupported(t *testing.T) {
	c := NewClient(zap.NewNop(), nil, time.Second)
	req := testRequest()
	req.SellAmount = ""
	req.BuyAmount = "500"
	_, err := c.FetchQuote(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, model.AsRequestError(err).StatusCode)
}

func TestFetchQuoteAssemblesTransaction(t *testing.T) {
	var quoteBody quoteRequest
	var assembleBody assembleRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sor/quote/v2":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&quoteBody))
			_, _ = w.Write([]byte(`{
				"pathId": "path-123",
				"inAmounts": ["1000000"],
				"outAmounts": ["530000000000000000"],
				"gasEstimate": 210000
			}`))
		case "/sor/assemble":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&assembleBody))
			_, _ = w.Write([]byte(`{
				"transaction": {
					"from": "0x00000000000000000000000000000000000000aa",
					"to": "0x4e3288c9ca110bcc82bf38f09a7b425c095d92bf",
					"data": "0x9876",
					"value": "0",
					"gas": 230000,
					"gasPrice": "30000000000"
				}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	quote, err := c.FetchQuote(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(137), quoteBody.ChainID)
	assert.Equal(t, 1.0, quoteBody.SlippageLimitPercent)
	assert.Equal(t, "path-123", assembleBody.PathID)
	assert.False(t, assembleBody.Simulate)

	assert.Equal(t, model.AggregatorOdos, quote.AggregatorName)
	assert.Equal(t, "0x9876", quote.Data)
	assert.Equal(t, uint64(230000), quote.EstimatedGas)
	assert.Equal(t, "530000000000000000", quote.BuyAmount)
	assert.Equal(t, chains.OdosAggregatorAddress[chains.Polygon], quote.AllowanceTarget)
}

func TestFetchQuoteTranslatesNativeSentinel(t *testing.T) {
	var quoteBody quoteRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&quoteBody))
		_, _ = w.Write([]byte(`{"pathId": "p", "inAmounts": ["1"], "outAmounts": ["2"], "gasEstimate": 1}`))
	})

	req := testRequest()
	req.SellTokenAddress = chains.NativeToken
	req.SkipValidation = true
	quote, err := c.FetchQuote(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, chains.ZeroAddress, quoteBody.InputTokens[0].TokenAddress)
	// the normalized quote keeps the canonical sentinel
	assert.Equal(t, chains.NativeToken, quote.SellTokenAddress)
}

func TestFetchQuoteSkipValidationStopsAfterQuote(t *testing.T) {
	assembled := false
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sor/assemble" {
			assembled = true
		}
		_, _ = w.Write([]byte(`{"pathId": "p", "inAmounts": ["1000000"], "outAmounts": ["42"], "gasEstimate": 100}`))
	})

	req := testRequest()
	req.SkipValidation = true
	quote, err := c.FetchQuote(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, assembled)
	assert.Empty(t, quote.Data)
	assert.Equal(t, "42", quote.BuyAmount)
}

func TestFetchQuoteEmptyPathIsError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pathId": "", "inAmounts": ["0"], "outAmounts": ["0"]}`))
	})

	_, err := c.FetchQuote(context.Background(), testRequest())
	require.Error(t, err)
	reqErr := model.AsRequestError(err)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Equal(t, "Odos Quote failed", reqErr.Data)
}

func TestFetchQuoteUpstreamError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"detail": "no viable path", "errorCode": 2000}`))
	})

	_, err := c.FetchQuote(context.Background(), testRequest())
	require.Error(t, err)
	reqErr := model.AsRequestError(err)
	assert.Equal(t, http.StatusTeapot, reqErr.StatusCode)
	assert.Equal(t, "no viable path", reqErr.Data)
}
