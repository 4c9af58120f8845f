package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuery() TradeQuery {
	return TradeQuery{
		SellTokenAddress: "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
		BuyTokenAddress:  "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619",
		SellAmount:       "1000000",
		From:             "0x00000000000000000000000000000000000000aa",
		Slippage:         "0.01",
	}
}

func TestTradeQueryValid(t *testing.T) {
	require.NoError(t, validQuery().Validate())
}

func TestTradeQueryValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TradeQuery)
		wantErr string
	}{
		{
			name:    "missing sell token",
			mutate:  func(q *TradeQuery) { q.SellTokenAddress = "" },
			wantErr: "sellTokenAddress is required",
		},
		{
			name:    "missing buy token",
			mutate:  func(q *TradeQuery) { q.BuyTokenAddress = "" },
			wantErr: "buyTokenAddress is required",
		},
		{
			name: "same token both sides case-insensitive",
			mutate: func(q *TradeQuery) {
				q.BuyTokenAddress = "0x2791BCA1F2DE4661ED88A30C99A7A9449AA84174"
			},
			wantErr: "must differ",
		},
		{
			name: "both amounts set",
			mutate: func(q *TradeQuery) {
				q.BuyAmount = "500"
			},
			wantErr: "exactly one of sellAmount or buyAmount",
		},
		{
			name: "neither amount set",
			mutate: func(q *TradeQuery) {
				q.SellAmount = ""
			},
			wantErr: "exactly one of sellAmount or buyAmount",
		},
		{
			name:    "negative sell amount",
			mutate:  func(q *TradeQuery) { q.SellAmount = "-5" },
			wantErr: "sellAmount must be a positive integer",
		},
		{
			name:    "zero sell amount",
			mutate:  func(q *TradeQuery) { q.SellAmount = "0" },
			wantErr: "sellAmount must be a positive integer",
		},
		{
			name: "non-numeric buy amount",
			mutate: func(q *TradeQuery) {
				q.SellAmount = ""
				q.BuyAmount = "lots"
			},
			wantErr: "buyAmount must be a positive integer",
		},
		{
			name:    "missing from",
			mutate:  func(q *TradeQuery) { q.From = "" },
			wantErr: "fromAddress",
		},
		{
			name:    "malformed from",
			mutate:  func(q *TradeQuery) { q.From = "0x123" },
			wantErr: "fromAddress",
		},
		{
			name:    "malformed recipient",
			mutate:  func(q *TradeQuery) { q.Recipient = "not-an-address" },
			wantErr: "recipient",
		},
		{
			name:    "slippage not a number",
			mutate:  func(q *TradeQuery) { q.Slippage = "one percent" },
			wantErr: "slippage must be a decimal fraction",
		},
		{
			name:    "slippage negative",
			mutate:  func(q *TradeQuery) { q.Slippage = "-0.01" },
			wantErr: "slippage must be in [0, 1)",
		},
		{
			name:    "slippage at one",
			mutate:  func(q *TradeQuery) { q.Slippage = "1" },
			wantErr: "slippage must be in [0, 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuery()
			tt.mutate(&q)
			err := q.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTradeQueryExactOutputValid(t *testing.T) {
	q := validQuery()
	q.SellAmount = ""
	q.BuyAmount = "500000000000000000"
	require.NoError(t, q.Validate())
}

func TestTradeQueryOptionalRecipient(t *testing.T) {
	q := validQuery()
	q.Recipient = "0x00000000000000000000000000000000000000bb"
	require.NoError(t, q.Validate())
}

func TestHistoryQueryValidation(t *testing.T) {
	assert.NoError(t, HistoryQuery{Account: "0x00000000000000000000000000000000000000aa"}.Validate())
	assert.Error(t, HistoryQuery{Account: ""}.Validate())
	assert.Error(t, HistoryQuery{Account: "0xzz"}.Validate())
}

func TestToTradeRequest(t *testing.T) {
	q := validQuery()
	q.Recipient = "0x00000000000000000000000000000000000000bb"
	q.SkipValidation = true

	req := toTradeRequest(q, 137)
	assert.Equal(t, int64(137), req.ChainID)
	assert.Equal(t, q.SellTokenAddress, req.SellTokenAddress)
	assert.Equal(t, q.Recipient, req.Recipient)
	assert.True(t, req.SkipValidation)
	assert.Equal(t, "0.01", req.Slippage.String())
}
