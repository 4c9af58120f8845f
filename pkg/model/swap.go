package model

import "github.com/shopspring/decimal"

// TradeType distinguishes trades quoted by exact sell amount from trades
// quoted by exact buy amount.
type TradeType int

const (
	ExactInput TradeType = iota
	ExactOutput
)

// AggregatorName tags which upstream liquidity aggregator produced a quote.
type AggregatorName string

const (
	AggregatorZeroX   AggregatorName = "0x"
	AggregatorOneInch AggregatorName = "1inch"
	AggregatorOdos    AggregatorName = "Odos"
)

// TradeRequest is the normalized swap request. Exactly one of SellAmount or
// BuyAmount is set; which one determines the trade type. Token amounts are
// decimal strings in base units since they routinely exceed 64-bit range.
type TradeRequest struct {
	ChainID          int64
	SellTokenAddress string
	BuyTokenAddress  string
	SellAmount       string // base units; empty when BuyAmount drives the trade
	BuyAmount        string // base units; empty when SellAmount drives the trade
	From             string
	Recipient        string // optional; defaults applied downstream
	Slippage         decimal.Decimal
	Affiliate        string
	AffiliateFee     string
	SkipValidation   bool
	PermitData       string // optional signed permit for gas-less approval
}

// TradeType resolves the trade type from which amount field is populated.
func (r *TradeRequest) TradeType() TradeType {
	if r.SellAmount != "" {
		return ExactInput
	}
	return ExactOutput
}

// AggregatorQuote is the uniform quote shape every aggregator client
// normalizes into. To/Data/Value are empty for estimate-only quotes.
type AggregatorQuote struct {
	To               string         `json:"to"`
	Data             string         `json:"data"`
	Value            string         `json:"value"`
	EstimatedGas     uint64         `json:"estimatedGas"`
	BuyTokenAddress  string         `json:"buyTokenAddress"`
	BuyAmount        string         `json:"buyAmount"`
	SellTokenAddress string         `json:"sellTokenAddress"`
	SellAmount       string         `json:"sellAmount"`
	AllowanceTarget  string         `json:"allowanceTarget"`
	From             string         `json:"from"`
	Recipient        string         `json:"recipient,omitempty"`
	TradeType        TradeType      `json:"tradeType"`
	AggregatorName   AggregatorName `json:"aggregatorName"`
}

// TransactionData is a fully assembled, broadcast-ready transaction.
type TransactionData struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Gas      uint64 `json:"gas"`
	Value    string `json:"value"`
	GasPrice string `json:"gasPrice"`
}

// ResultQuote is the user-facing portion of a best-quote response.
// Tx is nil when validation was skipped.
type ResultQuote struct {
	EstimatedGas     uint64           `json:"estimatedGas"`
	BuyTokenAddress  string           `json:"buyTokenAddress"`
	BuyAmount        string           `json:"buyAmount"`
	SellTokenAddress string           `json:"sellTokenAddress"`
	SellAmount       string           `json:"sellAmount"`
	AllowanceTarget  string           `json:"allowanceTarget"`
	Tx               *TransactionData `json:"tx,omitempty"`
}

// CompositeQuote pairs the user-facing ResultQuote with the winning
// AggregatorQuote, which gasless flows need for calldata rebuilding.
type CompositeQuote struct {
	ResultQuote     ResultQuote     `json:"resultQuote"`
	AggregatorQuote AggregatorQuote `json:"aggregatorQuote"`
}

// ResultGaslessQuote extends ResultQuote with the gas-fee economics of the
// gasless execution path.
type ResultGaslessQuote struct {
	EstimatedGas        uint64           `json:"estimatedGas"`
	PaymentTokenAddress string           `json:"paymentTokenAddress"`
	PaymentFees         string           `json:"paymentFees"`
	BuyTokenAddress     string           `json:"buyTokenAddress"`
	BuyAmount           string           `json:"buyAmount"`
	SellTokenAddress    string           `json:"sellTokenAddress"`
	SellAmount          string           `json:"sellAmount"`
	AllowanceTarget     string           `json:"allowanceTarget"`
	Tx                  *TransactionData `json:"tx,omitempty"`
}

// ForwarderRequest is the meta-transaction envelope executed by the gasless
// forwarder contract. Signer is the relayer's address, not the user's.
type ForwarderRequest struct {
	Signer        string `json:"signer"`
	Metaswap      string `json:"metaswap"`
	Calldata      string `json:"calldata"`
	PaymentToken  string `json:"paymentToken"`
	PaymentFees   string `json:"paymentFees"`
	TokenGasPrice string `json:"tokenGasPrice"` // reserved, currently "0"
	ValidTo       int64  `json:"validTo"`
	Nonce         int64  `json:"nonce"`
}
