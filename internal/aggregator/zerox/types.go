package zerox

// quoteResponse is 0x's GET /swap/v1/quote response, reduced to the fields
// the normalizer consumes. Numeric amounts arrive as decimal strings.
type quoteResponse struct {
	To               string `json:"to"`
	Data             string `json:"data"`
	Value            string `json:"value"`
	EstimatedGas     string `json:"estimatedGas"`
	BuyTokenAddress  string `json:"buyTokenAddress"`
	BuyAmount        string `json:"buyAmount"`
	SellTokenAddress string `json:"sellTokenAddress"`
	SellAmount       string `json:"sellAmount"`
	AllowanceTarget  string `json:"allowanceTarget"`
}

// errorResponse is 0x's standard error envelope.
type errorResponse struct {
	Code             int    `json:"code"`
	Reason           string `json:"reason"`
	ValidationErrors []struct {
		Field  string `json:"field"`
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	} `json:"validationErrors"`
}
