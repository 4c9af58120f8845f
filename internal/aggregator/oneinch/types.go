package oneinch

// token is the token descriptor embedded in 1inch responses.
type token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// quoteResponse is GET /quote — price discovery only, no calldata.
type quoteResponse struct {
	FromToken       token  `json:"fromToken"`
	ToToken         token  `json:"toToken"`
	FromTokenAmount string `json:"fromTokenAmount"`
	ToTokenAmount   string `json:"toTokenAmount"`
	EstimatedGas    uint64 `json:"estimatedGas"`
}

// swapResponse is GET /swap — price plus executable transaction.
type swapResponse struct {
	FromToken       token  `json:"fromToken"`
	ToToken         token  `json:"toToken"`
	FromTokenAmount string `json:"fromTokenAmount"`
	ToTokenAmount   string `json:"toTokenAmount"`
	Tx              struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		Gas      uint64 `json:"gas"`
		GasPrice string `json:"gasPrice"`
	} `json:"tx"`
}

// errorResponse is 1inch's error envelope.
type errorResponse struct {
	StatusCode  int    `json:"statusCode"`
	Error       string `json:"error"`
	Description string `json:"description"`
}
