package odos

// quoteRequest is the POST sor/quote/v2 body.
type quoteRequest struct {
	ChainID              int64         `json:"chainId"`
	InputTokens          []inputToken  `json:"inputTokens"`
	OutputTokens         []outputToken `json:"outputTokens"`
	UserAddr             string        `json:"userAddr"`
	SlippageLimitPercent float64       `json:"slippageLimitPercent"`
	ReferralCode         uint32        `json:"referralCode,omitempty"`
	Compact              bool          `json:"compact"`
}

type inputToken struct {
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
}

type outputToken struct {
	TokenAddress string  `json:"tokenAddress"`
	Proportion   float64 `json:"proportion"`
}

// quoteResponse is the routing result. PathID keys the later assemble call.
type quoteResponse struct {
	PathID      string   `json:"pathId"`
	InAmounts   []string `json:"inAmounts"`
	OutAmounts  []string `json:"outAmounts"`
	GasEstimate float64  `json:"gasEstimate"`
}

// assembleRequest is the POST sor/assemble body.
type assembleRequest struct {
	UserAddr string `json:"userAddr"`
	PathID   string `json:"pathId"`
	Simulate bool   `json:"simulate"`
}

// assembleResponse carries the executable transaction for a quoted path.
type assembleResponse struct {
	Transaction struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		Gas      uint64 `json:"gas"`
		GasPrice string `json:"gasPrice"`
	} `json:"transaction"`
}

// errorResponse is Odos's error envelope.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode int    `json:"errorCode"`
}
