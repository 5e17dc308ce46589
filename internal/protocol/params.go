package protocol

// ConnectedParams 是 connected 通知的参数。
type ConnectedParams struct {
	PublicKey   string `json:"publicKey"`
	AutoApprove bool   `json:"autoApprove"`
}

// SignParams 是 sign 请求的参数，data 为 base58。
type SignParams struct {
	Data    string `json:"data"`
	Display string `json:"display"`
}

// SignTransactionParams 是 signTransaction 请求的参数。
type SignTransactionParams struct {
	Message string `json:"message"`
}

// SignAllTransactionsParams 是 signAllTransactions 请求的参数。
type SignAllTransactionsParams struct {
	Messages []string `json:"messages"`
}

// SignatureResult 是 sign 与 signTransaction 的响应。
type SignatureResult struct {
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

// SignaturesResult 是 signAllTransactions 的响应，顺序与请求一致。
type SignaturesResult struct {
	Signatures []string `json:"signatures"`
	PublicKey  string   `json:"publicKey"`
}
