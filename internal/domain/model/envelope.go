package model

// CipherEnvelope is one encrypted callback payload together with the query
// parameters that authenticate it.
type CipherEnvelope struct {
	MsgSignature string
	Timestamp    string
	Nonce        string
	Encrypt      string
}

// CallbackQuery holds the authentication parameters the platform appends to
// every callback request.
type CallbackQuery struct {
	MsgSignature string
	Timestamp    string
	Nonce        string
}

// Envelope pairs the query with an encrypted blob.
func (q CallbackQuery) Envelope(encrypt string) CipherEnvelope {
	return CipherEnvelope{
		MsgSignature: q.MsgSignature,
		Timestamp:    q.Timestamp,
		Nonce:        q.Nonce,
		Encrypt:      encrypt,
	}
}

// JSSDKConfig is the parameter set a web page passes to wx.config or
// wx.agentConfig.
type JSSDKConfig struct {
	AppID     string `json:"appId"`
	AgentID   string `json:"agentId,omitempty"`
	Timestamp int64  `json:"timestamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
}
