// Package protocol 定义应用与钱包之间交换的 JSON-RPC 信封。
package protocol

import (
	"bytes"
	"encoding/json"
)

// Version 为信封固定的 jsonrpc 字段。
const Version = "2.0"

// 钱包主动推送的通知。
const (
	MethodConnected    = "connected"
	MethodDisconnected = "disconnected"
)

// 应用发往钱包的请求。
const (
	MethodConnect             = "connect"
	MethodDisconnect          = "disconnect"
	MethodSign                = "sign"
	MethodSignTransaction     = "signTransaction"
	MethodSignAllTransactions = "signAllTransactions"
)

// Envelope 是双向通用的消息信封；通知不带 id，响应带 result 或 error 之一。
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HasResult 判断 result 字段是否携带非空值。
func (e *Envelope) HasResult() bool {
	trimmed := bytes.TrimSpace(e.Result)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// IsResponse 判断信封是否为对某个请求的响应。
func (e *Envelope) IsResponse() bool {
	return e.ID != nil && (e.HasResult() || e.Error != "")
}

// NewRequest 构造请求信封。
func NewRequest(id uint64, method string, params any) ([]byte, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{JSONRPC: Version, ID: &id, Method: method, Params: raw})
}

// NewNotification 构造不带 id 的通知信封。
func NewNotification(method string, params any) ([]byte, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{JSONRPC: Version, Method: method, Params: raw})
}

// NewResult 构造成功响应。
func NewResult(id uint64, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{JSONRPC: Version, ID: &id, Result: raw})
}

// NewError 构造失败响应。
func NewError(id uint64, reason string) ([]byte, error) {
	return json.Marshal(Envelope{JSONRPC: Version, ID: &id, Error: reason})
}

// Decode 解析信封，jsonrpc 版本不符视为无效。
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.JSONRPC != "" && env.JSONRPC != Version {
		return Envelope{}, &VersionError{Got: env.JSONRPC}
	}
	return env, nil
}

// VersionError 表示 jsonrpc 版本不受支持。
type VersionError struct {
	Got string
}

func (e *VersionError) Error() string {
	return "unsupported jsonrpc version " + e.Got
}

func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(params)
}
