// Package bridge 定义调用方进程与远端钱包页面之间的窗口桥接协议。
//
// 一次 Open 双向流对应一个弹窗：客户端先发送 open 帧描述要打开的页面，
// 之后双方以 message 帧互相投递 postMessage 载荷，focus/close 帧对应
// 窗口操作。帧以 JSON 编码，经由名为 "json" 的 gRPC codec 传输。
package bridge

import "encoding/json"

// FrameKind 区分帧的用途。
type FrameKind string

const (
	FrameOpen    FrameKind = "open"
	FrameMessage FrameKind = "message"
	FrameFocus   FrameKind = "focus"
	FrameClose   FrameKind = "close"
)

// Frame 是 Open 流上传输的唯一消息类型。
type Frame struct {
	Kind FrameKind `json:"kind"`
	// URL/Origin/Width/Height 仅出现在 open 帧中。Origin 是打开方自身的 origin。
	URL    string `json:"url,omitempty"`
	Origin string `json:"origin,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	// Data 是 message 帧承载的 postMessage 载荷。
	Data json.RawMessage `json:"data,omitempty"`
}
