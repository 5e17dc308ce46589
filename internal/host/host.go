// Package host 描述适配器运行所依赖的宿主环境能力。
//
// 浏览器中这些能力由 window 全局对象隐式提供；这里显式注入，
// 便于在进程内、gRPC 桥接或测试替身之间切换。
package host

import (
	"context"
	"fmt"
)

// MessageEvent 是宿主投递给监听器的一条入站消息。
//
// Source 标识消息来源的上下文：注入式钱包为 Host.Self()，
// 弹窗钱包为 OpenWindow 返回的那个 Window。比较使用 ==，
// 因此 Window 实现必须是可比较的指针类型。
type MessageEvent struct {
	Origin string
	Source any
	Data   []byte
}

// WindowFeatures 描述弹窗的首选尺寸。
type WindowFeatures struct {
	Width  int
	Height int
}

// DefaultWindowFeatures 与钱包页面的设计尺寸一致。
func DefaultWindowFeatures() WindowFeatures {
	return WindowFeatures{Width: 460, Height: 675}
}

// String 生成 window.open 风格的 features 字符串。
func (f WindowFeatures) String() string {
	return fmt.Sprintf("location,resizable,width=%d,height=%d", f.Width, f.Height)
}

// Window 是新开的顶层浏览上下文句柄。
type Window interface {
	// PostMessage 仅当窗口当前 origin 与 targetOrigin 一致时投递。
	PostMessage(data []byte, targetOrigin string) error
	Focus() error
	Close() error
}

// Sink 是注入到宿主上下文中的钱包对象。
type Sink interface {
	PostMessage(data []byte) error
}

// Host 汇总适配器需要的宿主能力。
//
// 与浏览器 postMessage 一致，消息投递必须是异步的：实现不得在
// Host、Window 或 Sink 的方法内部同步调用消息监听器。
type Host interface {
	// Origin 返回调用方自身的 origin。
	Origin() string
	// Self 返回宿主自身上下文的身份，用于校验注入式钱包消息来源。
	Self() any
	// OpenWindow 打开新窗口；被拦截时返回错误或 nil 窗口。
	OpenWindow(ctx context.Context, url string, features WindowFeatures) (Window, error)
	// AddMessageListener 注册入站消息监听器，返回注销函数。
	AddMessageListener(fn func(MessageEvent)) (remove func())
	// AddUnloadListener 注册“页面即将关闭”回调，返回注销函数。
	AddUnloadListener(fn func()) (remove func())
}
