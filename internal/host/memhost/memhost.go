// Package memhost 提供进程内的宿主环境实现，用于测试与嵌入式注入钱包。
package memhost

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/aegis-sign/wallet-adapter/internal/host"
)

// ErrPopupBlocked 模拟浏览器拦截弹窗。
var ErrPopupBlocked = errors.New("popup blocked")

const inboxSize = 256

// Host 是内存中的宿主环境。消息只在调用 Dispatch/Reply 时投递，
// 从不在 Window/Sink 方法内部同步回调。
type Host struct {
	origin string

	mu        sync.Mutex
	nextID    uint64
	listeners []*listener
	unloads   []*unloadListener
	windows   []*Window
	blocked   bool
}

type listener struct {
	id uint64
	fn func(host.MessageEvent)
}

type unloadListener struct {
	id uint64
	fn func()
}

// Option 自定义 Host。
type Option func(*Host)

// WithBlockedPopups 让 OpenWindow 一律失败。
func WithBlockedPopups() Option {
	return func(h *Host) { h.blocked = true }
}

// New 创建以 origin 为自身来源的宿主。
func New(origin string, opts ...Option) *Host {
	h := &Host{origin: origin}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Origin 返回宿主 origin。
func (h *Host) Origin() string { return h.origin }

// Self 返回宿主自身身份。
func (h *Host) Self() any { return h }

// SetPopupsBlocked 切换弹窗拦截。
func (h *Host) SetPopupsBlocked(blocked bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocked = blocked
}

// OpenWindow 记录一个新窗口。
func (h *Host) OpenWindow(_ context.Context, rawURL string, features host.WindowFeatures) (host.Window, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.blocked {
		return nil, ErrPopupBlocked
	}
	w := &Window{
		host:     h,
		url:      rawURL,
		origin:   host.NormalizeOrigin(u),
		features: features,
		inbox:    make(chan []byte, inboxSize),
	}
	h.windows = append(h.windows, w)
	return w, nil
}

// AddMessageListener 注册消息监听器。
func (h *Host) AddMessageListener(fn func(host.MessageEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, &listener{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.listeners {
			if l.id == id {
				h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// AddUnloadListener 注册页面关闭回调。
func (h *Host) AddUnloadListener(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.unloads = append(h.unloads, &unloadListener{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.unloads {
			if l.id == id {
				h.unloads = append(h.unloads[:i], h.unloads[i+1:]...)
				return
			}
		}
	}
}

// Dispatch 按注册顺序把事件交给所有监听器。
func (h *Host) Dispatch(ev host.MessageEvent) {
	h.mu.Lock()
	snapshot := make([]*listener, len(h.listeners))
	copy(snapshot, h.listeners)
	h.mu.Unlock()
	for _, l := range snapshot {
		l.fn(ev)
	}
}

// Unload 模拟页面关闭。
func (h *Host) Unload() {
	h.mu.Lock()
	snapshot := make([]*unloadListener, len(h.unloads))
	copy(snapshot, h.unloads)
	h.mu.Unlock()
	for _, l := range snapshot {
		l.fn()
	}
}

// ListenerCount 返回当前消息监听器数量。
func (h *Host) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// UnloadListenerCount 返回当前关闭回调数量。
func (h *Host) UnloadListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.unloads)
}

// Windows 返回所有打开过的窗口。
func (h *Host) Windows() []*Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Window, len(h.windows))
	copy(out, h.windows)
	return out
}

// LastWindow 返回最近打开的窗口。
func (h *Host) LastWindow() *Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.windows) == 0 {
		return nil
	}
	return h.windows[len(h.windows)-1]
}

// NewSink 创建挂在该宿主上的注入式钱包对象。
func (h *Host) NewSink() *Sink {
	return &Sink{host: h, inbox: make(chan []byte, inboxSize)}
}

// Window 是内存中的弹窗。
type Window struct {
	host     *Host
	url      string
	origin   string
	features host.WindowFeatures
	inbox    chan []byte

	mu       sync.Mutex
	messages [][]byte
	focused  int
	closed   bool
}

// PostMessage 只有 targetOrigin 与窗口 origin 一致时才会收下消息。
func (w *Window) PostMessage(data []byte, targetOrigin string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if targetOrigin != "*" && targetOrigin != w.origin {
		return nil
	}
	cp := append([]byte(nil), data...)
	w.messages = append(w.messages, cp)
	select {
	case w.inbox <- cp:
	default:
	}
	return nil
}

// Focus 记录一次聚焦。
func (w *Window) Focus() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focused++
	return nil
}

// Close 关闭窗口。
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// URL 返回打开时的完整地址。
func (w *Window) URL() string { return w.url }

// Origin 返回窗口 origin。
func (w *Window) Origin() string { return w.origin }

// Features 返回打开时的尺寸。
func (w *Window) Features() host.WindowFeatures { return w.features }

// Closed 报告窗口是否已关闭。
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// FocusCount 返回被聚焦次数。
func (w *Window) FocusCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Messages 返回已收到的消息副本。
func (w *Window) Messages() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.messages))
	copy(out, w.messages)
	return out
}

// Next 等待下一条收到的消息。
func (w *Window) Next(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-w.inbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply 以该窗口为来源向宿主投递消息。
func (w *Window) Reply(data []byte) {
	w.host.Dispatch(host.MessageEvent{Origin: w.origin, Source: w, Data: data})
}

// Sink 是内存中的注入式钱包对象。
type Sink struct {
	host  *Host
	inbox chan []byte

	mu       sync.Mutex
	messages [][]byte
}

// PostMessage 收下一条发往钱包的消息。
func (s *Sink) PostMessage(data []byte) error {
	cp := append([]byte(nil), data...)
	s.mu.Lock()
	s.messages = append(s.messages, cp)
	s.mu.Unlock()
	select {
	case s.inbox <- cp:
	default:
	}
	return nil
}

// Messages 返回已收到的消息副本。
func (s *Sink) Messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.messages))
	copy(out, s.messages)
	return out
}

// Next 等待下一条收到的消息。
func (s *Sink) Next(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-s.inbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply 以宿主自身为来源投递消息，等价于注入脚本 window.postMessage。
func (s *Sink) Reply(data []byte) {
	s.host.Dispatch(host.MessageEvent{Origin: s.host.origin, Source: s.host.Self(), Data: data})
}
