package bridgeclient

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"

	"github.com/aegis-sign/wallet-adapter/internal/host"
	"github.com/aegis-sign/wallet-adapter/internal/infra/bridge"
)

var errNotJSON = errors.New("bridge messages must be valid JSON")

// Window 是一条 Open 流背后的远端窗口。
type Window struct {
	host     *Host
	url      string
	origin   string
	features host.WindowFeatures
	conn     *grpc.ClientConn
	stream   bridge.ClientStream
	cancel   func()

	sendMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
}

// URL 返回打开时的完整地址。
func (w *Window) URL() string { return w.url }

// Origin 返回窗口 origin。
func (w *Window) Origin() string { return w.origin }

// Closed 报告窗口是否已关闭。
func (w *Window) Closed() bool { return w.closed.Load() }

// Done 在读循环退出后关闭。
func (w *Window) Done() <-chan struct{} { return w.done }

// PostMessage 仅当 targetOrigin 与窗口 origin 一致（或为 "*"）时发送；
// 窗口已关闭或 origin 不符时静默丢弃。
func (w *Window) PostMessage(data []byte, targetOrigin string) error {
	if w.closed.Load() {
		return nil
	}
	if targetOrigin != "*" && targetOrigin != w.origin {
		w.host.logger.Debug("dropped message for mismatched origin", slog.String("target", targetOrigin), slog.String("origin", w.origin))
		return nil
	}
	if !json.Valid(data) {
		return errNotJSON
	}
	return w.send(&bridge.Frame{Kind: bridge.FrameMessage, Data: data})
}

// Focus 请求远端把窗口置前。
func (w *Window) Focus() error {
	if w.closed.Load() {
		return nil
	}
	return w.send(&bridge.Frame{Kind: bridge.FrameFocus})
}

// Close 关闭窗口，可重复调用。
func (w *Window) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.sendMu.Lock()
	if err := w.stream.Send(&bridge.Frame{Kind: bridge.FrameClose}); err == nil {
		w.host.metrics.incFrame("out")
	}
	_ = w.stream.CloseSend()
	w.sendMu.Unlock()
	w.shutdown()
	return nil
}

func (w *Window) send(f *bridge.Frame) error {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if err := w.stream.Send(f); err != nil {
		return err
	}
	w.host.metrics.incFrame("out")
	return nil
}

func (w *Window) readLoop() {
	defer close(w.done)
	for {
		f, err := w.stream.Recv()
		if err != nil {
			break
		}
		w.host.metrics.incFrame("in")
		if f.Kind != bridge.FrameMessage {
			continue
		}
		w.host.dispatch(host.MessageEvent{Origin: w.origin, Source: w, Data: []byte(f.Data)})
	}
	// 远端结束会话等同于用户关闭了弹窗。
	if !w.closed.Swap(true) {
		w.host.logger.Info("bridge window closed by remote", slog.String("origin", w.origin))
		w.shutdown()
	}
}

func (w *Window) shutdown() {
	w.cancel()
	_ = w.conn.Close()
	w.host.forget(w)
}
