// Package adapter 让应用通过注入对象或弹窗向外部钱包请求签名，
// 应用本身从不接触私钥。
//
// Wallet 组合了三部分：transport 负责投递与来源校验，correlator
// 负责把响应按 id 交还给等待者，状态机维护身份与 connect/disconnect 通知。
package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aegis-sign/wallet-adapter/internal/host"
	"github.com/aegis-sign/wallet-adapter/internal/protocol"
	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

// Wallet 是外部钱包的客户端句柄，可被多个 goroutine 并发使用。
type Wallet struct {
	network  string
	host     host.Host
	tr       transport
	logger   *slog.Logger
	metrics  *Metrics
	features host.WindowFeatures

	corr   *correlator
	events emitter

	mu           sync.Mutex
	state        State
	publicKey    *solana.PublicKey
	autoApprove  bool
	handlerAdded bool
	removeMsg    func()
	removeUnload func()
	waiters      []chan error
}

// Option 自定义 Wallet。
type Option func(*Wallet)

// WithLogger 设置日志输出。
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRegisterer 启用 Prometheus 指标。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(w *Wallet) {
		if reg != nil {
			w.metrics = NewMetrics(reg)
		}
	}
}

// WithMetrics 复用已注册的指标，多个 Wallet 共享同一注册器时使用。
func WithMetrics(m *Metrics) Option {
	return func(w *Wallet) { w.metrics = m }
}

// WithWindowFeatures 覆盖弹窗尺寸。
func WithWindowFeatures(f host.WindowFeatures) Option {
	return func(w *Wallet) {
		if f.Width > 0 && f.Height > 0 {
			w.features = f
		}
	}
}

// New 创建钱包句柄。provider 与 host 不合法时返回 CONFIGURATION_ERROR。
func New(provider Provider, network string, h host.Host, opts ...Option) (*Wallet, error) {
	if h == nil {
		return nil, apierrors.New(apierrors.CodeConfiguration, "host must not be nil")
	}
	w := &Wallet{
		network:  network,
		host:     h,
		logger:   slog.Default(),
		features: host.DefaultWindowFeatures(),
		corr:     newCorrelator(),
	}
	for _, opt := range opts {
		opt(w)
	}
	tr, err := newTransport(provider, network, h, w.features)
	if err != nil {
		return nil, err
	}
	w.tr = tr
	w.logger = w.logger.With("transport", tr.name(), "network", network)
	w.metrics.setState(StateDisconnected)
	return w, nil
}

func errWalletDisconnected() error {
	return apierrors.New(apierrors.CodeDisconnected, "wallet disconnected")
}

// Connect 打开通道并请求连接。
//
// 注入式钱包在发出 connect 请求后立即返回，此时 Connected 可能仍为 false，
// 直到钱包推送 connected 通知。弹窗钱包会一直等待 connected 通知，
// 没有超时；调用方通过 ctx 放弃等待。
func (w *Wallet) Connect(ctx context.Context) error {
	w.mu.Lock()
	// 重新连接时先关闭旧弹窗。
	w.tr.close()
	w.installHandlers()
	if err := w.tr.open(ctx); err != nil {
		w.logger.Warn("open wallet transport failed", "error", err)
		w.teardown()
		w.mu.Unlock()
		w.events.flush()
		return err
	}
	if w.state == StateDisconnected {
		w.setState(StateConnecting)
	}

	if _, injected := w.tr.(*injectedTransport); injected {
		// connect 请求不登记在途表，其响应按未知 id 丢弃。
		id := w.corr.nextID()
		if err := w.tr.send(id, protocol.MethodConnect, nil, w.autoApprove); err != nil {
			w.logger.Warn("send connect request failed", "error", err)
			w.teardown()
			w.mu.Unlock()
			w.events.flush()
			return asTransportError(err)
		}
		w.mu.Unlock()
		w.events.flush()
		return nil
	}

	ch := make(chan error, 1)
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()
	w.events.flush()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		w.mu.Lock()
		w.removeWaiter(ch)
		w.mu.Unlock()
		return ctx.Err()
	}
}

// Disconnect 断开连接，总是成功；已断开时没有任何可观察的副作用。
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	if w.state == StateDisconnected && !w.handlerAdded {
		w.mu.Unlock()
		return
	}
	if _, injected := w.tr.(*injectedTransport); injected && w.state == StateConnected {
		id := w.corr.nextID()
		if err := w.tr.send(id, protocol.MethodDisconnect, nil, w.autoApprove); err != nil {
			w.logger.Warn("best-effort disconnect request failed", "error", err)
		}
	}
	w.teardown()
	w.mu.Unlock()
	w.events.flush()
}

// PublicKey 返回当前身份；未连接时第二个返回值为 false。
func (w *Wallet) PublicKey() (solana.PublicKey, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.publicKey == nil {
		return solana.PublicKey{}, false
	}
	return *w.publicKey, true
}

// Connected 报告是否已持有身份。
func (w *Wallet) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.publicKey != nil
}

// AutoApprove 返回钱包最近一次报告的 autoApprove。
func (w *Wallet) AutoApprove() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.autoApprove
}

// State 返回当前连接阶段。
func (w *Wallet) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Network 返回构造时指定的目标网络。
func (w *Wallet) Network() string { return w.network }

// PendingRequests 返回在途请求快照，按 id 升序。
func (w *Wallet) PendingRequests() []PendingRequest {
	return w.corr.snapshot()
}

// OnConnect 订阅 connect 通知，返回取消订阅函数。回调按订阅顺序串行执行。
func (w *Wallet) OnConnect(fn func(solana.PublicKey)) func() {
	return w.events.subscribe(subscription{onConnect: fn})
}

// OnDisconnect 订阅 disconnect 通知，返回取消订阅函数。
func (w *Wallet) OnDisconnect(fn func()) func() {
	return w.events.subscribe(subscription{onDisc: fn})
}

// ---- 状态机，以下方法均要求持有 w.mu ----

func (w *Wallet) setState(s State) {
	if w.state != s {
		w.logger.Info("wallet state changed", "from", w.state.String(), "to", s.String())
	}
	w.state = s
	w.metrics.setState(s)
}

func (w *Wallet) installHandlers() {
	if w.handlerAdded {
		return
	}
	w.handlerAdded = true
	w.removeMsg = w.host.AddMessageListener(w.handleMessage)
	w.removeUnload = w.host.AddUnloadListener(w.Disconnect)
}

func (w *Wallet) removeHandlers() {
	if !w.handlerAdded {
		return
	}
	w.handlerAdded = false
	if w.removeMsg != nil {
		w.removeMsg()
		w.removeMsg = nil
	}
	if w.removeUnload != nil {
		w.removeUnload()
		w.removeUnload = nil
	}
}

// dropIdentity 清除身份并以 "wallet disconnected" 拒绝全部在途请求，
// 不触碰监听器与通道。
func (w *Wallet) dropIdentity() {
	if w.publicKey != nil {
		w.publicKey = nil
		w.events.enqueue(event{kind: eventDisconnect})
	}
	drained := w.corr.drainAll(errWalletDisconnected())
	if len(drained) > 0 {
		w.logger.Info("rejected pending requests", "count", len(drained))
	}
	w.metrics.addDrained(len(drained))
	w.metrics.setPending(0)
}

func (w *Wallet) teardown() {
	w.removeHandlers()
	w.dropIdentity()
	w.releaseWaiters(errWalletDisconnected())
	w.tr.close()
	w.autoApprove = false
	w.setState(StateDisconnected)
}

func (w *Wallet) releaseWaiters(err error) {
	for _, ch := range w.waiters {
		ch <- err
	}
	w.waiters = nil
}

func (w *Wallet) removeWaiter(target chan error) {
	for i, ch := range w.waiters {
		if ch == target {
			w.waiters = append(w.waiters[:i], w.waiters[i+1:]...)
			return
		}
	}
}

func (w *Wallet) handleMessage(ev host.MessageEvent) {
	w.mu.Lock()
	w.route(ev)
	w.mu.Unlock()
	w.events.flush()
}

// route 先校验来源，再把通知交给状态机、把响应交给 correlator。
// 未通过校验或格式错误的消息一律静默丢弃。
func (w *Wallet) route(ev host.MessageEvent) {
	if !w.handlerAdded {
		return
	}
	if !w.tr.accept(ev) {
		w.metrics.incIgnored("unauthenticated")
		w.logger.Debug("ignored message from unexpected source", "origin", ev.Origin)
		return
	}
	env, err := protocol.Decode(ev.Data)
	if err != nil {
		w.metrics.incIgnored("malformed")
		w.logger.Debug("ignored malformed message", "error", err)
		return
	}
	switch env.Method {
	case protocol.MethodConnected:
		w.onConnected(env)
	case protocol.MethodDisconnected:
		w.logger.Info("wallet announced disconnect")
		w.teardown()
	default:
		if !env.IsResponse() {
			w.metrics.incIgnored("unexpected")
			return
		}
		out := outcome{result: env.Result}
		if !env.HasResult() {
			out = outcome{err: apierrors.New(apierrors.CodeRemote, env.Error)}
		}
		if _, ok := w.corr.complete(*env.ID, out); !ok {
			w.metrics.incIgnored("unknown_id")
			w.logger.Debug("dropped response for unknown request", "id", *env.ID)
			return
		}
		w.metrics.setPending(w.corr.len())
	}
}

func (w *Wallet) onConnected(env protocol.Envelope) {
	var params protocol.ConnectedParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		w.metrics.incIgnored("malformed")
		return
	}
	key, err := validator.DecodePublicKey(params.PublicKey)
	if err != nil {
		w.metrics.incIgnored("malformed")
		w.logger.Debug("ignored connected notification", "error", err)
		return
	}
	if w.publicKey == nil || !w.publicKey.Equals(key) {
		if w.publicKey != nil {
			w.logger.Info("wallet identity changed", "from", w.publicKey.String(), "to", key.String())
			w.dropIdentity()
		}
		w.publicKey = &key
		w.autoApprove = params.AutoApprove
		w.setState(StateConnected)
		w.events.enqueue(event{kind: eventConnect, key: key})
	} else {
		w.autoApprove = params.AutoApprove
	}
	w.releaseWaiters(nil)
}

// request 发出一次请求并等待响应。ctx 取消只放弃本次调用。
func (w *Wallet) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	w.mu.Lock()
	if w.state != StateConnected {
		w.mu.Unlock()
		w.metrics.observeRequest(method, "not_connected", 0)
		return nil, apierrors.New(apierrors.CodeNotConnected, "wallet not connected")
	}
	id := w.corr.nextID()
	p, err := w.corr.register(id, method)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if err := w.tr.send(id, method, params, w.autoApprove); err != nil {
		w.corr.forget(id)
		w.mu.Unlock()
		w.metrics.observeRequest(method, "send_failed", time.Since(start))
		return nil, asTransportError(err)
	}
	w.metrics.setPending(w.corr.len())
	w.mu.Unlock()

	select {
	case out := <-p.done:
		w.metrics.observeRequest(method, outcomeLabel(out.err), time.Since(start))
		return out.result, out.err
	case <-ctx.Done():
		w.corr.forget(id)
		w.metrics.setPending(w.corr.len())
		w.metrics.observeRequest(method, "abandoned", time.Since(start))
		return nil, ctx.Err()
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apierrors.HasCode(err, apierrors.CodeDisconnected):
		return "disconnected"
	default:
		return "remote_error"
	}
}

func asTransportError(err error) error {
	if _, ok := apierrors.FromError(err); ok {
		return err
	}
	return apierrors.Wrap(apierrors.CodeTransportUnavailable, "send to wallet", err)
}
