// Package bridgeclient 通过 gRPC 桥接实现 host.Host：每个 OpenWindow 拨号到
// 钱包页面对应的桥接端点并建立一条 Open 流，远端消息以该窗口为来源投递。
package bridgeclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aegis-sign/wallet-adapter/internal/host"
	"github.com/aegis-sign/wallet-adapter/internal/infra/bridge"
)

// ErrPopupBlocked 表示宿主拒绝打开窗口。
var ErrPopupBlocked = errors.New("popup blocked")

// ErrClosed 表示宿主已关闭。
var ErrClosed = errors.New("bridge host closed")

// Host 是基于 gRPC 桥接的宿主环境。
type Host struct {
	origin  string
	cfg     Config
	dialer  Dialer
	logger  *slog.Logger
	metrics *Metrics
	breaker *circuitBreaker
	now     func() time.Time

	mu        sync.Mutex
	nextID    uint64
	listeners []*listener
	unloads   []*unloadListener
	windows   map[*Window]struct{}
	closed    bool
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

// WithDialer 自定义拨号器。
func WithDialer(d Dialer) Option {
	return func(h *Host) { h.dialer = d }
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRegisterer 指定 Prometheus 注册器。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Host) { h.metrics = NewMetrics(reg) }
}

// WithClock 替换熔断器使用的时钟。
func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}

// New 创建以 origin 为自身来源的桥接宿主。
func New(origin string, cfg Config, opts ...Option) (*Host, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid host origin %q", origin)
	}
	h := &Host{
		origin:  host.NormalizeOrigin(u),
		cfg:     cfg,
		dialer:  defaultDialer,
		logger:  slog.Default(),
		windows: make(map[*Window]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.dialer == nil {
		h.dialer = defaultDialer
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(nil)
	}
	h.breaker = newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, h.now)
	return h, nil
}

// Origin 返回宿主 origin。
func (h *Host) Origin() string { return h.origin }

// Self 返回宿主自身身份。
func (h *Host) Self() any { return h }

// OpenWindow 拨号到 url 所属 origin 的桥接端点并打开窗口。
func (h *Host) OpenWindow(ctx context.Context, rawURL string, features host.WindowFeatures) (host.Window, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if !h.breaker.Allow() {
		h.metrics.incBlocked("breaker")
		return nil, ErrPopupBlocked
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid window url %q", rawURL)
	}
	origin := host.NormalizeOrigin(u)
	endpoint, ok := h.cfg.Endpoint(origin)
	if !ok {
		h.metrics.incBlocked("no_endpoint")
		return nil, fmt.Errorf("%w: no bridge endpoint for %s", ErrPopupBlocked, origin)
	}

	start := time.Now()
	w, err := h.openWithRetry(ctx, endpoint, rawURL, origin, features)
	if err != nil {
		if h.breaker.Failure() {
			h.logger.Warn("bridge breaker tripped", slog.String("endpoint", endpoint))
		}
		h.metrics.incBlocked("dial")
		return nil, err
	}
	h.breaker.Success()
	h.metrics.observeOpen(time.Since(start))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = w.Close()
		return nil, ErrClosed
	}
	h.windows[w] = struct{}{}
	h.metrics.setOpen(len(h.windows))
	h.mu.Unlock()

	h.logger.Info("bridge window opened", slog.String("origin", origin), slog.String("endpoint", endpoint))
	go w.readLoop()
	return w, nil
}

func (h *Host) openWithRetry(ctx context.Context, endpoint, rawURL, origin string, features host.WindowFeatures) (*Window, error) {
	var w *Window
	err := newDialRetry(h.cfg.DialAttempts, h.cfg.Backoff).run(ctx, func(attempt int) error {
		var err error
		w, err = h.openOnce(ctx, endpoint, rawURL, origin, features)
		if err != nil {
			h.logger.Debug("bridge open attempt failed", slog.Int("attempt", attempt), slog.String("endpoint", endpoint), slog.Any("err", err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (h *Host) openOnce(ctx context.Context, endpoint, rawURL, origin string, features host.WindowFeatures) (*Window, error) {
	dialCtx := ctx
	if h.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, h.cfg.DialTimeout)
		defer cancel()
	}
	conn, err := h.dialer(dialCtx, endpoint, h.cfg)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", endpoint, err)
	}
	// 流的生命周期跟随窗口而不是调用方 ctx。
	streamCtx, stop := context.WithCancel(context.Background())
	stream, err := bridge.OpenStream(streamCtx, conn)
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, fmt.Errorf("open bridge stream: %w", err)
	}
	err = stream.Send(&bridge.Frame{
		Kind:   bridge.FrameOpen,
		URL:    rawURL,
		Origin: h.origin,
		Width:  features.Width,
		Height: features.Height,
	})
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, fmt.Errorf("send open frame: %w", err)
	}
	h.metrics.incFrame("out")
	return &Window{
		host:     h,
		url:      rawURL,
		origin:   origin,
		features: features,
		conn:     conn,
		stream:   stream,
		cancel:   stop,
		done:     make(chan struct{}),
	}, nil
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

// AddUnloadListener 注册进程退出回调。
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

func (h *Host) dispatch(ev host.MessageEvent) {
	h.mu.Lock()
	snapshot := make([]*listener, len(h.listeners))
	copy(snapshot, h.listeners)
	h.mu.Unlock()
	for _, l := range snapshot {
		l.fn(ev)
	}
}

// Unload 通知所有关闭回调，通常在收到退出信号时调用。
func (h *Host) Unload() {
	h.mu.Lock()
	snapshot := make([]*unloadListener, len(h.unloads))
	copy(snapshot, h.unloads)
	h.mu.Unlock()
	for _, l := range snapshot {
		l.fn()
	}
}

// OpenWindows 返回当前打开的窗口数。
func (h *Host) OpenWindows() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.windows)
}

// Close 关闭所有窗口并拒绝后续 OpenWindow。
func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	windows := make([]*Window, 0, len(h.windows))
	for w := range h.windows {
		windows = append(windows, w)
	}
	h.mu.Unlock()
	for _, w := range windows {
		_ = w.Close()
	}
	return nil
}

func (h *Host) forget(w *Window) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.windows, w)
	h.metrics.setOpen(len(h.windows))
}
