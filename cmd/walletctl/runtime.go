package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/aegis-sign/wallet-adapter/internal/adapter"
	"github.com/aegis-sign/wallet-adapter/internal/app/stubwallet"
	"github.com/aegis-sign/wallet-adapter/internal/config"
	"github.com/aegis-sign/wallet-adapter/internal/host"
	"github.com/aegis-sign/wallet-adapter/internal/host/memhost"
	"github.com/aegis-sign/wallet-adapter/internal/infra/bridgeclient"
	"github.com/aegis-sign/wallet-adapter/internal/ledger"
	"github.com/aegis-sign/wallet-adapter/pkg/logger"
)

const defaultConnectTimeout = 2 * time.Minute

// runtime 持有一次命令执行期间的全部组件。
type runtime struct {
	cfg      config.Config
	zap      *zap.Logger
	logger   *slog.Logger
	registry *prometheus.Registry
	wallet   *adapter.Wallet
	unload   func()
	closers  []func()
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if v := c.String("provider-url"); v != "" {
		cfg.Provider.URL = v
	}
	if c.Bool("injected") {
		cfg.Provider.Kind = config.ProviderInjected
	}
	if v := c.String("network"); v != "" {
		cfg.Network = v
	}
	if v := c.String("origin"); v != "" {
		cfg.Origin = v
	}
	if v := c.String("rpc"); v != "" {
		cfg.RPC.Endpoint = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setup(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	zl, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:      cfg,
		zap:      zl,
		logger:   logger.Slog(zl),
		registry: prometheus.NewRegistry(),
	}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.closers = append(rt.closers, func() { _ = zl.Sync() })

	h, err := rt.buildHost()
	if err != nil {
		rt.Close()
		return nil, err
	}
	provider, err := rt.provider(c.Context, h)
	if err != nil {
		rt.Close()
		return nil, err
	}
	w, err := adapter.New(provider, cfg.Network, h,
		adapter.WithLogger(rt.logger),
		adapter.WithRegisterer(rt.registry),
		adapter.WithWindowFeatures(host.WindowFeatures{Width: cfg.Provider.WindowWidth, Height: cfg.Provider.WindowHeight}),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.wallet = w
	// 进程退出时断开钱包，先于关闭宿主执行。
	rt.closers = append(rt.closers, w.Disconnect)
	return rt, nil
}

// buildHost 根据 provider 类型创建宿主：弹窗走桥接，注入式走进程内宿主。
func (rt *runtime) buildHost() (host.Host, error) {
	if rt.cfg.Provider.Kind == config.ProviderInjected {
		h := memhost.New(rt.cfg.Origin)
		rt.unload = h.Unload
		return h, nil
	}
	bcfg, err := bridgeclient.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	for origin, endpoint := range rt.cfg.Bridge.Endpoints {
		bcfg.Endpoints[origin] = endpoint
	}
	if rt.cfg.Bridge.DialTimeout > 0 {
		bcfg.DialTimeout = rt.cfg.Bridge.DialTimeout
	}
	h, err := bridgeclient.New(rt.cfg.Origin, bcfg,
		bridgeclient.WithLogger(rt.logger),
		bridgeclient.WithRegisterer(rt.registry))
	if err != nil {
		return nil, err
	}
	rt.unload = h.Unload
	rt.closers = append(rt.closers, func() { _ = h.Close() })
	return h, nil
}

func (rt *runtime) provider(ctx context.Context, h host.Host) (adapter.Provider, error) {
	if rt.cfg.Provider.Kind != config.ProviderInjected {
		return adapter.Popup(rt.cfg.Provider.URL), nil
	}
	mem := h.(*memhost.Host)
	stub, err := stubwallet.Generate(
		stubwallet.WithAutoApprove(rt.cfg.Provider.AutoApprove),
		stubwallet.WithLogger(rt.logger.With("component", "stub-wallet")))
	if err != nil {
		return adapter.Provider{}, err
	}
	sink := mem.NewSink()
	serveCtx, cancel := context.WithCancel(ctx)
	go func() { _ = stub.Serve(serveCtx, sink, false) }()
	rt.closers = append(rt.closers, cancel)
	rt.logger.Info("using in-process development wallet", "publicKey", stub.PublicKey().String())
	return adapter.Injected(sink), nil
}

// connect 连接钱包；注入式钱包需要再等待 connected 通知。
func (rt *runtime) connect(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rt.wallet.Connect(ctx); err != nil {
		return fmt.Errorf("connect wallet: %w", err)
	}
	if rt.wallet.Connected() {
		return nil
	}
	connected := make(chan struct{}, 1)
	remove := rt.wallet.OnConnect(func(solana.PublicKey) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	defer remove()
	if rt.wallet.Connected() {
		return nil
	}
	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wallet did not announce itself: %w", ctx.Err())
	}
}

func (rt *runtime) ledgerClient() (*ledger.Client, error) {
	endpoint := rt.cfg.RPC.Endpoint
	if endpoint == "" {
		endpoint = rt.cfg.Network
	}
	return ledger.Dial(endpoint, ledger.Config{
		Commitment:       rpc.CommitmentType(rt.cfg.RPC.Commitment),
		SkipPreflight:    rt.cfg.RPC.SkipPreflight,
		BlockhashSoftTTL: rt.cfg.RPC.BlockhashTTL,
		PollRate:         rt.cfg.RPC.PollRate,
		MaxPolls:         rt.cfg.RPC.MaxPolls,
		Logger:           rt.logger.With("component", "ledger"),
		Metrics:          ledger.NewMetrics(rt.registry),
	})
}

// Close 逆序释放资源。
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
