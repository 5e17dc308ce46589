package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/mdlayher/vsock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aegis-sign/wallet-adapter/internal/app/stubwallet"
	"github.com/aegis-sign/wallet-adapter/internal/infra/bridge"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wallet, err := configureWallet(logger)
	if err != nil {
		logger.Error("failed to configure stub wallet", "error", err)
		os.Exit(1)
	}

	addr := envOrDefault("STUB_WALLET_ADDR", "127.0.0.1:7443")
	lis, err := listen(addr)
	if err != nil {
		logger.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}

	grpcSrv := grpc.NewServer()
	bridge.Register(grpcSrv, bridge.NewServer(wallet, bridge.WithServerLogger(logger)))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(bridge.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	go func() {
		logger.Info("stub wallet listening", "addr", addr, "publicKey", wallet.PublicKey().String())
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server closed unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down stub wallet")
	healthSrv.Shutdown()
	grpcSrv.GracefulStop()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func configureWallet(logger *slog.Logger) (*stubwallet.Wallet, error) {
	opts := []stubwallet.Option{stubwallet.WithLogger(logger)}
	if v := os.Getenv("STUB_WALLET_AUTO_APPROVE"); v != "" {
		auto, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STUB_WALLET_AUTO_APPROVE: %w", err)
		}
		opts = append(opts, stubwallet.WithAutoApprove(auto))
	}
	if reason := os.Getenv("STUB_WALLET_REJECT"); reason != "" {
		opts = append(opts, stubwallet.WithRejection(reason))
	}
	raw := os.Getenv("STUB_WALLET_KEY")
	if raw == "" {
		logger.Warn("STUB_WALLET_KEY not set, generating an ephemeral key")
		return stubwallet.Generate(opts...)
	}
	key, err := solana.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid STUB_WALLET_KEY: %w", err)
	}
	return stubwallet.New(key, opts...)
}

// listen 支持 "host:port"、"unix:///path" 与 "vsock://port"（监听本机 CID）。
func listen(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "vsock://"):
		port, err := strconv.ParseUint(strings.TrimPrefix(addr, "vsock://"), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vsock port: %w", err)
		}
		return vsock.Listen(uint32(port), nil)
	case strings.HasPrefix(addr, "unix://"):
		return net.Listen("unix", strings.TrimPrefix(addr, "unix://"))
	default:
		return net.Listen("tcp", addr)
	}
}
