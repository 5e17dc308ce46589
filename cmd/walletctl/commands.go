package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"

	walletapi "github.com/aegis-sign/wallet-adapter/internal/api"
	"github.com/aegis-sign/wallet-adapter/pkg/logger"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

// withRuntime 搭建组件并在收到退出信号时通知宿主卸载。
func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if rt.unload != nil {
			rt.unload()
		}
	}()
	return fn(ctx, rt)
}

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signMessageAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if err := rt.connect(ctx, c.Duration("connect-timeout")); err != nil {
			return err
		}
		res, err := rt.wallet.Sign(ctx, []byte(c.String("message")), c.String("display"))
		if err != nil {
			return err
		}
		return writeJSON(c, map[string]string{
			"message":   c.String("message"),
			"signature": res.Signature.String(),
			"publicKey": res.PublicKey.String(),
		})
	})
}

func transferAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if err := rt.connect(ctx, c.Duration("connect-timeout")); err != nil {
			return err
		}
		to, ok := rt.wallet.PublicKey()
		if !ok {
			return errors.New("wallet disconnected before the transfer started")
		}
		if raw := c.String("to"); raw != "" {
			key, err := validator.DecodePublicKey(raw)
			if err != nil {
				return err
			}
			to = key
		}
		client, err := rt.ledgerClient()
		if err != nil {
			return err
		}
		res, err := walletapi.Transfer(ctx, rt.wallet, client, to, c.Uint64("lamports"), !c.Bool("no-confirm"))
		if err != nil {
			return err
		}
		return writeJSON(c, transferOutput(res))
	})
}

func transferOutput(res walletapi.TransferResult) map[string]any {
	return map[string]any{
		"signature": res.Signature.String(),
		"from":      res.From.String(),
		"to":        res.To.String(),
		"lamports":  res.Lamports,
		"confirmed": res.Confirmed,
		"explorer":  "https://explorer.solana.com/tx/" + res.Signature.String(),
	}
}

func serveAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		client, err := rt.ledgerClient()
		if err != nil {
			return err
		}
		addr := c.String("addr")
		if addr == "" {
			addr = rt.cfg.HTTP.Addr
		}

		handler := walletapi.NewHTTPHandler(rt.wallet,
			walletapi.WithLedger(client),
			walletapi.WithLogger(rt.logger.With("component", "gateway")))
		mux := http.NewServeMux()
		handler.Register(mux)
		handler.RegisterDebug(mux)
		mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              addr,
			Handler:           logger.HTTPMiddleware(mux, rt.zap),
			ReadHeaderTimeout: 5 * time.Second,
		}

		rt.wallet.OnConnect(func(k solana.PublicKey) { rt.logger.Info("wallet connected", "publicKey", k.String()) })
		rt.wallet.OnDisconnect(func() { rt.logger.Info("wallet disconnected") })

		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info("HTTP gateway listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		rt.logger.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
