// Package stubwallet 是开发用钱包：内存中持有一把 ed25519 私钥，
// 通过桥接会话或进程内端点应答适配器的请求。
package stubwallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"

	"github.com/aegis-sign/wallet-adapter/internal/infra/bridge"
	"github.com/aegis-sign/wallet-adapter/internal/protocol"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

// Wallet 在内存中签名。
type Wallet struct {
	key         solana.PrivateKey
	autoApprove bool
	rejection   string
	logger      *slog.Logger
	signed      atomic.Int64
}

// Option 自定义 Wallet。
type Option func(*Wallet)

// WithAutoApprove 设置 connected 通知中的 autoApprove。
func WithAutoApprove(v bool) Option {
	return func(w *Wallet) { w.autoApprove = v }
}

// WithRejection 让所有签名请求以 reason 失败，模拟用户拒绝。
func WithRejection(reason string) Option {
	return func(w *Wallet) { w.rejection = reason }
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(w *Wallet) {
		if l != nil {
			w.logger = l
		}
	}
}

// New 用给定私钥创建钱包。
func New(key solana.PrivateKey, opts ...Option) (*Wallet, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("stub wallet: invalid private key length %d", len(key))
	}
	w := &Wallet{key: key, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Generate 用随机私钥创建钱包。
func Generate(opts ...Option) (*Wallet, error) {
	return New(solana.NewWallet().PrivateKey, opts...)
}

// PublicKey 返回钱包身份。
func (w *Wallet) PublicKey() solana.PublicKey { return w.key.PublicKey() }

// Signed 返回已签名的消息数。
func (w *Wallet) Signed() int { return int(w.signed.Load()) }

// Announce 生成 connected 通知。
func (w *Wallet) Announce() ([]byte, error) {
	return protocol.NewNotification(protocol.MethodConnected, protocol.ConnectedParams{
		PublicKey:   w.PublicKey().String(),
		AutoApprove: w.autoApprove,
	})
}

// Handle 处理一条入站消息，返回需要按序回送的消息；end 为 true 表示会话应结束。
// 非请求消息被忽略。
func (w *Wallet) Handle(data []byte) (out [][]byte, end bool, err error) {
	env, err := protocol.Decode(data)
	if err != nil {
		w.logger.Debug("ignored malformed message", slog.Any("err", err))
		return nil, false, nil
	}
	if env.ID == nil || env.IsResponse() {
		return nil, false, nil
	}
	id := *env.ID

	var reply []byte
	switch env.Method {
	case protocol.MethodConnect:
		announce, err := w.Announce()
		if err != nil {
			return nil, false, err
		}
		if reply, err = protocol.NewResult(id, struct{}{}); err != nil {
			return nil, false, err
		}
		return [][]byte{reply, announce}, false, nil
	case protocol.MethodDisconnect:
		if reply, err = protocol.NewResult(id, struct{}{}); err != nil {
			return nil, false, err
		}
		bye, err := protocol.NewNotification(protocol.MethodDisconnected, nil)
		if err != nil {
			return nil, false, err
		}
		return [][]byte{reply, bye}, true, nil
	}

	result, failure := w.dispatch(env)
	if failure != nil {
		w.logger.Info("request rejected", slog.String("method", env.Method), slog.String("reason", failure.Error()))
		reply, err = protocol.NewError(id, failure.Error())
	} else {
		reply, err = protocol.NewResult(id, result)
	}
	if err != nil {
		return nil, false, err
	}
	return [][]byte{reply}, false, nil
}

func (w *Wallet) dispatch(env protocol.Envelope) (any, error) {
	switch env.Method {
	case protocol.MethodSign:
		var p protocol.SignParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return nil, fmt.Errorf("invalid sign params: %w", err)
		}
		if _, err := validator.NormalizeDisplay(p.Display); err != nil {
			return nil, err
		}
		msg, err := validator.DecodeBase58(p.Data)
		if err != nil {
			return nil, err
		}
		return w.signOne(msg)
	case protocol.MethodSignTransaction:
		var p protocol.SignTransactionParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return nil, fmt.Errorf("invalid signTransaction params: %w", err)
		}
		msg, err := validator.DecodeBase58(p.Message)
		if err != nil {
			return nil, err
		}
		return w.signOne(msg)
	case protocol.MethodSignAllTransactions:
		var p protocol.SignAllTransactionsParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return nil, fmt.Errorf("invalid signAllTransactions params: %w", err)
		}
		if w.rejection != "" {
			return nil, errors.New(w.rejection)
		}
		res := protocol.SignaturesResult{PublicKey: w.PublicKey().String(), Signatures: make([]string, 0, len(p.Messages))}
		for _, m := range p.Messages {
			msg, err := validator.DecodeBase58(m)
			if err != nil {
				return nil, err
			}
			sig, err := w.key.Sign(msg)
			if err != nil {
				return nil, err
			}
			res.Signatures = append(res.Signatures, sig.String())
		}
		w.signed.Add(int64(len(p.Messages)))
		return res, nil
	default:
		return nil, fmt.Errorf("unsupported method: %s", env.Method)
	}
}

func (w *Wallet) signOne(msg []byte) (protocol.SignatureResult, error) {
	if w.rejection != "" {
		return protocol.SignatureResult{}, errors.New(w.rejection)
	}
	sig, err := w.key.Sign(msg)
	if err != nil {
		return protocol.SignatureResult{}, err
	}
	w.signed.Add(1)
	return protocol.SignatureResult{Signature: sig.String(), PublicKey: w.PublicKey().String()}, nil
}

// ServeSession 实现 bridge.Handler：会话打开即宣告身份，直到对端关闭或收到 disconnect。
func (w *Wallet) ServeSession(ctx context.Context, s *bridge.Session) error {
	fragment := s.Request().Fragment()
	w.logger.Info("wallet window opened",
		slog.String("opener", fragment.Get("origin")),
		slog.String("network", fragment.Get("network")))
	announce, err := w.Announce()
	if err != nil {
		return err
	}
	if err := s.Post(announce); err != nil {
		return err
	}
	for {
		data, err := s.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		out, end, err := w.Handle(data)
		if err != nil {
			return err
		}
		for _, msg := range out {
			if err := s.Post(msg); err != nil {
				return err
			}
		}
		if end {
			return nil
		}
	}
}

// Endpoint 是进程内的钱包端点，例如 memhost 的 Sink 或 Window。
type Endpoint interface {
	Next(ctx context.Context) ([]byte, error)
	Reply(data []byte)
}

// Serve 在进程内端点上应答请求，直到 ctx 结束。announce 为 true 时先宣告身份（弹窗式）。
func (w *Wallet) Serve(ctx context.Context, ep Endpoint, announce bool) error {
	if announce {
		msg, err := w.Announce()
		if err != nil {
			return err
		}
		ep.Reply(msg)
	}
	for {
		data, err := ep.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		out, _, err := w.Handle(data)
		if err != nil {
			return err
		}
		for _, msg := range out {
			ep.Reply(msg)
		}
	}
}

var _ bridge.Handler = (*Wallet)(nil)
