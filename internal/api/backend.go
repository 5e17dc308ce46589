package walletapi

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/aegis-sign/wallet-adapter/internal/adapter"
)

// Backend 是网关依赖的钱包能力，*adapter.Wallet 直接满足。
type Backend interface {
	Connect(ctx context.Context) error
	Disconnect()
	Sign(ctx context.Context, data []byte, display string) (adapter.SignResult, error)
	SignTransaction(ctx context.Context, tx adapter.Transaction) (adapter.Transaction, error)
	PublicKey() (solana.PublicKey, bool)
	AutoApprove() bool
	State() adapter.State
	Network() string
	PendingRequests() []adapter.PendingRequest
}

var _ Backend = (*adapter.Wallet)(nil)

// Ledger 是转账流程需要的链上能力，*ledger.Client 直接满足。
type Ledger interface {
	RecentBlockhash(ctx context.Context) (solana.Hash, error)
	SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
}
