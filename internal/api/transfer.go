package walletapi

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aegis-sign/wallet-adapter/internal/solanatx"
	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
)

// TransferResult 描述一次已提交的转账。
type TransferResult struct {
	Signature solana.Signature
	From      solana.PublicKey
	To        solana.PublicKey
	Lamports  uint64
	Confirmed bool
}

// Transfer 以当前连接的钱包为付款方构造转账，交给钱包签名后提交，
// confirm 为 true 时等待确认。
func Transfer(ctx context.Context, backend Backend, ledger Ledger, to solana.PublicKey, lamports uint64, confirm bool) (TransferResult, error) {
	from, ok := backend.PublicKey()
	if !ok {
		return TransferResult{}, apierrors.New(apierrors.CodeNotConnected, "wallet not connected")
	}
	blockhash, err := ledger.RecentBlockhash(ctx)
	if err != nil {
		return TransferResult{}, fmt.Errorf("fetch recent blockhash: %w", err)
	}
	tx, err := solanatx.BuildTransfer(from, to, lamports, blockhash)
	if err != nil {
		return TransferResult{}, apierrors.Wrap(apierrors.CodeInvalidArgument, err.Error(), err)
	}
	if _, err := backend.SignTransaction(ctx, tx); err != nil {
		return TransferResult{}, err
	}
	if err := tx.Verify(); err != nil {
		return TransferResult{}, apierrors.Wrap(apierrors.CodeRemote, "wallet returned an invalid signature", err)
	}
	sig, err := ledger.SubmitTransaction(ctx, tx.Unwrap())
	if err != nil {
		return TransferResult{}, fmt.Errorf("submit transaction: %w", err)
	}
	res := TransferResult{Signature: sig, From: from, To: to, Lamports: lamports}
	if confirm {
		if err := ledger.ConfirmTransaction(ctx, sig); err != nil {
			return res, fmt.Errorf("confirm transaction %s: %w", sig, err)
		}
		res.Confirmed = true
	}
	return res, nil
}
