package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aegis-sign/wallet-adapter/internal/protocol"
	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

// Transaction 是待签名交易的最小能力集，字节格式对适配器不透明。
type Transaction interface {
	// SerializeMessage 返回需要签名的消息字节。
	SerializeMessage() ([]byte, error)
	// CheckSigner 在不修改交易的前提下确认 pubkey 可以为其签名。
	CheckSigner(pubkey solana.PublicKey) error
	// AddSignature 为指定身份附加签名；CheckSigner 通过后不得失败。
	AddSignature(pubkey solana.PublicKey, sig solana.Signature) error
}

// SignResult 是 Sign 的返回值。
type SignResult struct {
	Signature solana.Signature
	PublicKey solana.PublicKey
}

// Sign 请求钱包对任意字节签名。display 取 hex 或 utf8，空值按 hex 处理。
func (w *Wallet) Sign(ctx context.Context, data []byte, display string) (SignResult, error) {
	if data == nil {
		return SignResult{}, apierrors.New(apierrors.CodeInvalidArgument, "data must be a byte sequence")
	}
	hint, err := validator.NormalizeDisplay(display)
	if err != nil {
		return SignResult{}, apierrors.Wrap(apierrors.CodeInvalidArgument, "invalid display", err)
	}
	raw, err := w.request(ctx, protocol.MethodSign, protocol.SignParams{
		Data:    validator.EncodeBase58(data),
		Display: string(hint),
	})
	if err != nil {
		return SignResult{}, err
	}
	sig, pub, err := decodeSignature(raw)
	if err != nil {
		return SignResult{}, err
	}
	return SignResult{Signature: sig, PublicKey: pub}, nil
}

// SignTransaction 请求钱包签名并把签名附加到 tx 上，返回同一个 tx。
func (w *Wallet) SignTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	if tx == nil {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "transaction must not be nil")
	}
	if !w.Connected() {
		return nil, apierrors.New(apierrors.CodeNotConnected, "wallet not connected")
	}
	msg, err := tx.SerializeMessage()
	if err != nil {
		return nil, apierrors.Wrap(apierrors.CodeInvalidArgument, "serialize transaction message", err)
	}
	raw, err := w.request(ctx, protocol.MethodSignTransaction, protocol.SignTransactionParams{
		Message: validator.EncodeBase58(msg),
	})
	if err != nil {
		return nil, err
	}
	sig, pub, err := decodeSignature(raw)
	if err != nil {
		return nil, err
	}
	if err := tx.CheckSigner(pub); err != nil {
		return nil, apierrors.Wrap(apierrors.CodeRemote, "attach signature", err)
	}
	if err := tx.AddSignature(pub, sig); err != nil {
		return nil, apierrors.Wrap(apierrors.CodeRemote, "attach signature", err)
	}
	return tx, nil
}

// SignAllTransactions 批量签名。所有交易先通过 CheckSigner 后才按输入顺序附加签名；
// 请求失败、响应不完整或任一交易不接受该身份时不修改任何输入交易。
func (w *Wallet) SignAllTransactions(ctx context.Context, txs []Transaction) ([]Transaction, error) {
	for i, tx := range txs {
		if tx == nil {
			return nil, apierrors.New(apierrors.CodeInvalidArgument, fmt.Sprintf("transaction %d must not be nil", i))
		}
	}
	if !w.Connected() {
		return nil, apierrors.New(apierrors.CodeNotConnected, "wallet not connected")
	}
	messages := make([]string, len(txs))
	for i, tx := range txs {
		msg, err := tx.SerializeMessage()
		if err != nil {
			return nil, apierrors.Wrap(apierrors.CodeInvalidArgument, fmt.Sprintf("serialize transaction %d", i), err)
		}
		messages[i] = validator.EncodeBase58(msg)
	}
	raw, err := w.request(ctx, protocol.MethodSignAllTransactions, protocol.SignAllTransactionsParams{
		Messages: messages,
	})
	if err != nil {
		return nil, err
	}

	var res protocol.SignaturesResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, apierrors.Wrap(apierrors.CodeRemote, "malformed wallet response", err)
	}
	if len(res.Signatures) != len(txs) {
		return nil, apierrors.New(apierrors.CodeRemote,
			fmt.Sprintf("wallet returned %d signatures for %d transactions", len(res.Signatures), len(txs)))
	}
	pub, err := validator.DecodePublicKey(res.PublicKey)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.CodeRemote, "malformed wallet public key", err)
	}
	sigs := make([]solana.Signature, len(res.Signatures))
	for i, s := range res.Signatures {
		if sigs[i], err = validator.DecodeSignature(s); err != nil {
			return nil, apierrors.Wrap(apierrors.CodeRemote, fmt.Sprintf("malformed signature %d", i), err)
		}
	}
	for i, tx := range txs {
		if err := tx.CheckSigner(pub); err != nil {
			return nil, apierrors.Wrap(apierrors.CodeRemote, fmt.Sprintf("attach signature %d", i), err)
		}
	}
	for i, tx := range txs {
		if err := tx.AddSignature(pub, sigs[i]); err != nil {
			return nil, apierrors.Wrap(apierrors.CodeRemote, fmt.Sprintf("attach signature %d", i), err)
		}
	}
	return txs, nil
}

func decodeSignature(raw json.RawMessage) (solana.Signature, solana.PublicKey, error) {
	var res protocol.SignatureResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return solana.Signature{}, solana.PublicKey{}, apierrors.Wrap(apierrors.CodeRemote, "malformed wallet response", err)
	}
	sig, err := validator.DecodeSignature(res.Signature)
	if err != nil {
		return solana.Signature{}, solana.PublicKey{}, apierrors.Wrap(apierrors.CodeRemote, "malformed signature", err)
	}
	pub, err := validator.DecodePublicKey(res.PublicKey)
	if err != nil {
		return solana.Signature{}, solana.PublicKey{}, apierrors.Wrap(apierrors.CodeRemote, "malformed wallet public key", err)
	}
	return sig, pub, nil
}
