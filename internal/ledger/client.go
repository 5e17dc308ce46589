// Package ledger 封装钱包示例流程所需的账本节点操作：
// 获取最近 blockhash、提交已签名交易、轮询确认。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client 组合 blockhash 缓存与确认器。
type Client struct {
	api       RPC
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics
	blockhash *BlockhashCache
	confirmer *Confirmer
}

// Dial 使用 endpoint（或网络名）创建 JSON-RPC 客户端。
func Dial(endpoint string, cfg Config) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("rpc endpoint is required")
	}
	return NewClient(rpc.New(Endpoint(endpoint)), cfg)
}

// NewClient 基于已有 RPC 实现创建 Client。
func NewClient(api RPC, cfg Config) (*Client, error) {
	if api == nil {
		return nil, errors.New("rpc client is required")
	}
	normalized := cfg.normalize()
	c := &Client{api: api, cfg: normalized, logger: normalized.Logger, metrics: normalized.Metrics}
	cache, err := NewBlockhashCache(c.fetchBlockhash, normalized)
	if err != nil {
		return nil, err
	}
	confirmer, err := NewConfirmer(api, normalized)
	if err != nil {
		return nil, err
	}
	c.blockhash = cache
	c.confirmer = confirmer
	return c, nil
}

// RecentBlockhash 返回可用于新交易的 blockhash。
func (c *Client) RecentBlockhash(ctx context.Context) (solana.Hash, error) {
	bh, err := c.blockhash.Get(ctx)
	if err != nil {
		return solana.Hash{}, err
	}
	return bh.Hash, nil
}

// SubmitTransaction 提交已签名交易，返回交易签名。
func (c *Client) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if tx == nil {
		return solana.Signature{}, errors.New("transaction is required")
	}
	sig, err := c.api.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       c.cfg.SkipPreflight,
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		c.metrics.incSubmit("error")
		// blockhash 可能已过期，下次重新获取。
		c.blockhash.Invalidate()
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	c.metrics.incSubmit("ok")
	c.logger.Info("transaction submitted", slog.String("signature", sig.String()))
	return sig, nil
}

// ConfirmTransaction 等待交易达到配置的确认级别。
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	return c.confirmer.Confirm(ctx, sig)
}

func (c *Client) fetchBlockhash(ctx context.Context) (Blockhash, error) {
	res, err := c.api.GetLatestBlockhash(ctx, c.cfg.Commitment)
	if err != nil {
		return Blockhash{}, err
	}
	if res == nil || res.Value == nil {
		return Blockhash{}, errors.New("empty blockhash response")
	}
	return Blockhash{
		Hash:                 res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}
