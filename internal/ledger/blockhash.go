package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/singleflight"
)

const blockhashKey = "latest"

// Blockhash 是一次 getLatestBlockhash 的结果。
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
	FetchedAt            time.Time
}

// FetchFunc 从节点读取最新 blockhash。
type FetchFunc func(ctx context.Context) (Blockhash, error)

// BlockhashCache 缓存最近的 blockhash。
//
// 超过 soft TTL 仍返回旧值并在后台刷新；超过 hard TTL 必须同步刷新。
// 同一时刻只有一个在飞刷新。
type BlockhashCache struct {
	fetch   FetchFunc
	softTTL time.Duration
	hardTTL time.Duration
	timeout time.Duration
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics
	group   singleflight.Group

	mu      sync.Mutex
	current Blockhash
	valid   bool
}

// NewBlockhashCache 创建缓存。
func NewBlockhashCache(fetch FetchFunc, cfg Config) (*BlockhashCache, error) {
	if fetch == nil {
		return nil, errors.New("fetch func is required")
	}
	normalized := cfg.normalize()
	return &BlockhashCache{
		fetch:   fetch,
		softTTL: normalized.BlockhashSoftTTL,
		hardTTL: normalized.BlockhashHardTTL,
		timeout: normalized.FetchTimeout,
		clock:   normalized.Clock,
		logger:  normalized.Logger,
		metrics: normalized.Metrics,
	}, nil
}

// Get 返回可用的 blockhash。
func (c *BlockhashCache) Get(ctx context.Context) (Blockhash, error) {
	now := c.clock.Now()
	c.mu.Lock()
	cur, valid := c.current, c.valid
	c.mu.Unlock()

	if valid {
		age := now.Sub(cur.FetchedAt)
		if age < c.softTTL {
			c.metrics.incLookup("hit")
			return cur, nil
		}
		if age < c.hardTTL {
			c.metrics.incLookup("stale")
			c.refreshAsync()
			return cur, nil
		}
	}
	c.metrics.incLookup("miss")
	return c.refresh(ctx)
}

// Invalidate 丢弃缓存，下一次 Get 同步刷新。
func (c *BlockhashCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

func (c *BlockhashCache) refresh(ctx context.Context) (Blockhash, error) {
	resultCh := c.group.DoChan(blockhashKey, func() (interface{}, error) {
		return c.load(ctx)
	})
	select {
	case <-ctx.Done():
		return Blockhash{}, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return Blockhash{}, res.Err
		}
		return res.Val.(Blockhash), nil
	}
}

func (c *BlockhashCache) refreshAsync() {
	go func() {
		if _, err := c.refresh(context.Background()); err != nil {
			c.logger.Warn("blockhash refresh async failed", slog.Any("err", err))
		}
	}()
}

func (c *BlockhashCache) load(ctx context.Context) (Blockhash, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	bh, err := c.fetch(callCtx)
	if err != nil {
		c.metrics.incRefreshFailure()
		return Blockhash{}, fmt.Errorf("fetch latest blockhash: %w", err)
	}
	if bh.FetchedAt.IsZero() {
		bh.FetchedAt = c.clock.Now()
	}
	c.mu.Lock()
	c.current = bh
	c.valid = true
	c.mu.Unlock()
	return bh, nil
}
