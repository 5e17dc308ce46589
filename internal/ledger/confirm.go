package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

var (
	// ErrTransactionFailed 交易已上链但执行失败。
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrNotConfirmed 轮询次数耗尽仍未达到目标确认级别。
	ErrNotConfirmed = errors.New("transaction not confirmed")
)

// Confirmer 轮询签名状态直到达到目标确认级别。
type Confirmer struct {
	api     RPC
	cfg     Config
	target  rpc.ConfirmationStatusType
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *Metrics

	randMu sync.Mutex
	rnd    *rand.Rand
}

// NewConfirmer 创建确认器。PollRate 为 0 时不限速。
func NewConfirmer(api RPC, cfg Config) (*Confirmer, error) {
	if api == nil {
		return nil, errors.New("rpc client is required")
	}
	normalized := cfg.normalize()
	c := &Confirmer{
		api:     api,
		cfg:     normalized,
		target:  targetStatus(normalized.Commitment),
		logger:  normalized.Logger,
		metrics: normalized.Metrics,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if normalized.PollRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(normalized.PollRate), normalized.PollBurst)
	}
	return c, nil
}

// Confirm 阻塞直到 sig 达到目标确认级别、执行失败、轮询耗尽或 ctx 结束。
func (c *Confirmer) Confirm(ctx context.Context, sig solana.Signature) error {
	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		c.metrics.incPoll()
		res, err := c.api.GetSignatureStatuses(ctx, false, sig)
		switch {
		case err != nil:
			c.logger.Warn("signature status poll failed", slog.String("signature", sig.String()), slog.Int("attempt", attempt), slog.Any("err", err))
		case res != nil && len(res.Value) > 0 && res.Value[0] != nil:
			st := res.Value[0]
			if st.Err != nil {
				c.metrics.incConfirm("failed")
				return fmt.Errorf("%w: %v", ErrTransactionFailed, st.Err)
			}
			if reached(st.ConfirmationStatus, c.target) {
				c.metrics.incConfirm("confirmed")
				return nil
			}
		}
		if attempt == c.cfg.MaxPolls {
			break
		}
		timer := time.NewTimer(c.backoffDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.metrics.incConfirm("timeout")
	return fmt.Errorf("%w after %d polls", ErrNotConfirmed, c.cfg.MaxPolls)
}

func (c *Confirmer) backoffDelay(attempt int) time.Duration {
	delay := c.cfg.BackoffBase * time.Duration(1<<(attempt-1))
	if delay > c.cfg.BackoffMax || delay <= 0 {
		delay = c.cfg.BackoffMax
	}
	return c.jitter(delay, 0.2)
}

func (c *Confirmer) jitter(dur time.Duration, factor float64) time.Duration {
	maxJitter := time.Duration(float64(dur) * factor)
	if maxJitter <= 0 {
		return dur
	}
	c.randMu.Lock()
	delta := time.Duration(c.rnd.Int63n(int64(2*maxJitter+1))) - maxJitter
	c.randMu.Unlock()
	if candidate := dur + delta; candidate > 0 {
		return candidate
	}
	return 0
}

func targetStatus(commitment rpc.CommitmentType) rpc.ConfirmationStatusType {
	switch commitment {
	case rpc.CommitmentFinalized:
		return rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return rpc.ConfirmationStatusProcessed
	default:
		return rpc.ConfirmationStatusConfirmed
	}
}

func reached(got, want rpc.ConfirmationStatusType) bool {
	return statusRank(got) >= statusRank(want) && statusRank(got) > 0
}

func statusRank(s rpc.ConfirmationStatusType) int {
	switch s {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	default:
		return 0
	}
}
