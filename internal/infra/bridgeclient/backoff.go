package bridgeclient

import (
	"context"
	"math/rand"
	"time"
)

// dialRetry 把一次 OpenWindow 的拨号次数上限与退避等待绑在一起。
type dialRetry struct {
	cfg      BackoffConfig
	attempts int
	// jitter 返回 [0,1) 的随机数，测试可替换。
	jitter func() float64
}

func newDialRetry(attempts int, cfg BackoffConfig) *dialRetry {
	if attempts <= 0 {
		attempts = 1
	}
	return &dialRetry{cfg: cfg, attempts: attempts, jitter: rand.Float64}
}

// delay 返回第 n 次重试（从 1 开始）前的等待：Initial 逐次翻倍，封顶 Max，再叠加抖动。
func (r *dialRetry) delay(n int) time.Duration {
	d := r.cfg.Initial
	for i := 1; i < n && d > 0 && d < r.cfg.Max; i++ {
		d *= 2
	}
	if r.cfg.Jitter > 0 {
		d = time.Duration(float64(d) * (1 - r.cfg.Jitter + 2*r.cfg.Jitter*r.jitter()))
	}
	return clampDuration(d, r.cfg.Initial, r.cfg.Max)
}

// run 反复调用 fn 直到成功、次数用尽或 ctx 结束，返回最后一次错误。
func (r *dialRetry) run(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	for n := 1; n <= r.attempts; n++ {
		if n > 1 {
			timer := time.NewTimer(r.delay(n - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if lastErr = fn(n); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func clampDuration(d, low, high time.Duration) time.Duration {
	if d < low {
		return low
	}
	if d > high {
		return high
	}
	return d
}
