package ledger

import (
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// Config 控制 blockhash 缓存与确认轮询。
type Config struct {
	Commitment    rpc.CommitmentType
	SkipPreflight bool

	BlockhashSoftTTL time.Duration
	BlockhashHardTTL time.Duration
	FetchTimeout     time.Duration

	PollRate    float64
	PollBurst   int
	MaxPolls    int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	Clock   Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.BlockhashSoftTTL <= 0 {
		cfg.BlockhashSoftTTL = 20 * time.Second
	}
	if cfg.BlockhashHardTTL <= 0 {
		cfg.BlockhashHardTTL = 60 * time.Second
	}
	if cfg.BlockhashHardTTL < cfg.BlockhashSoftTTL {
		cfg.BlockhashHardTTL = cfg.BlockhashSoftTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.PollBurst <= 0 {
		cfg.PollBurst = 1
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
