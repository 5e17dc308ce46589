package bridgeclient

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aegis-sign/wallet-adapter/internal/host"
)

// Config 控制桥接宿主的拨号与熔断行为。
type Config struct {
	// Endpoints 把钱包页面 origin 映射到桥接端点，"*" 为兜底。
	Endpoints        map[string]string
	DialTimeout      time.Duration
	DialAttempts     int
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	Backoff          BackoffConfig
}

// BackoffConfig 决定拨号重试的指数退避参数。
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// DefaultConfig 返回本地开发可用的默认值。
func DefaultConfig() Config {
	return Config{
		Endpoints:        map[string]string{},
		DialTimeout:      2 * time.Second,
		DialAttempts:     3,
		KeepaliveTime:    30 * time.Second,
		KeepaliveTimeout: 10 * time.Second,
		BreakerThreshold: 3,
		BreakerCooldown:  10 * time.Second,
		Backoff: BackoffConfig{
			Initial: 50 * time.Millisecond,
			Max:     500 * time.Millisecond,
			Jitter:  0.2,
		},
	}
}

// Endpoint 查找 origin 对应的桥接端点。
func (c Config) Endpoint(origin string) (string, bool) {
	if ep, ok := c.Endpoints[origin]; ok && ep != "" {
		return ep, true
	}
	// 手工填写的键可能带大小写或默认端口。
	for key, ep := range c.Endpoints {
		if key == "*" || ep == "" {
			continue
		}
		if norm, err := host.ParseOrigin(key); err == nil && norm == origin {
			return ep, true
		}
	}
	if ep, ok := c.Endpoints["*"]; ok && ep != "" {
		return ep, true
	}
	return "", false
}

// ParseEndpoints 解析 "origin=endpoint,origin=endpoint" 形式的映射。
func ParseEndpoints(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		origin, endpoint, ok := strings.Cut(entry, "=")
		origin = strings.TrimSpace(origin)
		endpoint = strings.TrimSpace(endpoint)
		if !ok || origin == "" || endpoint == "" {
			return nil, fmt.Errorf("invalid bridge endpoint entry %q", entry)
		}
		if origin != "*" {
			norm, err := host.ParseOrigin(origin)
			if err != nil {
				return nil, fmt.Errorf("invalid bridge endpoint origin %q: %w", origin, err)
			}
			origin = norm
		}
		out[origin] = endpoint
	}
	return out, nil
}

// FormatEndpoints 是 ParseEndpoints 的逆操作，按 origin 排序输出。
func FormatEndpoints(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ",")
}

// LoadConfigFromEnv 在默认值之上叠加 WALLET_BRIDGE_* 环境变量。
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if raw := os.Getenv("WALLET_BRIDGE_ENDPOINTS"); raw != "" {
		eps, err := ParseEndpoints(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Endpoints = eps
	}
	if d := readDuration("WALLET_BRIDGE_DIAL_TIMEOUT"); d > 0 {
		cfg.DialTimeout = d
	}
	if v := readInt("WALLET_BRIDGE_DIAL_ATTEMPTS"); v > 0 {
		cfg.DialAttempts = v
	}
	if d := readDuration("WALLET_BRIDGE_KEEPALIVE_TIME"); d > 0 {
		cfg.KeepaliveTime = d
	}
	if d := readDuration("WALLET_BRIDGE_KEEPALIVE_TIMEOUT"); d > 0 {
		cfg.KeepaliveTimeout = d
	}
	if v := readInt("WALLET_BRIDGE_BREAKER_THRESHOLD"); v > 0 {
		cfg.BreakerThreshold = v
	}
	if d := readDuration("WALLET_BRIDGE_BREAKER_COOLDOWN"); d > 0 {
		cfg.BreakerCooldown = d
	}
	if d := readDuration("WALLET_BRIDGE_RETRY_INITIAL"); d > 0 {
		cfg.Backoff.Initial = d
	}
	if d := readDuration("WALLET_BRIDGE_RETRY_MAX"); d > 0 {
		cfg.Backoff.Max = d
	}
	if j := readFloat("WALLET_BRIDGE_RETRY_JITTER"); j >= 0 {
		cfg.Backoff.Jitter = j
	}
	if cfg.Backoff.Max < cfg.Backoff.Initial {
		cfg.Backoff.Max = cfg.Backoff.Initial
	}
	return cfg, nil
}

func readInt(key string) int {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return v
}

func readDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func readFloat(key string) float64 {
	value := os.Getenv(key)
	if value == "" {
		return -1
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return -1
	}
	return v
}
