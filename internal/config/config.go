// Package config 读取 walletctl 的 YAML 配置文件。
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderKind 选择钱包通道。
type ProviderKind string

const (
	// ProviderPopup 通过桥接打开远端钱包页面。
	ProviderPopup ProviderKind = "popup"
	// ProviderInjected 使用进程内注入的开发钱包。
	ProviderInjected ProviderKind = "injected"
)

// Config 是 walletctl 的完整配置。
type Config struct {
	Origin   string         `yaml:"origin"`
	Network  string         `yaml:"network"`
	Provider ProviderConfig `yaml:"provider"`
	RPC      RPCConfig      `yaml:"rpc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Debug    bool           `yaml:"debug"`
}

// ProviderConfig 描述钱包来源。
type ProviderConfig struct {
	Kind         ProviderKind `yaml:"kind"`
	URL          string       `yaml:"url"`
	WindowWidth  int          `yaml:"windowWidth"`
	WindowHeight int          `yaml:"windowHeight"`
	AutoApprove  bool         `yaml:"autoApprove"`
}

// RPCConfig 对应 ledger.Config。
type RPCConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Commitment    string        `yaml:"commitment"`
	SkipPreflight bool          `yaml:"skipPreflight"`
	PollRate      float64       `yaml:"pollRate"`
	MaxPolls      int           `yaml:"maxPolls"`
	BlockhashTTL  time.Duration `yaml:"blockhashTTL"`
}

// HTTPConfig 是 serve 子命令的监听配置。
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// BridgeConfig 覆盖桥接宿主的环境变量配置。
type BridgeConfig struct {
	Endpoints   map[string]string `yaml:"endpoints"`
	DialTimeout time.Duration     `yaml:"dialTimeout"`
}

// Default 返回 devnet 上的本地开发配置。
func Default() Config {
	return Config{
		Origin:  "http://localhost",
		Network: "devnet",
		Provider: ProviderConfig{
			Kind:         ProviderPopup,
			WindowWidth:  460,
			WindowHeight: 675,
		},
		RPC: RPCConfig{
			Commitment: "confirmed",
			PollRate:   2,
			MaxPolls:   30,
		},
		HTTP: HTTPConfig{Addr: "127.0.0.1:8080"},
	}
}

// Load 读取 path 并叠加到默认值上；未知字段视为错误。
// 结果尚未校验，调用方在叠加命令行参数后调用 Validate。
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode 从 r 解析配置。
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate 检查字段组合。
func (c Config) Validate() error {
	if _, err := parseOrigin(c.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if c.Network == "" {
		return errors.New("network is required")
	}
	switch c.Provider.Kind {
	case ProviderPopup:
		if _, err := parseOrigin(c.Provider.URL); err != nil {
			return fmt.Errorf("provider.url: %w", err)
		}
	case ProviderInjected:
	default:
		return fmt.Errorf("provider.kind must be %q or %q, got %q", ProviderPopup, ProviderInjected, c.Provider.Kind)
	}
	switch c.RPC.Commitment {
	case "", "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("rpc.commitment %q is not supported", c.RPC.Commitment)
	}
	if c.RPC.PollRate < 0 || c.RPC.MaxPolls < 0 {
		return errors.New("rpc poll settings must not be negative")
	}
	return nil
}

func parseOrigin(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	return u, nil
}
