package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/aegis-sign/wallet-adapter/internal/host"
	"github.com/aegis-sign/wallet-adapter/internal/protocol"
	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
)

type providerKind int

const (
	providerNone providerKind = iota
	providerInjected
	providerPopup
)

// Provider 在构造时确定钱包的到达方式，之后不再变化。
type Provider struct {
	kind providerKind
	sink host.Sink
	url  string
}

// Injected 使用宿主上下文中已存在的钱包对象。
func Injected(sink host.Sink) Provider {
	return Provider{kind: providerInjected, sink: sink}
}

// Popup 通过打开 providerURL 指向的窗口与钱包通信。
func Popup(providerURL string) Provider {
	return Provider{kind: providerPopup, url: providerURL}
}

// transport 负责出站投递与入站来源校验，调用方持有适配器锁。
type transport interface {
	name() string
	// open 建立通道；对注入式钱包无操作。
	open(ctx context.Context) error
	send(id uint64, method string, params any, autoApprove bool) error
	accept(ev host.MessageEvent) bool
	close()
}

func newTransport(p Provider, network string, h host.Host, features host.WindowFeatures) (transport, error) {
	switch p.kind {
	case providerInjected:
		if p.sink == nil {
			return nil, apierrors.New(apierrors.CodeConfiguration, "injected provider must not be nil")
		}
		return &injectedTransport{sink: p.sink, network: network, host: h}, nil
	case providerPopup:
		return newPopupTransport(p.url, network, h, features)
	default:
		return nil, apierrors.New(apierrors.CodeConfiguration,
			"provider parameter must be an injected provider or a URL string")
	}
}

type injectedTransport struct {
	sink    host.Sink
	network string
	host    host.Host
}

func (t *injectedTransport) name() string { return "injected" }

func (t *injectedTransport) open(context.Context) error { return nil }

func (t *injectedTransport) send(id uint64, method string, params any, _ bool) error {
	merged, err := withNetwork(params, t.network)
	if err != nil {
		return err
	}
	data, err := protocol.NewRequest(id, method, merged)
	if err != nil {
		return err
	}
	return t.sink.PostMessage(data)
}

func (t *injectedTransport) accept(ev host.MessageEvent) bool {
	return ev.Source != nil && ev.Source == t.host.Self()
}

func (t *injectedTransport) close() {}

// withNetwork 把 network 放在参数最前面，同名字段以调用方为准。
func withNetwork(params any, network string) (map[string]any, error) {
	merged := map[string]any{"network": network}
	if params == nil {
		return merged, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("params must encode as an object: %w", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged, nil
}

type popupTransport struct {
	host     host.Host
	openURL  string
	origin   string
	features host.WindowFeatures
	window   host.Window
}

func newPopupTransport(raw, network string, h host.Host, features host.WindowFeatures) (*popupTransport, error) {
	if raw == "" {
		return nil, apierrors.New(apierrors.CodeConfiguration, "provider url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.CodeConfiguration, "invalid provider url", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, apierrors.New(apierrors.CodeConfiguration, "provider url must be absolute")
	}
	u.Fragment, u.RawFragment = "", ""
	fragment := url.Values{
		"origin":  {h.Origin()},
		"network": {network},
	}.Encode()
	return &popupTransport{
		host:     h,
		openURL:  u.String() + "#" + fragment,
		origin:   host.NormalizeOrigin(u),
		features: features,
	}, nil
}

func (t *popupTransport) name() string { return "popup" }

func (t *popupTransport) open(ctx context.Context) error {
	w, err := t.host.OpenWindow(ctx, t.openURL, t.features)
	if err != nil {
		return apierrors.Wrap(apierrors.CodeTransportUnavailable, "open wallet window", err)
	}
	if w == nil {
		return apierrors.New(apierrors.CodeTransportUnavailable, "wallet window was blocked")
	}
	t.window = w
	return nil
}

func (t *popupTransport) send(id uint64, method string, params any, autoApprove bool) error {
	if t.window == nil {
		return apierrors.New(apierrors.CodeTransportUnavailable, "wallet window is not open")
	}
	data, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return err
	}
	if err := t.window.PostMessage(data, t.origin); err != nil {
		return apierrors.Wrap(apierrors.CodeTransportUnavailable, "post to wallet window", err)
	}
	if !autoApprove {
		// 聚焦失败不影响请求本身。
		_ = t.window.Focus()
	}
	return nil
}

func (t *popupTransport) accept(ev host.MessageEvent) bool {
	return t.window != nil && ev.Origin == t.origin && ev.Source == t.window
}

func (t *popupTransport) close() {
	if t.window == nil {
		return
	}
	_ = t.window.Close()
	t.window = nil
}
