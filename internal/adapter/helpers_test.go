package adapter

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/wallet-adapter/internal/host/memhost"
	"github.com/aegis-sign/wallet-adapter/internal/protocol"
)

const (
	appOrigin    = "https://app.example"
	walletURL    = "https://wallet.example/popup"
	walletOrigin = "https://wallet.example"
	network      = "devnet"
)

type popupFixture struct {
	t      *testing.T
	host   *memhost.Host
	wallet *Wallet
}

func newPopupFixture(t *testing.T, opts ...Option) *popupFixture {
	t.Helper()
	h := memhost.New(appOrigin)
	w, err := New(Popup(walletURL), network, h, opts...)
	require.NoError(t, err)
	return &popupFixture{t: t, host: h, wallet: w}
}

// connect 发起 Connect，并以最新打开的窗口推送 connected 通知。
func (f *popupFixture) connect(key solana.PublicKey, autoApprove bool) *memhost.Window {
	f.t.Helper()
	errCh := make(chan error, 1)
	before := len(f.host.Windows())
	go func() { errCh <- f.wallet.Connect(context.Background()) }()
	require.Eventually(f.t, func() bool { return len(f.host.Windows()) > before }, time.Second, time.Millisecond)
	win := f.host.LastWindow()
	win.Reply(connectedMsg(f.t, key, autoApprove))
	select {
	case err := <-errCh:
		require.NoError(f.t, err)
	case <-time.After(time.Second):
		f.t.Fatal("connect did not settle")
	}
	return win
}

type requestSource interface {
	Next(ctx context.Context) ([]byte, error)
}

func nextRequest(t *testing.T, src requestSource) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	raw, err := src.Next(ctx)
	require.NoError(t, err)
	env, err := protocol.Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, env.ID)
	return env
}

func connectedMsg(t *testing.T, key solana.PublicKey, autoApprove bool) []byte {
	t.Helper()
	data, err := protocol.NewNotification(protocol.MethodConnected, protocol.ConnectedParams{
		PublicKey:   key.String(),
		AutoApprove: autoApprove,
	})
	require.NoError(t, err)
	return data
}

func disconnectedMsg(t *testing.T) []byte {
	t.Helper()
	data, err := protocol.NewNotification(protocol.MethodDisconnected, nil)
	require.NoError(t, err)
	return data
}

func resultMsg(t *testing.T, id uint64, result any) []byte {
	t.Helper()
	data, err := protocol.NewResult(id, result)
	require.NoError(t, err)
	return data
}

func errorMsg(t *testing.T, id uint64, reason string) []byte {
	t.Helper()
	data, err := protocol.NewError(id, reason)
	require.NoError(t, err)
	return data
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func randomSignature(t *testing.T) solana.Signature {
	t.Helper()
	var sig solana.Signature
	_, err := rand.Read(sig[:])
	require.NoError(t, err)
	return sig
}

// recorder 记录 connect/disconnect 通知的顺序。
type recorder struct {
	events chan string
}

func record(w *Wallet) *recorder {
	r := &recorder{events: make(chan string, 64)}
	w.OnConnect(func(k solana.PublicKey) { r.events <- "connect:" + k.String() })
	w.OnDisconnect(func() { r.events <- "disconnect" })
	return r
}

func (r *recorder) drain() []string {
	var out []string
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

type fakeTx struct {
	msg        []byte
	serialized int
	signerErr  error
	sigs       map[solana.PublicKey]solana.Signature
}

func (f *fakeTx) SerializeMessage() ([]byte, error) {
	f.serialized++
	return f.msg, nil
}

func (f *fakeTx) CheckSigner(solana.PublicKey) error {
	return f.signerErr
}

func (f *fakeTx) AddSignature(pub solana.PublicKey, sig solana.Signature) error {
	if f.signerErr != nil {
		return f.signerErr
	}
	if f.sigs == nil {
		f.sigs = make(map[solana.PublicKey]solana.Signature)
	}
	f.sigs[pub] = sig
	return nil
}
