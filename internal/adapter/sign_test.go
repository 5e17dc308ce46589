package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/wallet-adapter/internal/protocol"
	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

func TestSignRoundTrip(t *testing.T) {
	f := newPopupFixture(t)
	key := newKey()
	win := f.connect(key, false)
	sig := randomSignature(t)

	type result struct {
		res SignResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := f.wallet.Sign(context.Background(), []byte{1, 2, 3}, "hex")
		done <- result{res, err}
	}()

	env := nextRequest(t, win)
	require.Equal(t, uint64(1), *env.ID)
	require.Equal(t, protocol.MethodSign, env.Method)
	var params protocol.SignParams
	require.NoError(t, json.Unmarshal(env.Params, &params))
	require.Equal(t, validator.EncodeBase58([]byte{1, 2, 3}), params.Data)
	require.Equal(t, "hex", params.Display)

	win.Reply(resultMsg(t, 1, protocol.SignatureResult{Signature: sig.String(), PublicKey: key.String()}))
	got := <-done
	require.NoError(t, got.err)
	require.Equal(t, sig, got.res.Signature)
	require.Equal(t, key, got.res.PublicKey)

	// autoApprove=false 时每次请求都会聚焦弹窗。
	require.Equal(t, 1, win.FocusCount())
}

func TestSignWithAutoApproveDoesNotFocus(t *testing.T) {
	f := newPopupFixture(t)
	key := newKey()
	win := f.connect(key, true)

	done := make(chan error, 1)
	go func() {
		_, err := f.wallet.Sign(context.Background(), []byte("hello"), "utf8")
		done <- err
	}()
	env := nextRequest(t, win)
	win.Reply(resultMsg(t, *env.ID, protocol.SignatureResult{Signature: randomSignature(t).String(), PublicKey: key.String()}))
	require.NoError(t, <-done)
	require.Zero(t, win.FocusCount())
}

func TestSignValidatesArguments(t *testing.T) {
	f := newPopupFixture(t)
	f.connect(newKey(), true)

	_, err := f.wallet.Sign(context.Background(), nil, "hex")
	require.ErrorIs(t, err, apierrors.ErrInvalidArgument)

	_, err = f.wallet.Sign(context.Background(), []byte{1}, "base64")
	require.ErrorIs(t, err, apierrors.ErrInvalidArgument)
	require.Empty(t, f.wallet.PendingRequests())
}

func TestSignRequiresConnection(t *testing.T) {
	f := newPopupFixture(t)
	_, err := f.wallet.Sign(context.Background(), []byte{1}, "hex")
	require.ErrorIs(t, err, apierrors.ErrNotConnected)
	require.Empty(t, f.host.Windows())
}

func TestSignTransactionWithoutConnectSendsNothing(t *testing.T) {
	f := newPopupFixture(t)
	tx := &fakeTx{msg: []byte("msg")}

	_, err := f.wallet.SignTransaction(context.Background(), tx)
	require.ErrorIs(t, err, apierrors.ErrNotConnected)
	require.Zero(t, tx.serialized)
	require.Empty(t, f.host.Windows())

	_, err = f.wallet.SignAllTransactions(context.Background(), []Transaction{tx})
	require.ErrorIs(t, err, apierrors.ErrNotConnected)
	require.Zero(t, tx.serialized)
}

func TestRemoteErrorSurfacedVerbatim(t *testing.T) {
	f := newPopupFixture(t)
	win := f.connect(newKey(), true)

	done := make(chan error, 1)
	go func() {
		_, err := f.wallet.Sign(context.Background(), []byte{1}, "hex")
		done <- err
	}()
	env := nextRequest(t, win)
	win.Reply(errorMsg(t, *env.ID, "User rejected the request"))

	err := <-done
	require.ErrorIs(t, err, apierrors.ErrRemote)
	require.NotErrorIs(t, err, apierrors.ErrDisconnected)
	require.EqualError(t, err, "User rejected the request")
	require.True(t, f.wallet.Connected())
}

func TestResponseWithoutResultOrErrorIsIgnored(t *testing.T) {
	f := newPopupFixture(t, WithRegisterer(prometheus.NewRegistry()))
	key := newKey()
	win := f.connect(key, true)

	done := make(chan error, 1)
	go func() {
		_, err := f.wallet.Sign(context.Background(), []byte{1}, "hex")
		done <- err
	}()
	env := nextRequest(t, win)
	win.Reply([]byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d}`, *env.ID)))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.wallet.metrics.ignored.WithLabelValues("unexpected")) == 1
	}, time.Second, time.Millisecond)
	require.Len(t, f.wallet.PendingRequests(), 1)
	select {
	case err := <-done:
		t.Fatalf("request settled by an empty response: %v", err)
	default:
	}

	win.Reply(resultMsg(t, *env.ID, protocol.SignatureResult{Signature: randomSignature(t).String(), PublicKey: key.String()}))
	require.NoError(t, <-done)
}

func TestSignAbandonedByContext(t *testing.T) {
	f := newPopupFixture(t)
	key := newKey()
	win := f.connect(key, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.wallet.Sign(ctx, []byte{1}, "hex")
		done <- err
	}()
	env := nextRequest(t, win)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Empty(t, f.wallet.PendingRequests())

	// 被放弃请求的响应视为未知 id。
	win.Reply(resultMsg(t, *env.ID, protocol.SignatureResult{Signature: randomSignature(t).String(), PublicKey: key.String()}))
	require.True(t, f.wallet.Connected())
}

func TestConcurrentRequestsCompleteOutOfOrder(t *testing.T) {
	f := newPopupFixture(t)
	key := newKey()
	win := f.connect(key, true)

	const n = 4
	type result struct {
		payload byte
		sig     solana.Signature
		err     error
	}
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			res, err := f.wallet.Sign(context.Background(), []byte{byte(i)}, "hex")
			results <- result{payload: byte(i), sig: res.Signature, err: err}
		}()
	}

	sigFor := make(map[byte]solana.Signature)
	var envs []protocol.Envelope
	for i := 0; i < n; i++ {
		envs = append(envs, nextRequest(t, win))
	}
	for i := len(envs) - 1; i >= 0; i-- {
		var params protocol.SignParams
		require.NoError(t, json.Unmarshal(envs[i].Params, &params))
		raw, err := validator.DecodeBase58(params.Data)
		require.NoError(t, err)
		sig := randomSignature(t)
		sigFor[raw[0]] = sig
		win.Reply(resultMsg(t, *envs[i].ID, protocol.SignatureResult{Signature: sig.String(), PublicKey: key.String()}))
	}
	for i := 0; i < n; i++ {
		select {
		case r := <-results:
			require.NoError(t, r.err)
			require.Equal(t, sigFor[r.payload], r.sig)
		case <-time.After(time.Second):
			t.Fatal("request did not complete")
		}
	}
}

func TestSignTransactionAttachesSignature(t *testing.T) {
	f := newPopupFixture(t)
	key := newKey()
	win := f.connect(key, true)
	tx := &fakeTx{msg: []byte("transfer")}
	sig := randomSignature(t)

	done := make(chan error, 1)
	go func() {
		out, err := f.wallet.SignTransaction(context.Background(), tx)
		if err == nil && out != tx {
			t.Error("expected the same transaction back")
		}
		done <- err
	}()
	env := nextRequest(t, win)
	require.Equal(t, protocol.MethodSignTransaction, env.Method)
	var params protocol.SignTransactionParams
	require.NoError(t, json.Unmarshal(env.Params, &params))
	require.Equal(t, validator.EncodeBase58([]byte("transfer")), params.Message)

	win.Reply(resultMsg(t, *env.ID, protocol.SignatureResult{Signature: sig.String(), PublicKey: key.String()}))
	require.NoError(t, <-done)
	require.Equal(t, sig, tx.sigs[key])
}

func TestSignTransactionRejectedSignerLeavesTxUntouched(t *testing.T) {
	f := newPopupFixture(t)
	key := newKey()
	win := f.connect(key, true)
	tx := &fakeTx{msg: []byte("transfer"), signerErr: errors.New("not a signer")}

	done := make(chan error, 1)
	go func() {
		_, err := f.wallet.SignTransaction(context.Background(), tx)
		done <- err
	}()
	env := nextRequest(t, win)
	win.Reply(resultMsg(t, *env.ID, protocol.SignatureResult{Signature: randomSignature(t).String(), PublicKey: key.String()}))
	require.ErrorIs(t, <-done, apierrors.ErrRemote)
	require.Empty(t, tx.sigs)
	require.True(t, f.wallet.Connected())
}

func TestSignAllTransactionsBatchAtomicity(t *testing.T) {
	newBatch := func() []*fakeTx {
		return []*fakeTx{{msg: []byte("a")}, {msg: []byte("b")}, {msg: []byte("c")}}
	}
	asTxs := func(batch []*fakeTx) []Transaction {
		out := make([]Transaction, len(batch))
		for i, tx := range batch {
			out[i] = tx
		}
		return out
	}

	t.Run("success attaches in order", func(t *testing.T) {
		f := newPopupFixture(t)
		key := newKey()
		win := f.connect(key, true)
		batch := newBatch()
		sigs := []solana.Signature{randomSignature(t), randomSignature(t), randomSignature(t)}

		done := make(chan error, 1)
		go func() {
			_, err := f.wallet.SignAllTransactions(context.Background(), asTxs(batch))
			done <- err
		}()
		env := nextRequest(t, win)
		var params protocol.SignAllTransactionsParams
		require.NoError(t, json.Unmarshal(env.Params, &params))
		require.Equal(t, []string{
			validator.EncodeBase58([]byte("a")),
			validator.EncodeBase58([]byte("b")),
			validator.EncodeBase58([]byte("c")),
		}, params.Messages)

		win.Reply(resultMsg(t, *env.ID, protocol.SignaturesResult{
			Signatures: []string{sigs[0].String(), sigs[1].String(), sigs[2].String()},
			PublicKey:  key.String(),
		}))
		require.NoError(t, <-done)
		for i, tx := range batch {
			require.Equal(t, sigs[i], tx.sigs[key])
		}
	})

	failures := map[string]func(t *testing.T, id uint64, key solana.PublicKey) []byte{
		"remote error": func(t *testing.T, id uint64, _ solana.PublicKey) []byte {
			return errorMsg(t, id, "rejected")
		},
		"short response": func(t *testing.T, id uint64, key solana.PublicKey) []byte {
			return resultMsg(t, id, protocol.SignaturesResult{
				Signatures: []string{randomSignature(t).String(), randomSignature(t).String()},
				PublicKey:  key.String(),
			})
		},
		"malformed signature": func(t *testing.T, id uint64, key solana.PublicKey) []byte {
			return resultMsg(t, id, protocol.SignaturesResult{
				Signatures: []string{randomSignature(t).String(), "not-base58!", randomSignature(t).String()},
				PublicKey:  key.String(),
			})
		},
	}
	for name, reply := range failures {
		t.Run(name, func(t *testing.T) {
			f := newPopupFixture(t)
			key := newKey()
			win := f.connect(key, true)
			batch := newBatch()

			done := make(chan error, 1)
			go func() {
				_, err := f.wallet.SignAllTransactions(context.Background(), asTxs(batch))
				done <- err
			}()
			env := nextRequest(t, win)
			win.Reply(reply(t, *env.ID, key))
			require.ErrorIs(t, <-done, apierrors.ErrRemote)
			for _, tx := range batch {
				require.Empty(t, tx.sigs)
			}
		})
	}

	t.Run("one transaction rejects the signer", func(t *testing.T) {
		f := newPopupFixture(t)
		key := newKey()
		win := f.connect(key, true)
		batch := newBatch()
		batch[2].signerErr = errors.New("public key is not a required signer")

		done := make(chan error, 1)
		go func() {
			_, err := f.wallet.SignAllTransactions(context.Background(), asTxs(batch))
			done <- err
		}()
		env := nextRequest(t, win)
		win.Reply(resultMsg(t, *env.ID, protocol.SignaturesResult{
			Signatures: []string{randomSignature(t).String(), randomSignature(t).String(), randomSignature(t).String()},
			PublicKey:  key.String(),
		}))
		err := <-done
		require.ErrorIs(t, err, apierrors.ErrRemote)
		require.ErrorContains(t, err, "attach signature 2")
		for _, tx := range batch {
			require.Empty(t, tx.sigs)
		}
	})

	t.Run("disconnect", func(t *testing.T) {
		f := newPopupFixture(t)
		win := f.connect(newKey(), true)
		batch := newBatch()
		done := make(chan error, 1)
		go func() {
			_, err := f.wallet.SignAllTransactions(context.Background(), asTxs(batch))
			done <- err
		}()
		nextRequest(t, win)
		f.wallet.Disconnect()
		require.ErrorIs(t, <-done, apierrors.ErrDisconnected)
		for _, tx := range batch {
			require.Empty(t, tx.sigs)
		}
	})
}
