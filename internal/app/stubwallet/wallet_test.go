package stubwallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/wallet-adapter/internal/protocol"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

func request(t *testing.T, id uint64, method string, params any) []byte {
	t.Helper()
	data, err := protocol.NewRequest(id, method, params)
	require.NoError(t, err)
	return data
}

func decodeOne(t *testing.T, out [][]byte) protocol.Envelope {
	t.Helper()
	require.Len(t, out, 1)
	env, err := protocol.Decode(out[0])
	require.NoError(t, err)
	return env
}

func TestHandleSignProducesVerifiableSignature(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	msg := []byte("hello wallet")

	out, end, err := w.Handle(request(t, 3, protocol.MethodSign, protocol.SignParams{Data: validator.EncodeBase58(msg), Display: "utf8"}))
	require.NoError(t, err)
	require.False(t, end)
	env := decodeOne(t, out)
	require.Equal(t, uint64(3), *env.ID)
	require.Empty(t, env.Error)

	sig, pub, err := decodeResult(env)
	require.NoError(t, err)
	require.True(t, pub.Equals(w.PublicKey()))
	require.True(t, sig.Verify(pub, msg))
	require.Equal(t, 1, w.Signed())
}

func TestHandleSignAllTransactionsKeepsOrder(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	msgs := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	encoded := make([]string, len(msgs))
	for i, m := range msgs {
		encoded[i] = validator.EncodeBase58(m)
	}

	out, _, err := w.Handle(request(t, 9, protocol.MethodSignAllTransactions, protocol.SignAllTransactionsParams{Messages: encoded}))
	require.NoError(t, err)
	env := decodeOne(t, out)
	var res protocol.SignaturesResult
	require.NoError(t, jsonUnmarshal(env.Result, &res))
	require.Len(t, res.Signatures, 3)
	for i, raw := range res.Signatures {
		sig, err := validator.DecodeSignature(raw)
		require.NoError(t, err)
		require.True(t, sig.Verify(w.PublicKey(), msgs[i]))
	}
	require.Equal(t, 3, w.Signed())
}

func TestHandleConnectAnnouncesIdentity(t *testing.T) {
	w, err := Generate(WithAutoApprove(true))
	require.NoError(t, err)

	out, end, err := w.Handle(request(t, 1, protocol.MethodConnect, map[string]string{"network": "devnet"}))
	require.NoError(t, err)
	require.False(t, end)
	require.Len(t, out, 2)
	notice, err := protocol.Decode(out[1])
	require.NoError(t, err)
	require.Nil(t, notice.ID)
	require.Equal(t, protocol.MethodConnected, notice.Method)
	var params protocol.ConnectedParams
	require.NoError(t, jsonUnmarshal(notice.Params, &params))
	require.Equal(t, w.PublicKey().String(), params.PublicKey)
	require.True(t, params.AutoApprove)
}

func TestHandleDisconnectEndsSession(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	out, end, err := w.Handle(request(t, 2, protocol.MethodDisconnect, nil))
	require.NoError(t, err)
	require.True(t, end)
	require.Len(t, out, 2)
	bye, err := protocol.Decode(out[1])
	require.NoError(t, err)
	require.Equal(t, protocol.MethodDisconnected, bye.Method)
}

func TestHandleErrors(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	out, _, err := w.Handle(request(t, 4, "signMessageV2", nil))
	require.NoError(t, err)
	require.Equal(t, "unsupported method: signMessageV2", decodeOne(t, out).Error)

	out, _, err = w.Handle(request(t, 5, protocol.MethodSign, protocol.SignParams{Data: "0OIl", Display: "hex"}))
	require.NoError(t, err)
	require.NotEmpty(t, decodeOne(t, out).Error)

	rejecting, err := Generate(WithRejection("User rejected the request"))
	require.NoError(t, err)
	out, _, err = rejecting.Handle(request(t, 6, protocol.MethodSignTransaction, protocol.SignTransactionParams{Message: validator.EncodeBase58([]byte("m"))}))
	require.NoError(t, err)
	require.Equal(t, "User rejected the request", decodeOne(t, out).Error)
	require.Zero(t, rejecting.Signed())
}

func TestHandleIgnoresNonRequests(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	for _, msg := range [][]byte{[]byte("garbage"), mustNotification(t), mustResult(t)} {
		out, end, err := w.Handle(msg)
		require.NoError(t, err)
		require.False(t, end)
		require.Empty(t, out)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New(solana.PrivateKey{1, 2, 3})
	require.Error(t, err)
}

func mustNotification(t *testing.T) []byte {
	data, err := protocol.NewNotification(protocol.MethodConnected, nil)
	require.NoError(t, err)
	return data
}

func mustResult(t *testing.T) []byte {
	data, err := protocol.NewResult(1, struct{}{})
	require.NoError(t, err)
	return data
}
