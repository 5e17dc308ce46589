package stubwallet

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go"

	"github.com/aegis-sign/wallet-adapter/internal/protocol"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

func jsonUnmarshal(raw json.RawMessage, v any) error { return json.Unmarshal(raw, v) }

func decodeResult(env protocol.Envelope) (solana.Signature, solana.PublicKey, error) {
	var res protocol.SignatureResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return solana.Signature{}, solana.PublicKey{}, err
	}
	sig, err := validator.DecodeSignature(res.Signature)
	if err != nil {
		return solana.Signature{}, solana.PublicKey{}, err
	}
	pub, err := validator.DecodePublicKey(res.PublicKey)
	if err != nil {
		return solana.Signature{}, solana.PublicKey{}, err
	}
	return sig, pub, nil
}
