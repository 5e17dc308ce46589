// Package solanatx 把 solana-go 的交易适配为钱包适配器所需的最小接口。
package solanatx

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// ErrNotSigner 表示公钥不在交易的必需签名者之列。
var ErrNotSigner = errors.New("public key is not a required signer")

// Tx 包装 *solana.Transaction。
type Tx struct {
	tx *solana.Transaction
}

// Wrap 包装已有交易。
func Wrap(tx *solana.Transaction) *Tx {
	return &Tx{tx: tx}
}

// Unwrap 返回底层交易。
func (t *Tx) Unwrap() *solana.Transaction { return t.tx }

// SerializeMessage 返回需要签名的消息字节。
func (t *Tx) SerializeMessage() ([]byte, error) {
	return t.tx.Message.MarshalBinary()
}

// CheckSigner 确认 pubkey 属于交易的必需签名者。
func (t *Tx) CheckSigner(pubkey solana.PublicKey) error {
	if t.signerIndex(pubkey) < 0 {
		return fmt.Errorf("%w: %s", ErrNotSigner, pubkey)
	}
	return nil
}

// AddSignature 把签名放到 pubkey 在签名者列表中的位置。
func (t *Tx) AddSignature(pubkey solana.PublicKey, sig solana.Signature) error {
	idx := t.signerIndex(pubkey)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotSigner, pubkey)
	}
	required := int(t.tx.Message.Header.NumRequiredSignatures)
	if len(t.tx.Signatures) < required {
		grown := make([]solana.Signature, required)
		copy(grown, t.tx.Signatures)
		t.tx.Signatures = grown
	}
	t.tx.Signatures[idx] = sig
	return nil
}

func (t *Tx) signerIndex(pubkey solana.PublicKey) int {
	required := int(t.tx.Message.Header.NumRequiredSignatures)
	keys := t.tx.Message.AccountKeys
	for i := 0; i < required && i < len(keys); i++ {
		if keys[i].Equals(pubkey) {
			return i
		}
	}
	return -1
}

// Signature 返回手续费支付者的签名，即交易 id；尚未签名时返回 false。
func (t *Tx) Signature() (solana.Signature, bool) {
	if len(t.tx.Signatures) == 0 || t.tx.Signatures[0] == (solana.Signature{}) {
		return solana.Signature{}, false
	}
	return t.tx.Signatures[0], true
}

// Verify 校验全部签名。
func (t *Tx) Verify() error {
	return t.tx.VerifySignatures()
}

// BuildTransfer 构造一笔由 from 支付手续费的 SOL 转账。
func BuildTransfer(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*Tx, error) {
	if lamports == 0 {
		return nil, errors.New("lamports must be positive")
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}
	return Wrap(tx), nil
}
