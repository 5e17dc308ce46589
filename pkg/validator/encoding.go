package validator

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// PayloadEncoding 描述调用方提交的原始字节编码。
type PayloadEncoding string

const (
	PayloadEncodingHex    PayloadEncoding = "hex"
	PayloadEncodingBase64 PayloadEncoding = "base64"
)

// DisplayHint 告诉钱包如何向用户展示待签名数据。
type DisplayHint string

const (
	DisplayHex  DisplayHint = "hex"
	DisplayUTF8 DisplayHint = "utf8"
)

// NormalizeEncoding 将用户输入转换为内部常量。
func NormalizeEncoding(raw string) (PayloadEncoding, error) {
	switch strings.ToLower(raw) {
	case "", string(PayloadEncodingHex):
		return PayloadEncodingHex, nil
	case string(PayloadEncodingBase64):
		return PayloadEncodingBase64, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", raw)
	}
}

// NormalizeDisplay 校验展示提示，空值按 hex 处理。
func NormalizeDisplay(raw string) (DisplayHint, error) {
	switch strings.ToLower(raw) {
	case "", string(DisplayHex):
		return DisplayHex, nil
	case string(DisplayUTF8), "utf-8":
		return DisplayUTF8, nil
	default:
		return "", fmt.Errorf("unsupported display %q", raw)
	}
}

var errEmptyPayload = errors.New("payload must not be empty")

// DecodePayload 将 payload 解码为二进制。
func DecodePayload(payload string, enc PayloadEncoding) ([]byte, error) {
	if payload == "" {
		return nil, errEmptyPayload
	}
	switch enc {
	case PayloadEncodingHex:
		decoded, err := hex.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return decoded, nil
	case PayloadEncodingBase64:
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}

// EncodeBase58 按钱包线协议编码字节。
func EncodeBase58(data []byte) string {
	return base58.Encode(data)
}

// DecodeBase58 解码钱包线协议中的 base58 字段。
func DecodeBase58(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base58 value")
	}
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("invalid base58: %w", err)
	}
	return decoded, nil
}

// DecodePublicKey 解析 base58 公钥。
func DecodePublicKey(value string) (solana.PublicKey, error) {
	decoded, err := DecodeBase58(value)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if len(decoded) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", solana.PublicKeyLength, len(decoded))
	}
	return solana.PublicKeyFromBytes(decoded), nil
}

// DecodeSignature 解析 base58 签名并校验长度。
func DecodeSignature(value string) (solana.Signature, error) {
	decoded, err := DecodeBase58(value)
	if err != nil {
		return solana.Signature{}, err
	}
	var sig solana.Signature
	if len(decoded) != len(sig) {
		return solana.Signature{}, fmt.Errorf("signature must be %d bytes, got %d", len(sig), len(decoded))
	}
	copy(sig[:], decoded)
	return sig, nil
}
