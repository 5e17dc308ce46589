package validator

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

func TestDecodePayload(t *testing.T) {
	decodedHex, err := DecodePayload("010203", PayloadEncodingHex)
	if err != nil {
		t.Fatalf("decode hex failed: %v", err)
	}
	if !bytes.Equal(decodedHex, []byte{1, 2, 3}) {
		t.Fatalf("unexpected hex decode %v", decodedHex)
	}

	decodedB64, err := DecodePayload("AQID", PayloadEncodingBase64)
	if err != nil {
		t.Fatalf("decode base64 failed: %v", err)
	}
	if !bytes.Equal(decodedB64, []byte{1, 2, 3}) {
		t.Fatalf("unexpected base64 decode %v", decodedB64)
	}

	if _, err := DecodePayload("zzz", PayloadEncodingHex); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if _, err := DecodePayload("", PayloadEncodingHex); err == nil {
		t.Fatal("expected error for empty payload")
	}

	if _, err := NormalizeEncoding("HEX"); err != nil {
		t.Fatalf("normalize uppercase failed: %v", err)
	}
	if _, err := NormalizeEncoding("unknown"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestNormalizeDisplay(t *testing.T) {
	cases := map[string]DisplayHint{
		"":      DisplayHex,
		"hex":   DisplayHex,
		"UTF8":  DisplayUTF8,
		"utf-8": DisplayUTF8,
	}
	for raw, want := range cases {
		got, err := NormalizeDisplay(raw)
		if err != nil {
			t.Fatalf("NormalizeDisplay(%q) failed: %v", raw, err)
		}
		if got != want {
			t.Fatalf("NormalizeDisplay(%q)=%s, want %s", raw, got, want)
		}
	}
	if _, err := NormalizeDisplay("markdown"); err == nil {
		t.Fatal("expected error for unknown display")
	}
}

func TestDecodePublicKeyAndSignature(t *testing.T) {
	key := solana.NewWallet().PublicKey()
	got, err := DecodePublicKey(key.String())
	if err != nil {
		t.Fatalf("decode public key failed: %v", err)
	}
	if !got.Equals(key) {
		t.Fatalf("public key mismatch: %s != %s", got, key)
	}
	if _, err := DecodePublicKey(base58.Encode([]byte{1, 2, 3})); err == nil {
		t.Fatal("expected length error for short key")
	}
	if _, err := DecodePublicKey("0OIl"); err == nil {
		t.Fatal("expected error for invalid alphabet")
	}

	raw := bytes.Repeat([]byte{7}, 64)
	sig, err := DecodeSignature(EncodeBase58(raw))
	if err != nil {
		t.Fatalf("decode signature failed: %v", err)
	}
	if !bytes.Equal(sig[:], raw) {
		t.Fatal("signature bytes mismatch")
	}
	if _, err := DecodeSignature(EncodeBase58(raw[:10])); err == nil {
		t.Fatal("expected length error for short signature")
	}
}
