package apierrors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument:      400,
		CodeNotConnected:         409,
		CodeTransportUnavailable: 503,
		CodeRemote:               502,
		CodeDisconnected:         503,
		Code("UNKNOWN"):          500,
	}

	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("HTTPStatus(%s)=%d, want %d", code, got, want)
		}
	}
}

func TestGRPCStatus(t *testing.T) {
	cases := map[Code]codes.Code{
		CodeInvalidArgument:      codes.InvalidArgument,
		CodeNotConnected:         codes.FailedPrecondition,
		CodeTransportUnavailable: codes.Unavailable,
		CodeRemote:               codes.Aborted,
		Code("UNKNOWN"):          codes.Internal,
	}

	for code, want := range cases {
		if got := GRPCStatus(code); got != want {
			t.Fatalf("GRPCStatus(%s)=%s, want %s", code, got, want)
		}
	}
}

func TestSentinelMatchesByCode(t *testing.T) {
	err := fmt.Errorf("sign: %w", New(CodeNotConnected, "wallet not connected"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatal("expected errors.Is to match NotConnected sentinel")
	}
	if errors.Is(err, ErrDisconnected) {
		t.Fatal("NotConnected must not match Disconnected")
	}
	if errors.Is(New(CodeRemote, "a"), New(CodeRemote, "a")) {
		t.Fatal("errors with messages compare by identity")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("popup blocked")
	err := Wrap(CodeTransportUnavailable, "open provider window", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Fatal("expected code match")
	}
	if err.Error() != "open provider window: popup blocked" {
		t.Fatalf("unexpected Error(): %s", err.Error())
	}
	if New(CodeRemote, "").Error() != string(CodeRemote) {
		t.Fatal("empty message should fall back to code")
	}
}

func TestFromError(t *testing.T) {
	original := New(CodeRemote, "user rejected")
	wrapped := fmt.Errorf("wrap: %w", original)
	if apiErr, ok := FromError(wrapped); !ok {
		t.Fatal("expected to unwrap api error")
	} else if apiErr.Code != CodeRemote || apiErr.Message != "user rejected" {
		t.Fatalf("unexpected error %v", apiErr)
	}
	if _, ok := FromError(fmt.Errorf("other")); ok {
		t.Fatal("should not unwrap plain error")
	}
	if !HasCode(wrapped, CodeRemote) || HasCode(wrapped, CodeInvalidArgument) {
		t.Fatal("HasCode mismatch")
	}
}
