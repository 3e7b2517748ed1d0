package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestOAuthErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := oauthErrorMapper(ErrHandshakeNotFound)
	if mapped.TextCode != OAuthErrorStateInvalid {
		t.Fatalf("expected state invalid text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", mapped.Code)
	}

	mapped = oauthErrorMapper(stderrors.New("core: handshake state is required"))
	if mapped.TextCode != OAuthErrorBadInput {
		t.Fatalf("expected bad input code, got %q", mapped.TextCode)
	}
	if mapped.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input category, got %q", mapped.Category)
	}

	mapped = oauthErrorMapper(stderrors.New("something odd happened"))
	if mapped.TextCode == "" || mapped.Code == 0 {
		t.Fatalf("expected fallback envelope, got %#v", mapped)
	}
}

func TestNewKindError_CarriesKindAndCause(t *testing.T) {
	cause := stderrors.New("token endpoint returned 500")
	err := newKindError(nil, ErrorKindProviderExchange, "", "provider failed", cause, map[string]any{"provider_type": "github"})

	if KindOf(err) != ErrorKindProviderExchange {
		t.Fatalf("expected provider exchange kind, got %q", KindOf(err))
	}
	if !IsKind(err, ErrorKindProviderExchange) || IsKind(err, ErrorKindInvalidState) {
		t.Fatalf("unexpected IsKind result")
	}
	if err.TextCode != OAuthErrorProviderExchangeFailed {
		t.Fatalf("expected default text code for kind, got %q", err.TextCode)
	}
	if err.Category != goerrors.CategoryExternal || err.Code != http.StatusBadGateway {
		t.Fatalf("unexpected category/code %q/%d", err.Category, err.Code)
	}
	if err.Message != "provider failed" {
		t.Fatalf("unexpected message %q", err.Message)
	}
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected error to wrap its cause")
	}
}

func TestKindOf_ForeignErrors(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatalf("expected empty kind for nil")
	}
	if KindOf(stderrors.New("plain")) != "" {
		t.Fatalf("expected empty kind for plain errors")
	}
	if KindOf(goerrors.New("rich", goerrors.CategoryInternal)) != "" {
		t.Fatalf("expected empty kind for errors without kind metadata")
	}
}

func TestKindTextCodes(t *testing.T) {
	cases := map[ErrorKind]string{
		ErrorKindUnknownProvider:  OAuthErrorUnknownProvider,
		ErrorKindProviderDisabled: OAuthErrorProviderDisabled,
		ErrorKindPersistence:      OAuthErrorPersistenceFailed,
		ErrorKindInvalidState:     OAuthErrorStateInvalid,
		ErrorKindExpiredState:     OAuthErrorStateExpired,
		ErrorKindProviderExchange: OAuthErrorProviderExchangeFailed,
	}
	for kind, want := range cases {
		err := newKindError(goerrors.New, kind, "", "message", nil, nil)
		if err.TextCode != want {
			t.Fatalf("kind %s: expected %q, got %q", kind, want, err.TextCode)
		}
		if err.Code == 0 {
			t.Fatalf("kind %s: expected http status", kind)
		}
	}
}
