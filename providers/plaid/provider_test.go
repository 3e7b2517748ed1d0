package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-oauth-client/core"
)

func newPlaidServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if payload["client_id"] != "client" || payload["secret"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error_type":    "INVALID_INPUT",
				"error_code":    "INVALID_API_KEYS",
				"error_message": "invalid client_id or secret provided",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/link/token/create":
			user, _ := payload["user"].(map[string]any)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"link_token": "link-sandbox-" + user["client_user_id"].(string),
				"expiration": "2026-03-01T16:00:00Z",
				"request_id": "req_link",
			})
		case "/item/public_token/exchange":
			if payload["public_token"] != "public-sandbox-1" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error_type":    "INVALID_INPUT",
					"error_code":    "INVALID_PUBLIC_TOKEN",
					"error_message": "provided public token is in an invalid format",
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access-sandbox-1",
				"item_id":      "item_1",
				"request_id":   "req_exchange",
			})
		case "/item/remove":
			_ = json.NewEncoder(w).Encode(map[string]any{"request_id": "req_remove"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestProvider(t *testing.T, server *httptest.Server, secret string) *Provider {
	t.Helper()
	provider, err := New(Config{
		ClientID:   "client",
		Secret:     secret,
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestProvider_BuildAlternateLink(t *testing.T) {
	server := newPlaidServer(t)
	defer server.Close()
	provider := newTestProvider(t, server, "secret")

	instruction, err := provider.BuildAlternateLink(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("build link: %v", err)
	}
	if instruction.Kind != core.InstructionKindLink {
		t.Fatalf("expected link instruction, got %q", instruction.Kind)
	}
	if instruction.LinkToken != "link-sandbox-user_1" {
		t.Fatalf("unexpected link token %q", instruction.LinkToken)
	}
	if instruction.ExpiresAt == nil || instruction.ExpiresAt.Hour() != 16 {
		t.Fatalf("expected parsed expiration, got %v", instruction.ExpiresAt)
	}

	if _, err := provider.BuildAlternateLink(context.Background(), " "); err == nil {
		t.Fatalf("expected owner id to be required")
	}
}

func TestProvider_SubmitBypassCodeAndConnect(t *testing.T) {
	server := newPlaidServer(t)
	defer server.Close()
	provider := newTestProvider(t, server, "secret")
	ctx := context.Background()

	if _, err := provider.SubmitBypassCode(ctx, "public-sandbox-1", nil); err == nil {
		t.Fatalf("expected account id to be required")
	}

	tokens, err := provider.SubmitBypassCode(ctx, "public-sandbox-1", map[string]any{ExtraAccountID: "acc_1"})
	if err != nil {
		t.Fatalf("submit bypass code: %v", err)
	}
	if tokens.AccessToken != "access-sandbox-1" {
		t.Fatalf("unexpected access token %q", tokens.AccessToken)
	}
	connection, err := provider.OnConnected(ctx, tokens)
	if err != nil {
		t.Fatalf("on connected: %v", err)
	}
	if connection.ExternalAccountID != "item_1" || connection.Metadata[ExtraAccountID] != "acc_1" {
		t.Fatalf("unexpected connection %#v", connection)
	}

	_, err = provider.SubmitBypassCode(ctx, "bad-token", map[string]any{ExtraAccountID: "acc_1"})
	var apiErr apiError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode != "INVALID_PUBLIC_TOKEN" {
		t.Fatalf("expected plaid api error, got %v", err)
	}
}

func TestProvider_SubmitCodeUnsupported(t *testing.T) {
	server := newPlaidServer(t)
	defer server.Close()
	provider := newTestProvider(t, server, "secret")
	if _, err := provider.SubmitCode(context.Background(), "code", core.Handshake{}); err == nil {
		t.Fatalf("expected authorization codes to be rejected")
	}
}

func TestProvider_OnRevoke(t *testing.T) {
	server := newPlaidServer(t)
	defer server.Close()
	provider := newTestProvider(t, server, "secret")
	ctx := context.Background()

	local, err := provider.OnRevoke(ctx, core.RevokeRequest{})
	if err != nil {
		t.Fatalf("local revoke: %v", err)
	}
	if local.Metadata["remote"] != false {
		t.Fatalf("expected local revocation, got %#v", local)
	}
	remote, err := provider.OnRevoke(ctx, core.RevokeRequest{Token: "access-sandbox-1"})
	if err != nil {
		t.Fatalf("remote revoke: %v", err)
	}
	if remote.Metadata["request_id"] != "req_remove" {
		t.Fatalf("expected item remove request id, got %#v", remote.Metadata)
	}
}

func TestProvider_InvalidCredentialsSurfaceAPIError(t *testing.T) {
	server := newPlaidServer(t)
	defer server.Close()
	provider := newTestProvider(t, server, "wrong")
	_, err := provider.BuildAlternateLink(context.Background(), "user_1")
	var apiErr apiError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode != "INVALID_API_KEYS" {
		t.Fatalf("expected invalid api keys error, got %v", err)
	}
}

func TestProvider_ThroughServiceNeverTouchesStore(t *testing.T) {
	server := newPlaidServer(t)
	defer server.Close()
	provider := newTestProvider(t, server, "secret")
	store := core.NewMemoryHandshakeStore()
	svc, err := core.NewService(core.DefaultConfig(), core.WithProviders(provider), core.WithHandshakeStore(store))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	instruction, err := svc.Initiate(ctx, core.InitiateRequest{ProviderType: ProviderType, OwnerID: "user_1"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if instruction.Kind != core.InstructionKindLink || instruction.State != "" {
		t.Fatalf("expected link instruction without state, got %#v", instruction)
	}
	result, err := svc.Exchange(ctx, core.ExchangeRequest{
		Code:         "public-sandbox-1",
		ProviderType: ProviderType,
		Extra:        map[string]any{ExtraAccountID: "acc_1"},
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if result.ExternalAccountID != "item_1" {
		t.Fatalf("unexpected result %#v", result)
	}
	if result.Tokens.AccessToken != "access-sandbox-1" {
		t.Fatalf("expected item access token on the result, got %q", result.Tokens.AccessToken)
	}
	if store.Len() != 0 {
		t.Fatalf("expected store to stay empty, got %d", store.Len())
	}
}
