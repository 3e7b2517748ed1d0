package google

import (
	"testing"
)

func TestNew_OfflineAccessParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClientID = "client"
	cfg.RedirectURL = "https://app.example/oauth/google/callback"
	provider, err := New(cfg)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	params := provider.Descriptor().ExtraParams
	for key, want := range map[string]string{
		"access_type":            "offline",
		"prompt":                 "consent",
		"include_granted_scopes": "true",
		"scope":                  "email openid profile",
		"redirect_uri":           "https://app.example/oauth/google/callback",
	} {
		if params[key] != want {
			t.Fatalf("expected %s=%q, got %q", key, want, params[key])
		}
	}
}

func TestNew_OnlineAccessOmitsConsentPrompt(t *testing.T) {
	provider, err := New(Config{ClientID: "client", Scopes: []string{"email"}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	params := provider.Descriptor().ExtraParams
	if _, ok := params["access_type"]; ok {
		t.Fatalf("expected access_type to be omitted")
	}
	if _, ok := params["prompt"]; ok {
		t.Fatalf("expected prompt to be omitted")
	}
	if params["scope"] != "email" {
		t.Fatalf("expected custom scope, got %q", params["scope"])
	}
}
