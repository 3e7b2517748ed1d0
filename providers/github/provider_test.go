package github

import (
	"testing"
)

func TestNew_AppliesDefaultEndpointsAndScopes(t *testing.T) {
	provider, err := New(Config{ClientID: "client", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	descriptor := provider.Descriptor()
	if descriptor.Type != ProviderType {
		t.Fatalf("expected type %q, got %q", ProviderType, descriptor.Type)
	}
	if descriptor.AuthorizeURL != AuthURL {
		t.Fatalf("expected github authorize url, got %q", descriptor.AuthorizeURL)
	}
	if descriptor.ExtraParams["scope"] != "read:user repo" {
		t.Fatalf("expected default scopes, got %q", descriptor.ExtraParams["scope"])
	}
	if _, ok := descriptor.ExtraParams["allow_signup"]; ok {
		t.Fatalf("expected allow_signup to be omitted by default")
	}
}

func TestNew_AllowSignupParam(t *testing.T) {
	allow := false
	provider, err := New(Config{ClientID: "client", AllowSignup: &allow})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if got := provider.Descriptor().ExtraParams["allow_signup"]; got != "false" {
		t.Fatalf("expected allow_signup=false, got %q", got)
	}
}

func TestNew_RequiresClientID(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing client id to be rejected")
	}
}
