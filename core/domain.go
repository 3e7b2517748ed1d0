package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type InstructionKind string

const (
	InstructionKindRedirect InstructionKind = "redirect"
	InstructionKindLink     InstructionKind = "link"
)

type ProviderDescriptor struct {
	Type         string
	AuthorizeURL string
	ExtraParams  map[string]string
}

func (d ProviderDescriptor) Validate(kind ProviderKind) error {
	if strings.TrimSpace(d.Type) == "" {
		return fmt.Errorf("core: provider type is required")
	}
	if kind == ProviderKindBypass {
		return nil
	}
	parsed, err := url.Parse(strings.TrimSpace(d.AuthorizeURL))
	if err != nil {
		return fmt.Errorf("core: provider %q authorize url is invalid: %w", d.Type, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("core: provider %q authorize url must be absolute", d.Type)
	}
	return nil
}

// Handshake is an in-flight authorization attempt. CodeVerifier never leaves
// the server.
type Handshake struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
	ProviderType  string
	OwnerID       string
	CreatedAt     time.Time
}

// Expired reports whether the handshake is older than ttl at now. A handshake
// exactly ttl old is still valid.
func (h Handshake) Expired(now time.Time, ttl time.Duration) bool {
	if h.CreatedAt.IsZero() {
		return true
	}
	return now.Sub(h.CreatedAt) > ttl
}

type HandshakeSummary struct {
	ProviderType string
	OwnerID      string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Expired      bool
}

type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scopes       []string
	Raw          map[string]any
}

// Empty reports whether no credential was issued.
func (t ProviderTokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// ConnectionResult is what Exchange hands back. Tokens carries the
// credentials redeemed for the connection; callers store them and pass
// Tokens.AccessToken to Revoke. They are never logged.
type ConnectionResult struct {
	ProviderType      string
	ExternalAccountID string
	Metadata          map[string]any
	Tokens            ProviderTokens
}

type RevocationResult struct {
	ProviderType string
	Revoked      bool
	Metadata     map[string]any
}

type RedirectInstruction struct {
	Kind      InstructionKind
	URL       string
	State     string
	LinkToken string
	ExpiresAt *time.Time
}

type InitiateRequest struct {
	ProviderType string
	OwnerID      string
}

type ExchangeRequest struct {
	State        string
	Code         string
	ProviderType string
	Extra        map[string]any
}

type RevokeRequest struct {
	ProviderType string
	OwnerID      string
	Token        string
	Extra        map[string]any
}

type PurgeResult struct {
	Before time.Time
	Purged int
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
