package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-oauth-client/core"
	"golang.org/x/oauth2"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxRevokeResponseBodyBytes = 1 << 16
)

// ConnectionResolver turns redeemed tokens into a connection, typically by
// calling the provider's profile endpoint.
type ConnectionResolver func(ctx context.Context, providerType string, tokens core.ProviderTokens) (core.ConnectionResult, error)

type OAuth2Config struct {
	Type                string             `validate:"required"`
	AuthURL             string             `validate:"required,url"`
	TokenURL            string             `validate:"required,url"`
	RevokeURL           string             `validate:"omitempty,url"`
	ClientID            string             `validate:"required"`
	ClientSecret        string             `validate:"-"`
	RedirectURL         string             `validate:"omitempty,url"`
	Scopes              []string           `validate:"dive,required"`
	ExtraParams         map[string]string  `validate:"-"`
	AuthStyle           oauth2.AuthStyle   `validate:"-"`
	TokenRequestTimeout time.Duration      `validate:"-"`
	HTTPClient          *http.Client       `validate:"-"`
	ConnectionResolver  ConnectionResolver `validate:"-"`
}

func (c OAuth2Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("providers: invalid oauth2 config for provider %q: %w", c.Type, err)
	}
	return nil
}

type OAuth2Provider struct {
	cfg    OAuth2Config
	oauth  *oauth2.Config
	client *http.Client
}

func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	cfg.Type = strings.TrimSpace(strings.ToLower(cfg.Type))
	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.RevokeURL = strings.TrimSpace(cfg.RevokeURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURL = strings.TrimSpace(cfg.RedirectURL)
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	cfg.ExtraParams = cloneParams(cfg.ExtraParams)

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &OAuth2Provider{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), cfg.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: cfg.AuthStyle,
			},
		},
		client: client,
	}, nil
}

func (p *OAuth2Provider) Descriptor() core.ProviderDescriptor {
	if p == nil {
		return core.ProviderDescriptor{}
	}
	params := cloneParams(p.cfg.ExtraParams)
	params["client_id"] = p.cfg.ClientID
	if p.cfg.RedirectURL != "" {
		params["redirect_uri"] = p.cfg.RedirectURL
	}
	if len(p.cfg.Scopes) > 0 {
		params["scope"] = strings.Join(p.cfg.Scopes, " ")
	}
	return core.ProviderDescriptor{
		Type:         p.cfg.Type,
		AuthorizeURL: p.cfg.AuthURL,
		ExtraParams:  params,
	}
}

func (p *OAuth2Provider) SubmitCode(ctx context.Context, code string, handshake core.Handshake) (core.ProviderTokens, error) {
	if p == nil {
		return core.ProviderTokens{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.ProviderTokens{}, fmt.Errorf("providers: auth code is required")
	}
	if strings.TrimSpace(handshake.CodeVerifier) == "" {
		return core.ProviderTokens{}, fmt.Errorf("providers: code verifier is required for provider %q", p.cfg.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(handshake.CodeVerifier))
	if err != nil {
		return core.ProviderTokens{}, fmt.Errorf("providers: %s token exchange failed: %w", p.cfg.Type, err)
	}
	return tokensFromOAuth2(token), nil
}

func (p *OAuth2Provider) OnConnected(ctx context.Context, tokens core.ProviderTokens) (core.ConnectionResult, error) {
	if p == nil {
		return core.ConnectionResult{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if p.cfg.ConnectionResolver != nil {
		return p.cfg.ConnectionResolver(ctx, p.cfg.Type, tokens)
	}
	metadata := map[string]any{
		"token_type": tokens.TokenType,
		"scopes":     append([]string(nil), tokens.Scopes...),
	}
	if tokens.ExpiresAt != nil {
		metadata["expires_at"] = tokens.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return core.ConnectionResult{
		ProviderType: p.cfg.Type,
		Metadata:     metadata,
		Tokens:       tokens,
	}, nil
}

// OnRevoke posts an RFC 7009 revocation request when the provider has a
// revocation endpoint and the request carries a token. Otherwise the
// connection is only revoked locally.
func (p *OAuth2Provider) OnRevoke(ctx context.Context, req core.RevokeRequest) (core.RevocationResult, error) {
	if p == nil {
		return core.RevocationResult{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	token := strings.TrimSpace(req.Token)
	if p.cfg.RevokeURL == "" || token == "" {
		return core.RevocationResult{
			ProviderType: p.cfg.Type,
			Revoked:      true,
			Metadata:     map[string]any{"remote": false},
		}, nil
	}

	form := url.Values{}
	form.Set("token", token)
	if hint := strings.TrimSpace(readString(req.Extra, "token_type_hint")); hint != "" {
		form.Set("token_type_hint", hint)
	}
	if p.cfg.AuthStyle == oauth2.AuthStyleInParams || p.cfg.ClientSecret == "" {
		form.Set("client_id", p.cfg.ClientID)
		if p.cfg.ClientSecret != "" {
			form.Set("client_secret", p.cfg.ClientSecret)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return core.RevocationResult{}, fmt.Errorf("providers: build revoke request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if p.cfg.AuthStyle != oauth2.AuthStyleInParams && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(url.QueryEscape(p.cfg.ClientID), url.QueryEscape(p.cfg.ClientSecret))
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return core.RevocationResult{}, fmt.Errorf("providers: %s revoke request failed: %w", p.cfg.Type, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRevokeResponseBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.RevocationResult{}, fmt.Errorf(
			"providers: %s revoke request returned status %d: %s",
			p.cfg.Type,
			resp.StatusCode,
			strings.TrimSpace(string(body)),
		)
	}
	return core.RevocationResult{
		ProviderType: p.cfg.Type,
		Revoked:      true,
		Metadata: map[string]any{
			"remote":      true,
			"status_code": resp.StatusCode,
		},
	}, nil
}

func tokensFromOAuth2(token *oauth2.Token) core.ProviderTokens {
	if token == nil {
		return core.ProviderTokens{Raw: map[string]any{}}
	}
	tokens := core.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    normalizeTokenType(token.Type()),
		Raw:          map[string]any{},
	}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry.UTC()
		tokens.ExpiresAt = &expiresAt
	}
	if scope, ok := token.Extra("scope").(string); ok {
		tokens.Scopes = parseScopeList(scope)
	}
	for _, key := range []string{"id_token", "scope", "account_id", "user_id"} {
		if value := token.Extra(key); value != nil {
			tokens.Raw[key] = value
		}
	}
	return tokens
}

func normalizeTokenType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "bearer"
	}
	return value
}

func parseScopeList(value string) []string {
	value = strings.ReplaceAll(value, ",", " ")
	return normalizeScopes(strings.Fields(value))
}

func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(input))
	out := make([]string, 0, len(input))
	for _, scope := range input {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

func cloneParams(input map[string]string) map[string]string {
	out := make(map[string]string, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func readString(metadata map[string]any, key string) string {
	if len(metadata) == 0 {
		return ""
	}
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

var _ core.Provider = (*OAuth2Provider)(nil)
