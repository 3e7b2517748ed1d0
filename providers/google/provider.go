package google

import (
	"time"

	"github.com/goliatone/go-oauth-client/providers"
	"golang.org/x/oauth2"
)

const (
	ProviderType = "google"
	AuthURL      = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL     = "https://oauth2.googleapis.com/token"
	RevokeURL    = "https://oauth2.googleapis.com/revoke"
)

type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURL         string
	AuthURL             string
	TokenURL            string
	RevokeURL           string
	Scopes              []string
	OfflineAccess       bool
	TokenRequestTimeout time.Duration
	ConnectionResolver  providers.ConnectionResolver
}

func DefaultConfig() Config {
	return Config{
		AuthURL:       AuthURL,
		TokenURL:      TokenURL,
		RevokeURL:     RevokeURL,
		Scopes:        []string{"openid", "email", "profile"},
		OfflineAccess: true,
	}
}

// New builds the Google provider. Offline access requests a refresh token
// and forces the consent prompt so Google returns one on every grant.
func New(cfg Config) (*providers.OAuth2Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = defaults.RevokeURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	extra := map[string]string{"include_granted_scopes": "true"}
	if cfg.OfflineAccess {
		extra["access_type"] = "offline"
		extra["prompt"] = "consent"
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		Type:                ProviderType,
		AuthURL:             cfg.AuthURL,
		TokenURL:            cfg.TokenURL,
		RevokeURL:           cfg.RevokeURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		RedirectURL:         cfg.RedirectURL,
		Scopes:              cfg.Scopes,
		ExtraParams:         extra,
		AuthStyle:           oauth2.AuthStyleInParams,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		ConnectionResolver:  cfg.ConnectionResolver,
	})
}
