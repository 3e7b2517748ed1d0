package github

import (
	"time"

	"github.com/goliatone/go-oauth-client/providers"
	"golang.org/x/oauth2"
)

const (
	ProviderType = "github"
	AuthURL      = "https://github.com/login/oauth/authorize"
	TokenURL     = "https://github.com/login/oauth/access_token"
)

type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURL         string
	AuthURL             string
	TokenURL            string
	Scopes              []string
	AllowSignup         *bool
	TokenRequestTimeout time.Duration
	ConnectionResolver  providers.ConnectionResolver
}

func DefaultConfig() Config {
	return Config{
		AuthURL:  AuthURL,
		TokenURL: TokenURL,
		Scopes:   []string{"repo", "read:user"},
	}
}

func New(cfg Config) (*providers.OAuth2Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	extra := map[string]string{}
	if cfg.AllowSignup != nil {
		if *cfg.AllowSignup {
			extra["allow_signup"] = "true"
		} else {
			extra["allow_signup"] = "false"
		}
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		Type:                ProviderType,
		AuthURL:             cfg.AuthURL,
		TokenURL:            cfg.TokenURL,
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
