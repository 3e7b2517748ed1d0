package oauthclient

import (
	"github.com/goliatone/go-oauth-client/core"
	"github.com/goliatone/go-oauth-client/identity"
	"github.com/goliatone/go-oauth-client/providers"
	"github.com/goliatone/go-oauth-client/providers/github"
	"github.com/goliatone/go-oauth-client/providers/google"
	"github.com/goliatone/go-oauth-client/providers/plaid"
)

func OAuth2Provider(cfg providers.OAuth2Config) (core.Provider, error) {
	return providers.NewOAuth2Provider(cfg)
}

func GitHubProvider(cfg github.Config) (core.Provider, error) {
	return github.New(cfg)
}

func GoogleProvider(cfg google.Config) (core.Provider, error) {
	return google.New(cfg)
}

// PlaidProvider builds the Plaid Link provider. Its handshakes bypass the
// handshake store.
func PlaidProvider(cfg plaid.Config) (core.BypassProvider, error) {
	return plaid.New(cfg)
}

// ProfileConnectionResolver resolves the provider account from the id_token
// or userinfo endpoint. Pass it as ConnectionResolver to the OAuth2 presets.
func ProfileConnectionResolver(cfg identity.Config) providers.ConnectionResolver {
	return identity.NewResolver(cfg).ConnectionResolver()
}
