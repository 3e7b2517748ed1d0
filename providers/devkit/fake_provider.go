package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-oauth-client/core"
)

type ExchangeScript struct {
	Tokens core.ProviderTokens
	Err    error
}

// FakeProvider is a scripted authorization code provider that records every
// redemption it receives.
type FakeProvider struct {
	mu           sync.Mutex
	providerType string
	authorizeURL string
	scripts      []ExchangeScript
	submissions  []Submission
	revocations  []core.RevokeRequest
	revokeErr    error
}

type Submission struct {
	Code      string
	Handshake core.Handshake
}

func NewFakeProvider(providerType string, scripts ...ExchangeScript) *FakeProvider {
	providerType = strings.TrimSpace(strings.ToLower(providerType))
	return &FakeProvider{
		providerType: providerType,
		authorizeURL: "https://" + providerType + ".example.test/oauth/authorize",
		scripts:      append([]ExchangeScript(nil), scripts...),
	}
}

func (p *FakeProvider) WithRevokeError(err error) *FakeProvider {
	p.mu.Lock()
	p.revokeErr = err
	p.mu.Unlock()
	return p
}

func (p *FakeProvider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		Type:         p.providerType,
		AuthorizeURL: p.authorizeURL,
		ExtraParams:  map[string]string{"client_id": "devkit_client"},
	}
}

func (p *FakeProvider) SubmitCode(_ context.Context, code string, handshake core.Handshake) (core.ProviderTokens, error) {
	if p == nil {
		return core.ProviderTokens{}, fmt.Errorf("devkit: fake provider is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.submissions = append(p.submissions, Submission{Code: code, Handshake: handshake})
	index := len(p.submissions) - 1
	if index < len(p.scripts) {
		return p.scripts[index].Tokens, p.scripts[index].Err
	}
	if len(p.scripts) > 0 {
		last := p.scripts[len(p.scripts)-1]
		return last.Tokens, last.Err
	}
	return core.ProviderTokens{
		AccessToken: "devkit_access_" + code,
		TokenType:   "bearer",
		Raw:         map[string]any{"owner_id": handshake.OwnerID},
	}, nil
}

func (p *FakeProvider) OnConnected(_ context.Context, tokens core.ProviderTokens) (core.ConnectionResult, error) {
	return core.ConnectionResult{
		ProviderType:      p.providerType,
		ExternalAccountID: tokens.AccessToken,
		Metadata:          map[string]any{"token_type": tokens.TokenType},
	}, nil
}

func (p *FakeProvider) OnRevoke(_ context.Context, req core.RevokeRequest) (core.RevocationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revocations = append(p.revocations, req)
	if p.revokeErr != nil {
		return core.RevocationResult{}, p.revokeErr
	}
	return core.RevocationResult{ProviderType: p.providerType, Revoked: true}, nil
}

func (p *FakeProvider) Submissions() []Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Submission(nil), p.submissions...)
}

func (p *FakeProvider) Revocations() []core.RevokeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.RevokeRequest(nil), p.revocations...)
}

var _ core.Provider = (*FakeProvider)(nil)
