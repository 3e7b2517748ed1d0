package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type testProvider struct {
	providerType string
	authorizeURL string
	extraParams  map[string]string

	submitErr    error
	connectErr   error
	revokeErr    error
	submitCalls  atomic.Int32
	revokeCalls  atomic.Int32
	mu           sync.Mutex
	lastCode     string
	lastVerifier string
}

func newTestProvider(providerType string) *testProvider {
	return &testProvider{
		providerType: providerType,
		authorizeURL: "https://auth.example.com/oauth/authorize",
		extraParams: map[string]string{
			"client_id": "client_123",
			"scope":     "read write",
		},
	}
}

func (p *testProvider) Descriptor() ProviderDescriptor {
	return ProviderDescriptor{
		Type:         p.providerType,
		AuthorizeURL: p.authorizeURL,
		ExtraParams:  copyStringMap(p.extraParams),
	}
}

func (p *testProvider) SubmitCode(_ context.Context, code string, handshake Handshake) (ProviderTokens, error) {
	p.submitCalls.Add(1)
	p.mu.Lock()
	p.lastCode = code
	p.lastVerifier = handshake.CodeVerifier
	p.mu.Unlock()
	if p.submitErr != nil {
		return ProviderTokens{}, p.submitErr
	}
	return ProviderTokens{
		AccessToken: "access_" + code,
		TokenType:   "bearer",
		Raw:         map[string]any{"owner_id": handshake.OwnerID},
	}, nil
}

func (p *testProvider) OnConnected(_ context.Context, tokens ProviderTokens) (ConnectionResult, error) {
	if p.connectErr != nil {
		return ConnectionResult{}, p.connectErr
	}
	return ConnectionResult{
		ProviderType:      p.providerType,
		ExternalAccountID: "acct_" + tokens.AccessToken,
		Metadata:          copyAnyMap(tokens.Raw),
	}, nil
}

func (p *testProvider) OnRevoke(context.Context, RevokeRequest) (RevocationResult, error) {
	p.revokeCalls.Add(1)
	if p.revokeErr != nil {
		return RevocationResult{}, p.revokeErr
	}
	return RevocationResult{Revoked: true}, nil
}

type testBypassProvider struct {
	*testProvider
	lastExtra map[string]any
}

func newTestBypassProvider(providerType string) *testBypassProvider {
	provider := newTestProvider(providerType)
	provider.authorizeURL = ""
	return &testBypassProvider{testProvider: provider}
}

func (p *testBypassProvider) BuildAlternateLink(_ context.Context, ownerID string) (RedirectInstruction, error) {
	return RedirectInstruction{
		Kind:      InstructionKindLink,
		LinkToken: "link-" + ownerID,
	}, nil
}

func (p *testBypassProvider) SubmitBypassCode(_ context.Context, code string, extra map[string]any) (ProviderTokens, error) {
	p.mu.Lock()
	p.lastExtra = copyAnyMap(extra)
	p.mu.Unlock()
	if p.submitErr != nil {
		return ProviderTokens{}, p.submitErr
	}
	return ProviderTokens{AccessToken: "bypass_" + code, Raw: copyAnyMap(extra)}, nil
}

// staticRegistry resolves descriptors as given, without registration checks.
type staticRegistry map[string]RegisteredProvider

func (r staticRegistry) Resolve(providerType string) (RegisteredProvider, error) {
	registered, ok := r[providerType]
	if !ok {
		return RegisteredProvider{}, ErrProviderNotRegistered
	}
	return registered, nil
}

func (r staticRegistry) List() []RegisteredProvider {
	out := make([]RegisteredProvider, 0, len(r))
	for _, registered := range r {
		out = append(out, registered)
	}
	return out
}

// recordingStore wraps a memory store and counts calls.
type recordingStore struct {
	inner        *MemoryHandshakeStore
	createErr    error
	consumeErr   error
	createCalls  atomic.Int32
	consumeCalls atomic.Int32
}

func newRecordingStore(clock Clock) *recordingStore {
	return &recordingStore{inner: NewMemoryHandshakeStore().WithClock(clock)}
}

func (s *recordingStore) Create(ctx context.Context, handshake Handshake) error {
	s.createCalls.Add(1)
	if s.createErr != nil {
		return s.createErr
	}
	return s.inner.Create(ctx, handshake)
}

func (s *recordingStore) Consume(ctx context.Context, state string) (Handshake, error) {
	s.consumeCalls.Add(1)
	if s.consumeErr != nil {
		return Handshake{}, s.consumeErr
	}
	return s.inner.Consume(ctx, state)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("entropy unavailable")
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func newTestService(clock *manualClock, store HandshakeStore, providers ...Provider) (*Service, error) {
	opts := []Option{WithProviders(providers...), WithClock(clock.Now)}
	if store != nil {
		opts = append(opts, WithHandshakeStore(store))
	}
	return NewService(DefaultConfig(), opts...)
}
