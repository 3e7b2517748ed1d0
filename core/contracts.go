package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// SecretProvider seals values that leave the process, such as a code
// verifier written to a SQL store.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Clock returns the current time. Handshake expiry is evaluated against it.
type Clock func() time.Time

// Provider is a third party authorization server registered at startup.
// SubmitCode redeems an authorization code; the handshake carries the PKCE
// verifier that must accompany the redemption.
type Provider interface {
	Descriptor() ProviderDescriptor
	SubmitCode(ctx context.Context, code string, handshake Handshake) (ProviderTokens, error)
	OnConnected(ctx context.Context, tokens ProviderTokens) (ConnectionResult, error)
	OnRevoke(ctx context.Context, req RevokeRequest) (RevocationResult, error)
}

// BypassProvider is a provider with its own session or link token mechanism.
// Handshakes for these providers never reach the HandshakeStore, so the
// provider is responsible for the lifetime and single use of its link tokens.
type BypassProvider interface {
	Provider
	BuildAlternateLink(ctx context.Context, ownerID string) (RedirectInstruction, error)
	SubmitBypassCode(ctx context.Context, code string, extra map[string]any) (ProviderTokens, error)
}

type Registry interface {
	Resolve(providerType string) (RegisteredProvider, error)
	List() []RegisteredProvider
}

// HandshakeStore persists in-flight handshakes keyed by state. Consume must
// read and delete the record in one atomic step and return
// ErrHandshakeNotFound when no record exists.
type HandshakeStore interface {
	Create(ctx context.Context, handshake Handshake) error
	Consume(ctx context.Context, state string) (Handshake, error)
}

type HandshakePurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

type HandshakeLister interface {
	ListPending(ctx context.Context, ownerID string) ([]Handshake, error)
}
