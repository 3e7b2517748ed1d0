package oauthclient

import "github.com/goliatone/go-oauth-client/core"

type Config = core.Config

type HandshakeConfig = core.HandshakeConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Provider = core.Provider
type BypassProvider = core.BypassProvider
type HandshakeStore = core.HandshakeStore
type HandshakePurger = core.HandshakePurger
type HandshakeLister = core.HandshakeLister
type MetricsRecorder = core.MetricsRecorder
type Clock = core.Clock
type SecretProvider = core.SecretProvider

type InitiateRequest = core.InitiateRequest
type ExchangeRequest = core.ExchangeRequest
type RevokeRequest = core.RevokeRequest

type RedirectInstruction = core.RedirectInstruction
type ConnectionResult = core.ConnectionResult
type RevocationResult = core.RevocationResult
type PurgeResult = core.PurgeResult
type HandshakeSummary = core.HandshakeSummary

type ErrorKind = core.ErrorKind

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithRegistry        = core.WithRegistry
	WithProviders       = core.WithProviders
	WithHandshakeStore  = core.WithHandshakeStore
	WithStateGenerator  = core.WithStateGenerator
	WithEntropySource   = core.WithEntropySource
	WithClock           = core.WithClock
)

var (
	KindOf = core.KindOf
	IsKind = core.IsKind
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

// NewMemoryHandshakeStore returns the in-process store used when no store
// option is given.
func NewMemoryHandshakeStore(cfg Config) *core.MemoryHandshakeStore {
	return core.NewMemoryHandshakeStoreWithLimits(cfg.Handshake.MaxEntries)
}
