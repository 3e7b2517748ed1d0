package core

import (
	"fmt"
	"strings"
	"time"
)

type HandshakeConfig struct {
	TTLSeconds     int `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
	VerifierLength int `koanf:"verifier_length" mapstructure:"verifier_length"`
	MaxEntries     int `koanf:"max_entries" mapstructure:"max_entries"`
}

func (c HandshakeConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return DefaultHandshakeTTL
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

type Config struct {
	ServiceName      string          `koanf:"service_name" mapstructure:"service_name"`
	Handshake        HandshakeConfig `koanf:"handshake" mapstructure:"handshake"`
	EnabledProviders []string        `koanf:"enabled_providers" mapstructure:"enabled_providers"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "oauth",
		Handshake: HandshakeConfig{
			TTLSeconds:     int(DefaultHandshakeTTL / time.Second),
			VerifierLength: DefaultVerifierLength,
			MaxEntries:     DefaultHandshakeMaxEntries,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Handshake.TTLSeconds < 0 {
		return fmt.Errorf("core: handshake.ttl_seconds must not be negative")
	}
	if length := c.Handshake.VerifierLength; length != 0 &&
		(length < MinVerifierLength || length > MaxVerifierLength) {
		return fmt.Errorf(
			"core: handshake.verifier_length must be between %d and %d",
			MinVerifierLength,
			MaxVerifierLength,
		)
	}
	if c.Handshake.MaxEntries < 0 {
		return fmt.Errorf("core: handshake.max_entries must not be negative")
	}
	for _, providerType := range c.EnabledProviders {
		if strings.TrimSpace(providerType) == "" {
			return fmt.Errorf("core: enabled_providers entries must not be empty")
		}
	}
	return nil
}

// ProviderEnabled reports whether providerType is in the enabled set. An
// empty set enables every registered provider.
func (c Config) ProviderEnabled(providerType string) bool {
	if len(c.EnabledProviders) == 0 {
		return true
	}
	providerType = strings.TrimSpace(providerType)
	for _, enabled := range c.EnabledProviders {
		if strings.TrimSpace(enabled) == providerType {
			return true
		}
	}
	return false
}
