package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-oauth-client/core"
)

// KeyRotationWindow gates when a key version may seal new values. Opening is
// not gated, so values sealed inside the window stay readable after it.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

type ringKey struct {
	provider *AppKeySecretProvider
	window   KeyRotationWindow
}

// KeyRing seals with the most recently added key whose window is open and
// opens with whichever key the envelope names.
type KeyRing struct {
	mu   sync.RWMutex
	keys []ringKey
	now  func() time.Time
}

type KeyRingOption func(*KeyRing)

func WithKeyRingClock(now func() time.Time) KeyRingOption {
	return func(r *KeyRing) {
		if now != nil {
			r.now = now
		}
	}
}

func NewKeyRing(opts ...KeyRingOption) *KeyRing {
	ring := &KeyRing{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(ring)
		}
	}
	return ring
}

func (r *KeyRing) Add(provider *AppKeySecretProvider, window KeyRotationWindow) error {
	if r == nil {
		return fmt.Errorf("security: key ring is nil")
	}
	if provider == nil {
		return fmt.Errorf("security: key provider is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.keys {
		if existing.provider.KeyID() == provider.KeyID() && existing.provider.Version() == provider.Version() {
			return fmt.Errorf("security: key %s v%d already in ring", provider.KeyID(), provider.Version())
		}
	}
	r.keys = append(r.keys, ringKey{provider: provider, window: window})
	return nil
}

func (r *KeyRing) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	active, err := r.active()
	if err != nil {
		return nil, err
	}
	return active.Encrypt(ctx, plaintext)
}

func (r *KeyRing) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("security: key ring is nil")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	var match *AppKeySecretProvider
	for i := len(r.keys) - 1; i >= 0; i-- {
		candidate := r.keys[i].provider
		if candidate.KeyID() == meta.KeyID && (meta.Version == 0 || candidate.Version() == meta.Version) {
			match = candidate
			break
		}
	}
	r.mu.RUnlock()
	if match == nil {
		return nil, fmt.Errorf("security: no key for %s v%d", meta.KeyID, meta.Version)
	}
	return match.Decrypt(ctx, ciphertext)
}

// Metadata reports the key that currently seals new values.
func (r *KeyRing) Metadata() (string, int) {
	active, err := r.active()
	if err != nil {
		return "", 0
	}
	return active.Metadata()
}

func (r *KeyRing) active() (*AppKeySecretProvider, error) {
	if r == nil {
		return nil, fmt.Errorf("security: key ring is nil")
	}
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.keys) - 1; i >= 0; i-- {
		if r.keys[i].window.Allows(now) {
			return r.keys[i].provider, nil
		}
	}
	return nil, fmt.Errorf("security: no key is active at %s", now.UTC().Format(time.RFC3339))
}

var _ core.SecretProvider = (*KeyRing)(nil)
