package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-oauth-client/core"
)

// ValidateHandshakeStoreConformance exercises the create and consume contract
// every HandshakeStore must honour, including single consumption under
// concurrent callers.
func ValidateHandshakeStoreConformance(ctx context.Context, store core.HandshakeStore) error {
	if store == nil {
		return fmt.Errorf("devkit: handshake store is required")
	}
	createdAt := time.Now().UTC().Truncate(time.Second)
	handshake := core.Handshake{
		State:         "devkit_state_" + fmt.Sprint(createdAt.UnixNano()),
		CodeVerifier:  strings.Repeat("v", core.DefaultVerifierLength),
		CodeChallenge: core.ChallengeS256(strings.Repeat("v", core.DefaultVerifierLength)),
		ProviderType:  "devkit",
		OwnerID:       "devkit_owner",
		CreatedAt:     createdAt,
	}
	if err := store.Create(ctx, handshake); err != nil {
		return fmt.Errorf("devkit: create handshake: %w", err)
	}

	const contenders = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []core.Handshake
		misses   int
		failures []error
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			consumed, err := store.Consume(ctx, handshake.State)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, consumed)
			case errors.Is(err, core.ErrHandshakeNotFound):
				misses++
			default:
				failures = append(failures, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(failures) > 0 {
		return fmt.Errorf("devkit: consume failed: %w", failures[0])
	}
	if len(winners) != 1 || misses != contenders-1 {
		return fmt.Errorf("devkit: expected exactly one consumer, got %d winners and %d misses", len(winners), misses)
	}
	consumed := winners[0]
	if consumed.CodeVerifier != handshake.CodeVerifier ||
		consumed.CodeChallenge != handshake.CodeChallenge ||
		consumed.ProviderType != handshake.ProviderType ||
		consumed.OwnerID != handshake.OwnerID {
		return fmt.Errorf("devkit: consumed handshake does not match created handshake")
	}
	if !consumed.CreatedAt.Equal(createdAt) {
		return fmt.Errorf("devkit: expected created_at %s, got %s", createdAt, consumed.CreatedAt)
	}
	if _, err := store.Consume(ctx, "devkit_missing_state"); !errors.Is(err, core.ErrHandshakeNotFound) {
		return fmt.Errorf("devkit: expected ErrHandshakeNotFound for unknown state, got %v", err)
	}
	return nil
}

// ValidateProviderConformance checks that a provider can be registered and
// describes itself consistently with its kind.
func ValidateProviderConformance(provider core.Provider) error {
	if provider == nil {
		return fmt.Errorf("devkit: provider is required")
	}
	registry, err := core.NewProviderRegistry(provider)
	if err != nil {
		return fmt.Errorf("devkit: register provider: %w", err)
	}
	descriptor := provider.Descriptor()
	registered, err := registry.Resolve(descriptor.Type)
	if err != nil {
		return fmt.Errorf("devkit: resolve provider: %w", err)
	}
	if registered.Kind == core.ProviderKindAuthCode {
		for _, reserved := range []string{"code_challenge", "code_challenge_method", "state", "code_verifier"} {
			if _, ok := descriptor.ExtraParams[reserved]; ok {
				return fmt.Errorf("devkit: provider %q must not set reserved parameter %q", descriptor.Type, reserved)
			}
		}
	}
	return nil
}
