package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProviderKind string

const (
	ProviderKindAuthCode ProviderKind = "auth_code"
	ProviderKindBypass   ProviderKind = "bypass"
)

type RegisteredProvider struct {
	Provider   Provider
	Descriptor ProviderDescriptor
	Kind       ProviderKind
}

func (r RegisteredProvider) Bypass() (BypassProvider, bool) {
	if r.Kind != ProviderKindBypass {
		return nil, false
	}
	bypass, ok := r.Provider.(BypassProvider)
	return bypass, ok
}

// ProviderRegistry is the closed table of providers. It accepts registrations
// until Seal is called and is read-only afterwards.
type ProviderRegistry struct {
	mu        sync.RWMutex
	sealed    bool
	providers map[string]RegisteredProvider
}

func NewProviderRegistry(providers ...Provider) (*ProviderRegistry, error) {
	registry := &ProviderRegistry{providers: make(map[string]RegisteredProvider)}
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *ProviderRegistry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	kind := providerKindOf(provider)
	descriptor := provider.Descriptor()
	descriptor.Type = strings.TrimSpace(descriptor.Type)
	if err := descriptor.Validate(kind); err != nil {
		return err
	}
	descriptor.ExtraParams = copyStringMap(descriptor.ExtraParams)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrRegistrySealed, descriptor.Type)
	}
	if _, exists := r.providers[descriptor.Type]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, descriptor.Type)
	}
	r.providers[descriptor.Type] = RegisteredProvider{
		Provider:   provider,
		Descriptor: descriptor,
		Kind:       kind,
	}
	return nil
}

func (r *ProviderRegistry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *ProviderRegistry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func (r *ProviderRegistry) Resolve(providerType string) (RegisteredProvider, error) {
	providerType = strings.TrimSpace(providerType)
	if providerType == "" {
		return RegisteredProvider{}, fmt.Errorf("%w: provider type is required", ErrProviderNotRegistered)
	}
	r.mu.RLock()
	registered, ok := r.providers[providerType]
	r.mu.RUnlock()
	if !ok {
		return RegisteredProvider{}, fmt.Errorf("%w: %s", ErrProviderNotRegistered, providerType)
	}
	registered.Descriptor.ExtraParams = copyStringMap(registered.Descriptor.ExtraParams)
	return registered, nil
}

func (r *ProviderRegistry) List() []RegisteredProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.providers))
	for providerType := range r.providers {
		keys = append(keys, providerType)
	}
	sort.Strings(keys)
	out := make([]RegisteredProvider, 0, len(keys))
	for _, providerType := range keys {
		out = append(out, r.providers[providerType])
	}
	return out
}

func (r *ProviderRegistry) Types() []string {
	listed := r.List()
	out := make([]string, 0, len(listed))
	for _, registered := range listed {
		out = append(out, registered.Descriptor.Type)
	}
	return out
}

func providerKindOf(provider Provider) ProviderKind {
	if _, ok := provider.(BypassProvider); ok {
		return ProviderKindBypass
	}
	return ProviderKindAuthCode
}
