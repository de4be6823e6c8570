package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/davidbz/polyglot/internal/domain"
)

// Builder creates a chat client bound to a provider's endpoint and key.
type Builder func(ctx context.Context, provider *domain.Provider) (domain.ChatClient, error)

// Registry implements domain.ClientFactory by dispatching on the provider
// vendor. Vendors without a dedicated builder use the fallback vendor, since
// most hosted models speak the OpenAI wire format.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
	fallback string
}

// NewRegistry creates a new client registry. An empty fallback disables
// vendor fallback.
func NewRegistry(fallback string) *Registry {
	return &Registry{
		mu:       sync.RWMutex{},
		builders: make(map[string]Builder),
		fallback: normalize(fallback),
	}
}

// Register adds a builder for vendor.
func (r *Registry) Register(vendor string, builder Builder) error {
	if builder == nil {
		return errors.New("builder cannot be nil")
	}

	vendor = normalize(vendor)
	if vendor == "" {
		return errors.New("vendor name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[vendor]; exists {
		return fmt.Errorf("vendor %s already registered", vendor)
	}

	r.builders[vendor] = builder
	return nil
}

// NewClient builds a client for the provider's vendor.
func (r *Registry) NewClient(ctx context.Context, provider *domain.Provider) (domain.ChatClient, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}

	builder, err := r.lookup(provider.Vendor)
	if err != nil {
		return nil, err
	}

	client, err := builder(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s client: %w", provider.Vendor, err)
	}
	return client, nil
}

// Vendors returns the registered vendor names, sorted.
func (r *Registry) Vendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(vendor string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if builder, ok := r.builders[normalize(vendor)]; ok {
		return builder, nil
	}

	if builder, ok := r.builders[r.fallback]; ok && r.fallback != "" {
		return builder, nil
	}

	return nil, fmt.Errorf("no client registered for vendor %q", vendor)
}

func normalize(vendor string) string {
	return strings.ToLower(strings.TrimSpace(vendor))
}
