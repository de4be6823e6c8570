// Package memory provides in-process implementations of the domain stores.
// They hold no durable state and are meant for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/polyglot/internal/domain"
)

// ProviderStore keeps providers in a map guarded by a RWMutex. Every read
// returns copies, so callers never share state with the store.
type ProviderStore struct {
	mu   sync.RWMutex
	byID map[string]*domain.Provider
}

// NewProviderStore creates an empty provider store.
func NewProviderStore() *ProviderStore {
	return &ProviderStore{
		mu:   sync.RWMutex{},
		byID: make(map[string]*domain.Provider),
	}
}

// ListAvailable returns providers whose cooldown has elapsed at now.
func (s *ProviderStore) ListAvailable(_ context.Context, now time.Time) ([]*domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Provider, 0, len(s.byID))
	for _, p := range s.byID {
		if p.IsAvailable(now) {
			out = append(out, p.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

// Persist overwrites the stored provider with p.
func (s *ProviderStore) Persist(_ context.Context, p *domain.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[p.ID]
	if !ok {
		return domain.ErrProviderNotFound
	}

	updated := p.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.byID[p.ID] = updated
	return nil
}

// Get returns a copy of the provider with the given id.
func (s *ProviderStore) Get(_ context.Context, id string) (*domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return p.Clone(), nil
}

// List returns copies of every provider.
func (s *ProviderStore) List(_ context.Context) ([]*domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Provider, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p.Clone())
	}
	sortByID(out)
	return out, nil
}

// Upsert creates the provider or refreshes its configuration, matching on
// name. Rate-limit state of an existing provider is kept.
func (s *ProviderStore) Upsert(_ context.Context, p *domain.Provider) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	for _, existing := range s.byID {
		if existing.Name != p.Name {
			continue
		}
		existing.URL = p.URL
		existing.Key = p.Key
		existing.Vendor = p.Vendor
		existing.ModelNames = append([]string(nil), p.ModelNames...)
		existing.Priority = p.Priority
		existing.UpdatedAt = now
		return existing.Clone(), nil
	}

	created := p.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.CreatedAt = now
	created.UpdatedAt = now
	s.byID[created.ID] = created
	return created.Clone(), nil
}

func sortByID(providers []*domain.Provider) {
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
}
