package domain

import (
	"context"
	"fmt"
	"sort"
)

// ProviderSelector picks the provider to use from the currently available set.
type ProviderSelector struct {
	store ProviderStore
	clock Clock
}

// NewProviderSelector creates a new selector.
func NewProviderSelector(store ProviderStore, clock Clock) *ProviderSelector {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ProviderSelector{
		store: store,
		clock: clock,
	}
}

// Select re-reads the store and returns the preferred available provider.
func (s *ProviderSelector) Select(ctx context.Context) (*Provider, error) {
	available, err := s.store.ListAvailable(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list available providers: %w", err)
	}

	return SelectProvider(available)
}

// SelectProvider returns the provider with the highest priority. Ties are
// broken by ascending ID so the choice is reproducible.
func SelectProvider(available []*Provider) (*Provider, error) {
	candidates := make([]*Provider, 0, len(available))
	for _, p := range available {
		if p != nil && len(p.ModelNames) > 0 {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})

	return candidates[0], nil
}
