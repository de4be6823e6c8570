package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidbz/polyglot/internal/domain"
)

// OutcomeStore is an append-only list of outcomes.
type OutcomeStore struct {
	mu       sync.RWMutex
	outcomes []domain.TranslationOutcome
	byID     map[string]int
}

// NewOutcomeStore creates an empty outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		mu:   sync.RWMutex{},
		byID: make(map[string]int),
	}
}

// Insert appends the outcome. Ids must be unique.
func (s *OutcomeStore) Insert(_ context.Context, outcome *domain.TranslationOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[outcome.ID]; exists {
		return fmt.Errorf("outcome %s already exists", outcome.ID)
	}

	s.byID[outcome.ID] = len(s.outcomes)
	s.outcomes = append(s.outcomes, *outcome)
	return nil
}

// Get returns a copy of the outcome with the given id.
func (s *OutcomeStore) Get(_ context.Context, id string) (*domain.TranslationOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrOutcomeNotFound
	}
	outcome := s.outcomes[idx]
	return &outcome, nil
}

// ListByRecord returns the outcomes of a record in insertion order.
func (s *OutcomeStore) ListByRecord(_ context.Context, recordID string) ([]*domain.TranslationOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.TranslationOutcome, 0)
	for i := range s.outcomes {
		if s.outcomes[i].RecordID == recordID {
			outcome := s.outcomes[i]
			out = append(out, &outcome)
		}
	}
	return out, nil
}
