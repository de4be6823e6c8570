package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/davidbz/polyglot/internal/domain"
)

// PromptStore keeps prompt versions per name in save order.
type PromptStore struct {
	mu       sync.RWMutex
	versions map[string][]domain.PromptTemplate
}

// NewPromptStore creates an empty prompt store.
func NewPromptStore() *PromptStore {
	return &PromptStore{
		mu:       sync.RWMutex{},
		versions: make(map[string][]domain.PromptTemplate),
	}
}

// Load returns the named prompt. An empty version selects the latest save.
func (s *PromptStore) Load(_ context.Context, name, version string) (*domain.PromptTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[name]
	if len(versions) == 0 {
		return nil, domain.ErrPromptNotFound
	}

	if version == "" {
		latest := versions[len(versions)-1]
		return &latest, nil
	}

	for i := range versions {
		if versions[i].Version == version {
			found := versions[i]
			return &found, nil
		}
	}
	return nil, domain.ErrPromptNotFound
}

// Save stores the prompt, replacing an existing name/version pair. The
// replaced version becomes the latest and keeps its id.
func (s *PromptStore) Save(_ context.Context, prompt *domain.PromptTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.versions[prompt.Name]
	kept := versions[:0]
	for _, v := range versions {
		if v.Version == prompt.Version {
			prompt.ID = v.ID
			continue
		}
		kept = append(kept, v)
	}
	if prompt.ID == "" {
		prompt.ID = uuid.NewString()
	}

	s.versions[prompt.Name] = append(kept, *prompt)
	return nil
}
