package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/davidbz/polyglot/internal/domain"
)

// PromptStore keeps the versions of a prompt in a hash, the id of each
// version in a second hash and the most recently saved version in a
// companion string key.
type PromptStore struct {
	client *redis.Client
	prefix string
}

// NewPromptStore creates a prompt store using keys under prefix.
func NewPromptStore(client *redis.Client, prefix string) *PromptStore {
	return &PromptStore{client: client, prefix: prefix}
}

func (s *PromptStore) versionsKey(name string) string {
	return s.prefix + ":prompt:" + name
}

func (s *PromptStore) idsKey(name string) string {
	return s.prefix + ":prompt:" + name + ":ids"
}

func (s *PromptStore) latestKey(name string) string {
	return s.prefix + ":prompt:" + name + ":latest"
}

// Load returns the named prompt. An empty version selects the latest one.
func (s *PromptStore) Load(ctx context.Context, name, version string) (*domain.PromptTemplate, error) {
	if version == "" {
		latest, err := s.client.Get(ctx, s.latestKey(name)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrPromptNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt %s: %w", name, err)
		}
		version = latest
	}

	raw, err := s.client.HGet(ctx, s.versionsKey(name), version).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrPromptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt %s: %w", name, err)
	}

	var p domain.PromptTemplate
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode prompt %s: %w", name, err)
	}
	return &p, nil
}

// Save stores the prompt and marks its version as the latest. The first id
// stored for a version is kept; p.ID is set to it.
func (s *PromptStore) Save(ctx context.Context, p *domain.PromptTemplate) error {
	candidate := p.ID
	if candidate == "" {
		candidate = uuid.NewString()
	}

	var stored *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, s.idsKey(p.Name), p.Version, candidate)
		stored = pipe.HGet(ctx, s.idsKey(p.Name), p.Version)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reserve prompt id %s: %w", p.Name, err)
	}
	p.ID = stored.Val()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prompt %s: %w", p.Name, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.versionsKey(p.Name), p.Version, data)
		pipe.Set(ctx, s.latestKey(p.Name), p.Version, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save prompt %s: %w", p.Name, err)
	}
	return nil
}
