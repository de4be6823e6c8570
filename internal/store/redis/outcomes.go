package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/polyglot/internal/domain"
)

// OutcomeStore keeps each outcome as a JSON string and indexes outcome ids
// per record in a list.
type OutcomeStore struct {
	client *redis.Client
	prefix string
}

// NewOutcomeStore creates an outcome store using keys under prefix.
func NewOutcomeStore(client *redis.Client, prefix string) *OutcomeStore {
	return &OutcomeStore{client: client, prefix: prefix}
}

func (s *OutcomeStore) outcomeKey(id string) string {
	return s.prefix + ":outcome:" + id
}

func (s *OutcomeStore) recordKey(recordID string) string {
	return s.prefix + ":outcomes:record:" + recordID
}

// Insert stores a new outcome. Existing ids are rejected.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.TranslationOutcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome %s: %w", o.ID, err)
	}

	created, err := s.client.SetNX(ctx, s.outcomeKey(o.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to insert outcome %s: %w", o.ID, err)
	}
	if !created {
		return fmt.Errorf("outcome %s already exists", o.ID)
	}

	if err := s.client.RPush(ctx, s.recordKey(o.RecordID), o.ID).Err(); err != nil {
		return fmt.Errorf("failed to index outcome %s: %w", o.ID, err)
	}
	return nil
}

// Get returns the outcome with the given id.
func (s *OutcomeStore) Get(ctx context.Context, id string) (*domain.TranslationOutcome, error) {
	raw, err := s.client.Get(ctx, s.outcomeKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrOutcomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome %s: %w", id, err)
	}
	return decodeOutcome(raw)
}

// ListByRecord returns the outcomes of a record in insertion order.
func (s *OutcomeStore) ListByRecord(ctx context.Context, recordID string) ([]*domain.TranslationOutcome, error) {
	ids, err := s.client.LRange(ctx, s.recordKey(recordID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes of %s: %w", recordID, err)
	}
	if len(ids) == 0 {
		return []*domain.TranslationOutcome{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.outcomeKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read outcomes of %s: %w", recordID, err)
	}

	out := make([]*domain.TranslationOutcome, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		o, err := decodeOutcome(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func decodeOutcome(raw string) (*domain.TranslationOutcome, error) {
	var o domain.TranslationOutcome
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	return &o, nil
}
