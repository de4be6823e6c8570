// Package redis implements the domain stores on go-redis. Providers are JSON
// documents in a hash with their reset times mirrored in a sorted set, so the
// availability filter runs on the server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/observability"
)

// Config contains Redis connection settings.
type Config struct {
	Addr      string `env:"REDIS_ADDR"       envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB"         envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"translator"`
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	observability.FromContext(ctx).Info("redis connection established",
		observability.String("addr", cfg.Addr))
	return client, nil
}

// ProviderStore keeps providers under <prefix>:providers.
type ProviderStore struct {
	client   *redis.Client
	hashKey  string
	resetKey string
	namesKey string
}

// NewProviderStore creates a provider store using keys under prefix.
func NewProviderStore(client *redis.Client, prefix string) *ProviderStore {
	base := prefix + ":providers"
	return &ProviderStore{
		client:   client,
		hashKey:  base,
		resetKey: base + ":reset",
		namesKey: base + ":names",
	}
}

// resetScore places a provider in the reset sorted set. Providers that were
// never rate limited score zero.
func resetScore(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro())
}

// ListAvailable returns providers whose reset time is at or before now.
func (s *ProviderStore) ListAvailable(ctx context.Context, now time.Time) ([]*domain.Provider, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.resetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read provider reset times: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Provider{}, nil
	}

	values, err := s.client.HMGet(ctx, s.hashKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read providers: %w", err)
	}

	out := make([]*domain.Provider, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			observability.FromContext(ctx).Warn("provider missing from hash",
				observability.String("provider_id", ids[i]))
			continue
		}

		p, err := decodeProvider(raw)
		if err != nil {
			return nil, err
		}
		// The score has microsecond resolution.
		if p.IsAvailable(now) {
			out = append(out, p)
		}
	}

	sortByID(out)
	return out, nil
}

// Persist writes the provider document and its reset score in one
// transaction.
func (s *ProviderStore) Persist(ctx context.Context, p *domain.Provider) error {
	existing, err := s.Get(ctx, p.ID)
	if err != nil {
		return err
	}

	updated := p.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	return s.write(ctx, updated)
}

// Get returns the provider with the given id.
func (s *ProviderStore) Get(ctx context.Context, id string) (*domain.Provider, error) {
	raw, err := s.client.HGet(ctx, s.hashKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider %s: %w", id, err)
	}
	return decodeProvider(raw)
}

// List returns every provider ordered by id.
func (s *ProviderStore) List(ctx context.Context) ([]*domain.Provider, error) {
	values, err := s.client.HVals(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	out := make([]*domain.Provider, 0, len(values))
	for _, raw := range values {
		p, err := decodeProvider(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	sortByID(out)
	return out, nil
}

// Upsert creates the provider or refreshes its configuration by name,
// keeping its rate-limit state.
func (s *ProviderStore) Upsert(ctx context.Context, p *domain.Provider) (*domain.Provider, error) {
	now := time.Now().UTC()

	id, err := s.client.HGet(ctx, s.namesKey, p.Name).Result()
	switch {
	case errors.Is(err, redis.Nil):
		created := p.Clone()
		if created.ID == "" {
			created.ID = uuid.NewString()
		}
		created.CreatedAt = now
		created.UpdatedAt = now
		if err := s.write(ctx, created); err != nil {
			return nil, err
		}
		return created, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up provider %s: %w", p.Name, err)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.URL = p.URL
	existing.Key = p.Key
	existing.Vendor = p.Vendor
	existing.ModelNames = append([]string(nil), p.ModelNames...)
	existing.Priority = p.Priority
	existing.UpdatedAt = now
	if err := s.write(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *ProviderStore) write(ctx context.Context, p *domain.Provider) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode provider %s: %w", p.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey, p.ID, data)
		pipe.HSet(ctx, s.namesKey, p.Name, p.ID)
		pipe.ZAdd(ctx, s.resetKey, redis.Z{Score: resetScore(p.RateLimit.ResetTime), Member: p.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist provider %s: %w", p.ID, err)
	}
	return nil
}

func decodeProvider(raw string) (*domain.Provider, error) {
	var p domain.Provider
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode provider: %w", err)
	}
	return &p, nil
}

func sortByID(providers []*domain.Provider) {
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
}
