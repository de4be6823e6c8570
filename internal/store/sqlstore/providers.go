package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/davidbz/polyglot/internal/domain"
)

const providersTable = "providers"

//nolint:gochecknoglobals // column list shared by every provider query
var providerColumns = []string{
	"id", "url", "api_key", "vendor", "model_names", "name", "priority",
	"n_requests_made", "n_requests_made_since_last_reset", "is_rate_limited",
	"rate_limit_reset_time", "last_request_time", "created_at", "updated_at",
}

// ProviderStore persists providers in the providers table.
type ProviderStore struct {
	db *DB
}

// NewProviderStore creates a provider store on db.
func NewProviderStore(db *DB) *ProviderStore {
	return &ProviderStore{db: db}
}

// ListAvailable returns providers whose reset time is unset or at or before now.
func (s *ProviderStore) ListAvailable(ctx context.Context, now time.Time) ([]*domain.Provider, error) {
	q := s.db.SQ.Select(providerColumns...).From(providersTable).
		Where(sq.Or{
			sq.Eq{"rate_limit_reset_time": nil},
			sq.LtOrEq{"rate_limit_reset_time": s.db.timeArg(now)},
		}).
		OrderBy("id")

	return s.query(ctx, q)
}

// Persist writes the mutable state of an existing provider.
func (s *ProviderStore) Persist(ctx context.Context, p *domain.Provider) error {
	query, args, err := s.db.SQ.Update(providersTable).
		Set("name", p.Name).
		Set("priority", p.Priority).
		Set("n_requests_made", p.RateLimit.RequestsMade).
		Set("n_requests_made_since_last_reset", p.RateLimit.RequestsSinceReset).
		Set("is_rate_limited", p.RateLimit.IsRateLimited).
		Set("rate_limit_reset_time", s.db.timeArg(p.RateLimit.ResetTime)).
		Set("last_request_time", s.db.timeArg(p.RateLimit.LastRequestTime)).
		Set("updated_at", s.db.timeArg(time.Now())).
		Where(sq.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build provider update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to persist provider %s: %w", p.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to persist provider %s: %w", p.ID, err)
	}
	if affected == 0 {
		return domain.ErrProviderNotFound
	}
	return nil
}

// Get returns the provider with the given id.
func (s *ProviderStore) Get(ctx context.Context, id string) (*domain.Provider, error) {
	query, args, err := s.db.SQ.Select(providerColumns...).From(providersTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build provider query: %w", err)
	}

	p, err := scanProvider(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider %s: %w", id, err)
	}
	return p, nil
}

// List returns every provider ordered by id.
func (s *ProviderStore) List(ctx context.Context) ([]*domain.Provider, error) {
	return s.query(ctx, s.db.SQ.Select(providerColumns...).From(providersTable).OrderBy("id"))
}

// Upsert inserts the provider or refreshes its configuration by name. The
// rate-limit columns are left untouched on conflict.
func (s *ProviderStore) Upsert(ctx context.Context, p *domain.Provider) (*domain.Provider, error) {
	models, err := json.Marshal(p.ModelNames)
	if err != nil {
		return nil, fmt.Errorf("encode model names: %w", err)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.db.timeArg(time.Now())

	query, args, err := s.db.SQ.Insert(providersTable).
		Columns(providerColumns...).
		Values(
			id, p.URL, p.Key, p.Vendor, string(models), p.Name, p.Priority,
			p.RateLimit.RequestsMade, p.RateLimit.RequestsSinceReset, p.RateLimit.IsRateLimited,
			s.db.timeArg(p.RateLimit.ResetTime), s.db.timeArg(p.RateLimit.LastRequestTime), now, now,
		).
		Suffix("ON CONFLICT (name) DO UPDATE SET " +
			"url = excluded.url, api_key = excluded.api_key, vendor = excluded.vendor, " +
			"model_names = excluded.model_names, priority = excluded.priority, updated_at = excluded.updated_at " +
			"RETURNING " + strings.Join(providerColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build provider upsert: %w", err)
	}

	saved, err := scanProvider(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert provider %s: %w", p.Name, err)
	}
	return saved, nil
}

func (s *ProviderStore) query(ctx context.Context, q sq.SelectBuilder) ([]*domain.Provider, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build provider query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read providers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*domain.Provider, error) {
	var p domain.Provider
	var models string
	var resetTime, lastRequest, created, updated nullTime

	err := row.Scan(
		&p.ID, &p.URL, &p.Key, &p.Vendor, &models, &p.Name, &p.Priority,
		&p.RateLimit.RequestsMade, &p.RateLimit.RequestsSinceReset, &p.RateLimit.IsRateLimited,
		&resetTime, &lastRequest, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(models), &p.ModelNames); err != nil {
		return nil, fmt.Errorf("decode model names of %s: %w", p.ID, err)
	}

	p.RateLimit.ResetTime = resetTime.Time
	p.RateLimit.LastRequestTime = lastRequest.Time
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return &p, nil
}
