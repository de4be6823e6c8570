package sqlstore_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/store/sqlstore"
)

//nolint:gochecknoglobals // test fixture
var providerColumns = []string{
	"id", "url", "api_key", "vendor", "model_names", "name", "priority",
	"n_requests_made", "n_requests_made_since_last_reset", "is_rate_limited",
	"rate_limit_reset_time", "last_request_time", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlstore.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlstore.NewDB(db, sqlstore.Postgres), mock
}

func providerRow(id, name string, reset any) []driver.Value {
	created := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, "https://" + name + ".example.com/v1", "sk-" + name, "openai", []byte(`["gpt-4o-mini"]`), name, 1,
		int64(3), int64(1), reset != nil, reset, nil, created, created,
	}
}

func TestPostgresProviderStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should filter available providers by reset time", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewProviderStore(db)

		mock.ExpectQuery(`SELECT .* FROM providers WHERE \(rate_limit_reset_time IS NULL OR rate_limit_reset_time <= \$1\) ORDER BY id`).
			WithArgs(now).
			WillReturnRows(sqlmock.NewRows(providerColumns).
				AddRow(providerRow("p1", "primary", nil)...).
				AddRow(providerRow("p2", "backup", now.Add(-time.Hour))...))

		got, err := store.ListAvailable(ctx, now)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, []string{"gpt-4o-mini"}, got[0].ModelNames)
		require.True(t, got[0].RateLimit.ResetTime.IsZero())
		require.True(t, got[1].RateLimit.IsRateLimited)
		require.True(t, got[1].RateLimit.ResetTime.Equal(now.Add(-time.Hour)))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should upsert on the provider name", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewProviderStore(db)

		mock.ExpectQuery(`INSERT INTO providers \(id,url,api_key,.*\) VALUES \(\$1,\$2,.*\) ON CONFLICT \(name\) DO UPDATE SET .* RETURNING id, url, api_key`).
			WillReturnRows(sqlmock.NewRows(providerColumns).AddRow(providerRow("p1", "primary", nil)...))

		got, err := store.Upsert(ctx, provider("primary", 1))
		require.NoError(t, err)
		require.Equal(t, "p1", got.ID)
		require.Equal(t, int64(3), got.RateLimit.RequestsMade)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should report persisting an unknown provider", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewProviderStore(db)

		mock.ExpectExec(`UPDATE providers SET name = \$1, .* WHERE id = \$9`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Persist(ctx, &domain.Provider{ID: "missing", Name: "missing"})
		require.ErrorIs(t, err, domain.ErrProviderNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should wrap driver errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewProviderStore(db)

		boom := errors.New("connection reset")
		mock.ExpectQuery(`SELECT .* FROM providers ORDER BY id`).WillReturnError(boom)

		_, err := store.List(ctx)
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresOutcomeStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert structured content as json", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewOutcomeStore(db)

		mock.ExpectExec(`INSERT INTO translation_outcomes \(id,status,.*\) VALUES \(\$1,\$2,`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Insert(ctx, &domain.TranslationOutcome{
			ID:       "o1",
			Status:   domain.StatusCompleted,
			RecordID: "novel-1",
			CallMetadata: domain.LLMCallResult{
				Content: domain.ResponseContent{Fields: map[string]any{"title": "Hello"}},
			},
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should map missing rows to not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewOutcomeStore(db)

		mock.ExpectQuery(`SELECT .* FROM translation_outcomes WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := store.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrOutcomeNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresPromptStore(t *testing.T) {
	t.Run("should upsert on name and version", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewPromptStore(db)

		mock.ExpectQuery(`INSERT INTO prompt_templates .* ON CONFLICT \(name, version\) DO UPDATE SET .* RETURNING id`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stored-id"))

		p := &domain.PromptTemplate{Name: "translate_title", Version: "1.0", Content: domain.PromptContent{UserPrompt: "{text}"}}
		require.NoError(t, store.Save(context.Background(), p))
		require.Equal(t, "stored-id", p.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should not rewrite the id of an existing version", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := sqlstore.NewPromptStore(db)

		mock.ExpectQuery(`DO UPDATE SET author = excluded.author, .*saved_at = excluded.saved_at RETURNING id`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stored-id"))

		p := &domain.PromptTemplate{ID: "caller-id", Name: "translate_title", Version: "1.0"}
		require.NoError(t, store.Save(context.Background(), p))
		require.Equal(t, "stored-id", p.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
