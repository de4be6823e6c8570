package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/provider/bootstrap"
	"github.com/davidbz/polyglot/internal/store/memory"
)

const providersYAML = `providers:
  - name: primary
    provider: OpenAI
    url: https://api.openai.com/v1
    key: sk-primary
    model_names: [gpt-4o-mini, gpt-4o]
    priority: 10
  - name: backup
    provider: openai
    url: https://backup.example.com/v1
    key: sk-backup
    model_names: [llama-3.1-70b]
`

func TestParse(t *testing.T) {
	t.Run("should decode providers", func(t *testing.T) {
		providers, err := bootstrap.Parse([]byte(providersYAML))
		require.NoError(t, err)
		require.Len(t, providers, 2)

		require.Equal(t, "primary", providers[0].Name)
		require.Equal(t, "openai", providers[0].Vendor)
		require.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, providers[0].ModelNames)
		require.Equal(t, 10, providers[0].Priority)
		require.Equal(t, 0, providers[1].Priority)
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		content := providersYAML + `  - name: primary
    provider: openai
    url: https://other.example.com/v1
    key: sk-other
    model_names: [gpt-4o]
`
		_, err := bootstrap.Parse([]byte(content))
		require.ErrorContains(t, err, "duplicate provider name")
	})

	t.Run("should reject providers without models", func(t *testing.T) {
		content := `providers:
  - name: primary
    provider: openai
    url: https://api.openai.com/v1
    key: sk-primary
    model_names: []
`
		_, err := bootstrap.Parse([]byte(content))
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "Provider.ModelNames")
	})

	t.Run("should reject unknown fields", func(t *testing.T) {
		_, err := bootstrap.Parse([]byte("providers:\n  - name: primary\n    token: abc\n"))
		require.Error(t, err)
	})
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("should upsert providers and keep rate-limit state", func(t *testing.T) {
		store := memory.NewProviderStore()
		providers, err := bootstrap.Parse([]byte(providersYAML))
		require.NoError(t, err)

		saved, err := bootstrap.Sync(ctx, store, providers)
		require.NoError(t, err)
		require.Len(t, saved, 2)

		primary := saved[0]
		exhaustedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		primary.MarkExhausted(exhaustedAt, time.Hour)
		require.NoError(t, store.Persist(ctx, primary))

		again, err := bootstrap.Parse([]byte(providersYAML))
		require.NoError(t, err)
		_, err = bootstrap.Sync(ctx, store, again)
		require.NoError(t, err)

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)

		got, err := store.Get(ctx, primary.ID)
		require.NoError(t, err)
		require.True(t, got.RateLimit.IsRateLimited)
		require.Equal(t, exhaustedAt.Add(time.Hour), got.RateLimit.ResetTime)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should skip when no file is configured", func(t *testing.T) {
		store := memory.NewProviderStore()
		require.NoError(t, bootstrap.Run(ctx, bootstrap.Config{}, store))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("should load the configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "providers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(providersYAML), 0o600))

		store := memory.NewProviderStore()
		require.NoError(t, bootstrap.Run(ctx, bootstrap.Config{File: path}, store))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		err := bootstrap.Run(ctx, bootstrap.Config{File: filepath.Join(t.TempDir(), "missing.yaml")}, memory.NewProviderStore())
		require.Error(t, err)
	})
}
