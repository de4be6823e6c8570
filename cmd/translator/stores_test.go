package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidbz/polyglot/internal/config"
	"github.com/davidbz/polyglot/internal/prompt"
	"github.com/davidbz/polyglot/internal/provider/openai"
	"github.com/davidbz/polyglot/internal/store/memory"
	"github.com/davidbz/polyglot/internal/store/redis"
	"github.com/davidbz/polyglot/internal/store/sqlstore"
)

func TestOpenStores(t *testing.T) {
	logger := zap.NewNop()
	promptCfg := &prompt.Config{Dir: t.TempDir()}

	t.Run("should default to memory stores", func(t *testing.T) {
		stores, err := openStores(&config.StoreConfig{Driver: "memory"}, &redis.Config{}, promptCfg, logger)
		require.NoError(t, err)
		require.IsType(t, &memory.ProviderStore{}, stores.Providers)
		require.IsType(t, &prompt.Loader{}, stores.Prompts)
		require.NoError(t, stores.Closer.Close())
	})

	t.Run("should open a sqlite database", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "translator.db")
		stores, err := openStores(&config.StoreConfig{Driver: "sqlite", DSN: dsn}, &redis.Config{}, promptCfg, logger)
		require.NoError(t, err)
		require.IsType(t, &sqlstore.ProviderStore{}, stores.Providers)
		require.NoError(t, stores.Closer.Close())
	})

	t.Run("should require a dsn for sql drivers", func(t *testing.T) {
		_, err := openStores(&config.StoreConfig{Driver: "postgres"}, &redis.Config{}, promptCfg, logger)
		require.Error(t, err)
	})

	t.Run("should reject unknown drivers", func(t *testing.T) {
		_, err := openStores(&config.StoreConfig{Driver: "mongo"}, &redis.Config{}, promptCfg, logger)
		require.ErrorContains(t, err, "unsupported STORE_DRIVER")
	})
}

func TestNewClientFactory(t *testing.T) {
	t.Run("should register the openai and echo adapters", func(t *testing.T) {
		factory, err := newClientFactory(&openai.Config{Timeout: 5}, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, factory)
	})
}
