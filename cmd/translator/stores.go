package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/polyglot/internal/config"
	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/prompt"
	"github.com/davidbz/polyglot/internal/store/memory"
	"github.com/davidbz/polyglot/internal/store/redis"
	"github.com/davidbz/polyglot/internal/store/sqlstore"
)

// Stores exposes the configured persistence backend to the container.
type Stores struct {
	dig.Out
	Providers domain.ProviderStore
	Outcomes  domain.OutcomeStore
	Prompts   domain.PromptStore
	Closer    io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStores builds the stores for the configured driver. Prompts always resolve
// through the file-backed loader.
func openStores(
	storeCfg *config.StoreConfig,
	redisCfg *redis.Config,
	promptCfg *prompt.Config,
	logger *zap.Logger,
) (Stores, error) {
	logger.Info("opening stores", zap.String("driver", storeCfg.Driver))

	ctx := context.Background()
	files := prompt.NewFileSource(promptCfg.Dir)

	switch storeCfg.Driver {
	case "", "memory":
		return Stores{
			Providers: memory.NewProviderStore(),
			Outcomes:  memory.NewOutcomeStore(),
			Prompts:   prompt.NewLoader(memory.NewPromptStore(), files),
			Closer:    nopCloser{},
		}, nil

	case string(sqlstore.Postgres), string(sqlstore.SQLite):
		if storeCfg.DSN == "" {
			return Stores{}, fmt.Errorf("STORE_DSN is required for the %s store", storeCfg.Driver)
		}
		db, err := sqlstore.Open(ctx, sqlstore.Dialect(storeCfg.Driver), storeCfg.DSN)
		if err != nil {
			return Stores{}, err
		}
		return Stores{
			Providers: sqlstore.NewProviderStore(db),
			Outcomes:  sqlstore.NewOutcomeStore(db),
			Prompts:   prompt.NewLoader(sqlstore.NewPromptStore(db), files),
			Closer:    db,
		}, nil

	case "redis":
		client, err := redis.NewClient(ctx, *redisCfg)
		if err != nil {
			return Stores{}, err
		}
		return Stores{
			Providers: redis.NewProviderStore(client, redisCfg.KeyPrefix),
			Outcomes:  redis.NewOutcomeStore(client, redisCfg.KeyPrefix),
			Prompts:   prompt.NewLoader(redis.NewPromptStore(client, redisCfg.KeyPrefix), files),
			Closer:    client,
		}, nil

	default:
		return Stores{}, fmt.Errorf("unsupported STORE_DRIVER %q", storeCfg.Driver)
	}
}
