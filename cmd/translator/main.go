package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidbz/polyglot/internal/config"
	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/http"
	"github.com/davidbz/polyglot/internal/http/middleware"
	"github.com/davidbz/polyglot/internal/observability"
	"github.com/davidbz/polyglot/internal/provider/bootstrap"
	"github.com/davidbz/polyglot/internal/provider/echo"
	"github.com/davidbz/polyglot/internal/provider/openai"
	"github.com/davidbz/polyglot/internal/provider/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container := buildContainer()

	err := container.Invoke(func(
		server *http.Server,
		providers domain.ProviderStore,
		providersCfg *bootstrap.Config,
		serverCfg *config.ServerConfig,
		closer io.Closer,
	) error {
		defer func() {
			if err := closer.Close(); err != nil {
				observability.FromContext(ctx).Warn("failed to close store", observability.Error(err))
			}
		}()

		if err := bootstrap.Run(ctx, *providersCfg, providers); err != nil {
			return err
		}

		return serve(ctx, server, time.Duration(serverCfg.ShutdownTimeout)*time.Second)
	})
	if err != nil {
		log.Fatalf("Translator failed: %v", err)
	}
}

func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func(logger *zap.Logger) domain.EventPublisher {
		return observability.NewEventBus(logger)
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}
	if err := container.Provide(newMetricsRegistry); err != nil {
		log.Fatalf("Failed to provide metrics registry: %v", err)
	}
	if err := container.Provide(func(reg *prometheus.Registry) prometheus.Gatherer {
		return reg
	}); err != nil {
		log.Fatalf("Failed to provide metrics gatherer: %v", err)
	}
	if err := container.Provide(func(reg *prometheus.Registry) (*observability.Metrics, error) {
		return observability.NewMetrics(reg)
	}); err != nil {
		log.Fatalf("Failed to provide metrics: %v", err)
	}

	// Storage
	if err := container.Provide(openStores); err != nil {
		log.Fatalf("Failed to provide stores: %v", err)
	}

	// Chat client registry
	if err := container.Provide(newClientFactory); err != nil {
		log.Fatalf("Failed to provide client registry: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewTranslator); err != nil {
		log.Fatalf("Failed to provide translator: %v", err)
	}
	if err := container.Provide(func(t *domain.Translator) http.TranslationService {
		return t
	}); err != nil {
		log.Fatalf("Failed to provide translation service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newClientFactory registers the chat adapters. Providers with an unknown
// vendor are served by the OpenAI-compatible adapter.
func newClientFactory(cfg *openai.Config, logger *zap.Logger) (domain.ClientFactory, error) {
	reg := registry.NewRegistry(openai.VendorName)

	if err := reg.Register(openai.VendorName, openai.NewBuilder(*cfg)); err != nil {
		return nil, err
	}
	if err := reg.Register(echo.VendorName, echo.Builder); err != nil {
		return nil, err
	}

	logger.Info("chat adapters registered", zap.Strings("vendors", reg.Vendors()))
	return reg, nil
}
