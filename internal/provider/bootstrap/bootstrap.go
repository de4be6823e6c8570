// Package bootstrap loads provider definitions from a YAML file and
// registers them in the provider store.
package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/observability"
)

// Config points at the providers file. An empty path skips bootstrapping.
type Config struct {
	File string `env:"PROVIDERS_FILE"`
}

type providersFile struct {
	Providers []*domain.Provider `yaml:"providers"`
}

// ReadFile parses the providers file at path.
func ReadFile(path string) ([]*domain.Provider, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}
	return Parse(content)
}

// Parse decodes and validates provider definitions. Names must be unique.
func Parse(content []byte) ([]*domain.Provider, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var file providersFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Providers))
	for i, p := range file.Providers {
		if p == nil {
			return nil, fmt.Errorf("providers[%d] is empty", i)
		}
		p.Vendor = strings.ToLower(strings.TrimSpace(p.Vendor))
		if err := domain.Validate(p); err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	return file.Providers, nil
}

// Sync upserts every provider into store. Rate-limit state of providers that
// already exist is kept.
func Sync(ctx context.Context, store domain.ProviderStore, providers []*domain.Provider) ([]*domain.Provider, error) {
	logger := observability.FromContext(ctx)

	saved := make([]*domain.Provider, 0, len(providers))
	for _, p := range providers {
		stored, err := store.Upsert(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert provider %s: %w", p.Name, err)
		}

		logger.Info("provider registered",
			observability.String("provider", stored.Name),
			observability.String("provider_id", stored.ID),
			observability.String("vendor", stored.Vendor),
			observability.Int("priority", stored.Priority))
		saved = append(saved, stored)
	}

	return saved, nil
}

// Run reads cfg.File and syncs it into store. It is a no-op when no file is
// configured.
func Run(ctx context.Context, cfg Config, store domain.ProviderStore) error {
	if cfg.File == "" {
		observability.FromContext(ctx).Info("no providers file configured, skipping bootstrap")
		return nil
	}

	providers, err := ReadFile(cfg.File)
	if err != nil {
		return err
	}

	_, err = Sync(ctx, store, providers)
	return err
}
