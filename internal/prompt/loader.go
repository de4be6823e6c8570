package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/observability"
)

// Loader is a domain.PromptStore that reads from a backing store first. When
// the latest version of a prompt is requested and none is stored, the YAML
// file is loaded and saved so later calls hit the store.
type Loader struct {
	store domain.PromptStore
	files *FileSource
}

// NewLoader creates a loader over store and files.
func NewLoader(store domain.PromptStore, files *FileSource) *Loader {
	return &Loader{store: store, files: files}
}

// Load returns the named prompt. A pinned version must already be stored.
func (l *Loader) Load(ctx context.Context, name, version string) (*domain.PromptTemplate, error) {
	tmpl, err := l.store.Load(ctx, name, version)
	if err == nil {
		return tmpl, nil
	}
	if !errors.Is(err, domain.ErrPromptNotFound) {
		return nil, err
	}
	if version != "" {
		return nil, fmt.Errorf("%w: %s version %s is not stored", domain.ErrPromptNotFound, name, version)
	}

	tmpl, err = l.files.Read(name)
	if err != nil {
		return nil, err
	}

	if err := l.store.Save(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to store prompt %s: %w", name, err)
	}

	observability.FromContext(ctx).Info("prompt loaded from file",
		observability.String("prompt_name", tmpl.Name),
		observability.String("prompt_version", tmpl.Version),
		observability.String("fingerprint", tmpl.Fingerprint))

	return tmpl, nil
}

// Save stores the prompt in the backing store.
func (l *Loader) Save(ctx context.Context, tmpl *domain.PromptTemplate) error {
	return l.store.Save(ctx, tmpl)
}
