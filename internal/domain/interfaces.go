package domain

import (
	"context"
	"time"
)

// ProviderStore is the durable collection of providers and their
// rate-limit state. Implementations must not serve selection from a cache:
// cooldowns written by concurrent callers have to be visible on the next read.
type ProviderStore interface {
	// ListAvailable returns providers whose reset time is at or before now.
	ListAvailable(ctx context.Context, now time.Time) ([]*Provider, error)

	// Persist writes the provider's full mutable state (last writer wins).
	Persist(ctx context.Context, provider *Provider) error

	// Get returns the provider with the given id or ErrProviderNotFound.
	Get(ctx context.Context, id string) (*Provider, error)

	// List returns every provider.
	List(ctx context.Context) ([]*Provider, error)

	// Upsert creates or updates a provider from configuration, keyed by
	// name. Existing rate-limit state is preserved.
	Upsert(ctx context.Context, provider *Provider) (*Provider, error)
}

// OutcomeStore persists translation outcomes. Outcomes are append-only.
type OutcomeStore interface {
	// Insert stores a new outcome.
	Insert(ctx context.Context, outcome *TranslationOutcome) error

	// Get returns the outcome with the given id or ErrOutcomeNotFound.
	Get(ctx context.Context, id string) (*TranslationOutcome, error)

	// ListByRecord returns the outcomes of a subject record, oldest first.
	ListByRecord(ctx context.Context, recordID string) ([]*TranslationOutcome, error)
}

// PromptStore resolves prompt templates.
type PromptStore interface {
	// Load returns the template with the given name. An empty version
	// selects the most recently stored version.
	Load(ctx context.Context, name, version string) (*PromptTemplate, error)

	// Save creates or replaces the template identified by name and version.
	Save(ctx context.Context, prompt *PromptTemplate) error
}

// ChatClient issues chat-completions requests against one provider.
type ChatClient interface {
	// Chat sends one synchronous request. Implementations return an error
	// wrapping ErrRateLimited when the provider answers with HTTP 429.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ClientFactory builds a chat client bound to a provider's endpoint and
// credential.
type ClientFactory interface {
	// NewClient returns a client for the provider.
	NewClient(ctx context.Context, provider *Provider) (ChatClient, error)
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
