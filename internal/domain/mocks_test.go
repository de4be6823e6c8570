package domain_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/davidbz/polyglot/internal/domain"
)

// mockProviderStore is an in-memory ProviderStore for testing.
type mockProviderStore struct {
	mu         sync.Mutex
	providers  map[string]*domain.Provider
	listErr    error
	persistErr error
	persisted  int
}

func newMockProviderStore(providers ...*domain.Provider) *mockProviderStore {
	s := &mockProviderStore{providers: make(map[string]*domain.Provider)}
	for _, p := range providers {
		s.providers[p.ID] = p.Clone()
	}
	return s
}

func (s *mockProviderStore) ListAvailable(_ context.Context, now time.Time) ([]*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	out := make([]*domain.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.IsAvailable(now) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockProviderStore) Persist(_ context.Context, p *domain.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persistErr != nil {
		return s.persistErr
	}
	s.providers[p.ID] = p.Clone()
	s.persisted++
	return nil
}

func (s *mockProviderStore) Get(_ context.Context, id string) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[id]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return p.Clone(), nil
}

func (s *mockProviderStore) List(ctx context.Context) ([]*domain.Provider, error) {
	return s.ListAvailable(ctx, time.Unix(1<<40, 0))
}

func (s *mockProviderStore) Upsert(ctx context.Context, p *domain.Provider) (*domain.Provider, error) {
	if err := s.Persist(ctx, p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (s *mockProviderStore) snapshot(id string) *domain.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers[id].Clone()
}

// chatFunc scripts the responses of one provider.
type chatFunc func(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error)

type mockChatClient struct {
	name    string
	factory *mockClientFactory
}

func (c *mockChatClient) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	c.factory.mu.Lock()
	c.factory.calls = append(c.factory.calls, c.name)
	c.factory.requests = append(c.factory.requests, req)
	fn := c.factory.responders[c.name]
	c.factory.mu.Unlock()

	if fn == nil {
		return okResponse("ok"), nil
	}
	return fn(ctx, req)
}

// mockClientFactory hands out clients keyed by provider name and records
// every call they receive.
type mockClientFactory struct {
	mu         sync.Mutex
	responders map[string]chatFunc
	calls      []string
	requests   []*domain.ChatRequest
	newErr     error
}

func newMockClientFactory() *mockClientFactory {
	return &mockClientFactory{responders: make(map[string]chatFunc)}
}

func (f *mockClientFactory) on(providerName string, fn chatFunc) *mockClientFactory {
	f.responders[providerName] = fn
	return f
}

func (f *mockClientFactory) NewClient(_ context.Context, p *domain.Provider) (domain.ChatClient, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	return &mockChatClient{name: p.Name, factory: f}, nil
}

func (f *mockClientFactory) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type mockPromptStore struct {
	prompts map[string]*domain.PromptTemplate
	err     error
}

func newMockPromptStore(prompts ...*domain.PromptTemplate) *mockPromptStore {
	s := &mockPromptStore{prompts: make(map[string]*domain.PromptTemplate)}
	for _, p := range prompts {
		s.prompts[p.Name] = p
	}
	return s
}

func (s *mockPromptStore) Load(_ context.Context, name, _ string) (*domain.PromptTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.prompts[name]
	if !ok {
		return nil, domain.ErrPromptNotFound
	}
	return p, nil
}

func (s *mockPromptStore) Save(_ context.Context, p *domain.PromptTemplate) error {
	s.prompts[p.Name] = p
	return nil
}

type mockOutcomeStore struct {
	mu        sync.Mutex
	outcomes  []*domain.TranslationOutcome
	insertErr error
}

func (s *mockOutcomeStore) Insert(_ context.Context, o *domain.TranslationOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *mockOutcomeStore) Get(_ context.Context, id string) (*domain.TranslationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.outcomes {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, domain.ErrOutcomeNotFound
}

func (s *mockOutcomeStore) ListByRecord(_ context.Context, recordID string) ([]*domain.TranslationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.TranslationOutcome
	for _, o := range s.outcomes {
		if o.RecordID == recordID {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *mockPublisher) Publish(_ context.Context, eventType string, _ map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSleeper records waits without blocking.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return s.err
}

func newProvider(id, name string, priority int) *domain.Provider {
	return &domain.Provider{
		ID:         id,
		URL:        "https://" + name + ".example.com/v1",
		Key:        "sk-" + name,
		Vendor:     "openai",
		ModelNames: []string{name + "-model", name + "-model-mini"},
		Name:       name,
		Priority:   priority,
	}
}

func okResponse(content string) *domain.ChatResponse {
	return &domain.ChatResponse{
		Content:           content,
		Usage:             &domain.Usage{PromptTokens: 12, CompletionTokens: 7},
		RemainingRequests: 99,
		RemainingTokens:   4000,
	}
}

func rateLimited(context.Context, *domain.ChatRequest) (*domain.ChatResponse, error) {
	return nil, domain.ErrRateLimited
}

func textPrompt() *domain.PromptTemplate {
	return &domain.PromptTemplate{
		ID:      "prompt-1",
		Name:    "translate_title",
		Version: "1.0",
		ModelParameters: domain.ModelParameters{
			Temperature:    0.3,
			MaxTokens:      256,
			ResponseFormat: domain.ResponseFormatText,
		},
		Content: domain.PromptContent{
			SystemPrompt: "You translate Chinese web novel titles.",
			UserPrompt:   "Translate: {text}",
		},
	}
}

func jsonPrompt() *domain.PromptTemplate {
	p := textPrompt()
	p.ID = "prompt-2"
	p.Name = "translate_tags"
	p.ModelParameters.ResponseFormat = domain.ResponseFormatJSONObject
	p.Content.UserPrompt = "Translate each value of {text} and answer in JSON."
	return p
}
