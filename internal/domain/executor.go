package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/davidbz/polyglot/internal/observability"
)

// CallParams are the inputs of a single LLM call.
type CallParams struct {
	UserPrompt     string
	SystemPrompt   string
	Temperature    float64
	MaxTokens      int
	ResponseFormat ResponseFormat
	// RequireUsage turns missing token accounting into ErrNoUsage.
	RequireUsage bool
}

// CallExecutor issues LLM calls against the currently selected provider and
// keeps the provider's rate-limit bookkeeping in the store up to date.
//
// An executor holds per-invocation state and must not be shared between
// concurrent translations.
type CallExecutor struct {
	store    ProviderStore
	selector *ProviderSelector
	factory  ClientFactory
	clock    Clock
	cooldown time.Duration
	metrics  *observability.Metrics

	provider *Provider
	model    string
	client   ChatClient
}

// NewCallExecutor creates an executor with no active provider.
func NewCallExecutor(
	store ProviderStore,
	factory ClientFactory,
	clock Clock,
	cooldown time.Duration,
	metrics *observability.Metrics,
) *CallExecutor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CallExecutor{
		store:    store,
		selector: NewProviderSelector(store, clock),
		factory:  factory,
		clock:    clock,
		cooldown: cooldown,
		metrics:  metrics,
	}
}

// SelectProvider picks the preferred available provider, activates its first
// model and binds a fresh client to it.
func (e *CallExecutor) SelectProvider(ctx context.Context) error {
	provider, err := e.selector.Select(ctx)
	if err != nil {
		return err
	}

	client, err := e.factory.NewClient(ctx, provider)
	if err != nil {
		return fmt.Errorf("failed to set up client for %s: %w", provider.Name, err)
	}

	e.provider = provider
	e.model = provider.ModelNames[0]
	e.client = client

	observability.FromContext(ctx).Info("done setting up client",
		observability.String("vendor", provider.Vendor),
		observability.String("provider_name", provider.Name),
		observability.String("active_model", e.model),
		observability.Int("priority", provider.Priority))

	return nil
}

// Provider returns the active provider, or nil before the first selection.
func (e *CallExecutor) Provider() *Provider {
	return e.provider
}

// Model returns the active model name.
func (e *CallExecutor) Model() string {
	return e.model
}

// Call sends one request to the active provider and parses the response.
func (e *CallExecutor) Call(ctx context.Context, params CallParams) (*LLMCallResult, error) {
	if e.client == nil || e.provider == nil {
		return nil, errors.New("no active provider selected")
	}

	ctx = observability.WithModel(observability.WithProvider(ctx, e.provider.Name), e.model)
	logger := observability.FromContext(ctx)
	logger.Debug("calling provider")

	messages := make([]Message, 0, 2)
	if params.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: params.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: params.UserPrompt})

	start := e.clock.Now()
	resp, err := e.client.Chat(ctx, &ChatRequest{
		Model:          e.model,
		Messages:       messages,
		Temperature:    params.Temperature,
		MaxTokens:      params.MaxTokens,
		ResponseFormat: params.ResponseFormat,
	})
	end := e.clock.Now()

	result, err := e.interpret(resp, err, params)
	e.metrics.ObserveAttempt(e.provider.Name, e.model, ClassifyError(err).String(), end.Sub(start))

	switch {
	case err == nil:
		e.updateProvider(ctx, func(p *Provider) { p.MarkUsed(end) })
	case errors.Is(err, ErrRateLimited):
		logger.Warn("provider rate limited, marking exhausted",
			observability.Duration("cooldown", e.cooldown))
		e.updateProvider(ctx, func(p *Provider) { p.MarkExhausted(end, e.cooldown) })
		return nil, err
	default:
		logger.Error("provider call failed", observability.Error(err))
		return nil, err
	}

	result.StartTime = start
	result.EndTime = end
	result.TotalTimeTaken = end.Sub(start)

	logger.Debug("provider call succeeded",
		observability.Int("remaining_requests", result.RemainingRequests),
		observability.Int("remaining_tokens", result.RemainingTokens))

	return result, nil
}

// interpret turns a raw chat response into a call result or a typed error.
func (e *CallExecutor) interpret(resp *ChatResponse, err error, params CallParams) (*LLMCallResult, error) {
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return nil, fmt.Errorf("%s, model: %s: %w", e.provider, e.model, err)
		}
		return nil, fmt.Errorf("llm call failed: %w", err)
	}

	if resp == nil || resp.Content == "" {
		return nil, fmt.Errorf("%w: %s, model: %s", ErrNoResponse, e.provider, e.model)
	}

	result := &LLMCallResult{
		RemainingRequests: resp.RemainingRequests,
		RemainingTokens:   resp.RemainingTokens,
	}

	if resp.Usage != nil {
		input, output := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
		result.InputTokens = &input
		result.OutputTokens = &output
	} else if params.RequireUsage {
		return nil, fmt.Errorf("%w: %s, model: %s", ErrNoUsage, e.provider, e.model)
	}

	if params.ResponseFormat.IsStructured() {
		fields, parseErr := ParseStructuredContent(resp.Content)
		if parseErr != nil {
			return nil, parseErr
		}
		result.Content = ResponseContent{Fields: fields}
	} else {
		result.Content = ResponseContent{Text: resp.Content}
	}

	return result, nil
}

// updateProvider applies mutate to the freshest stored copy of the active
// provider and writes it back.
func (e *CallExecutor) updateProvider(ctx context.Context, mutate func(*Provider)) {
	logger := observability.FromContext(ctx)

	current, err := e.store.Get(ctx, e.provider.ID)
	if err != nil {
		logger.Warn("failed to reload provider, updating local copy", observability.Error(err))
		current = e.provider.Clone()
	}

	mutate(current)

	if err := e.store.Persist(ctx, current); err != nil {
		logger.Error("failed to persist provider state", observability.Error(err))
	}

	e.provider = current
}

// ParseStructuredContent decodes content as a JSON object. A single
// surrounding markdown code fence is tolerated.
func ParseStructuredContent(content string) (map[string]any, error) {
	body := stripCodeFence(content)

	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: content is not valid JSON", ErrInvalidStructuredOutput)
	}

	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrInvalidStructuredOutput, parsed.Type)
	}

	fields, ok := parsed.Value().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: unexpected decoded type", ErrInvalidStructuredOutput)
	}

	return fields, nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return trimmed
	}

	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "```"), "```")
	// Drop an optional language tag on the opening fence line.
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "{[") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
