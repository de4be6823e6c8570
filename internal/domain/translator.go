package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/polyglot/internal/observability"
)

// TranslateRequest is one unit of work handed to the translator. Payload may
// be any JSON value; only a missing payload is rejected.
type TranslateRequest struct {
	Payload       any    `json:"payload"`
	PromptName    string `json:"prompt_name"              validate:"required"`
	PromptVersion string `json:"prompt_version,omitempty"`
	RecordID      string `json:"record_id"                validate:"required"`
	ItemID        string `json:"item_id,omitempty"`
	// LenientUsage accepts responses without token accounting.
	LenientUsage bool `json:"lenient_usage,omitempty"`
}

// Translator resolves a prompt, runs the failover loop and records the
// outcome.
type Translator struct {
	providers  ProviderStore
	prompts    PromptStore
	factory    ClientFactory
	recorder   *OutcomeRecorder
	controller *FailoverController
	clock      Clock
	metrics    *observability.Metrics
	cooldown   time.Duration
}

// TranslatorOption customizes a Translator.
type TranslatorOption func(*translatorOptions)

type translatorOptions struct {
	clock          Clock
	controllerOpts []ControllerOption
}

// WithClock overrides the wall clock.
func WithClock(clock Clock) TranslatorOption {
	return func(o *translatorOptions) { o.clock = clock }
}

// WithControllerOptions forwards options to the failover controller.
func WithControllerOptions(opts ...ControllerOption) TranslatorOption {
	return func(o *translatorOptions) { o.controllerOpts = append(o.controllerOpts, opts...) }
}

// NewTranslator creates a new translator (DI constructor).
func NewTranslator(
	providers ProviderStore,
	prompts PromptStore,
	outcomes OutcomeStore,
	factory ClientFactory,
	publisher EventPublisher,
	metrics *observability.Metrics,
	cfg *FailoverConfig,
	opts ...TranslatorOption,
) *Translator {
	if cfg == nil {
		defaults := DefaultFailoverConfig()
		cfg = &defaults
	}

	options := translatorOptions{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&options)
	}

	return &Translator{
		providers:  providers,
		prompts:    prompts,
		factory:    factory,
		recorder:   NewOutcomeRecorder(outcomes, options.clock, metrics),
		controller: NewFailoverController(*cfg, publisher, metrics, options.controllerOpts...),
		clock:      options.clock,
		metrics:    metrics,
		cooldown:   cfg.Cooldown,
	}
}

// Translate runs one translation to a terminal outcome. Translation failures
// are reported through a FAILED outcome; the error is non-nil only when the
// request is invalid or the outcome could not be persisted.
func (t *Translator) Translate(ctx context.Context, req *TranslateRequest) (*TranslationOutcome, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx = observability.WithRecordID(ctx, req.RecordID)
	ctx = observability.WithPromptName(ctx, req.PromptName)
	logger := observability.FromContext(ctx)

	start := t.clock.Now()
	logger.Info("translation started", observability.String("item_id", req.ItemID))

	prompt, loop := t.prepare(ctx, req)
	if loop == nil {
		userPrompt, err := RenderUserPrompt(prompt, req.Payload)
		if err != nil {
			loop = &LoopResult{Status: StatusFailed, Err: err}
		} else {
			exec := NewCallExecutor(t.providers, t.factory, t.clock, t.cooldown, t.metrics)
			loop = t.controller.Run(ctx, exec, CallParams{
				UserPrompt:     userPrompt,
				SystemPrompt:   prompt.Content.SystemPrompt,
				Temperature:    prompt.ModelParameters.Temperature,
				MaxTokens:      prompt.ModelParameters.MaxTokens,
				ResponseFormat: prompt.ModelParameters.ResponseFormat,
				RequireUsage:   !req.LenientUsage,
			})
		}
	}

	return t.recorder.Record(ctx, RecordInput{
		RecordID:   req.RecordID,
		ItemID:     req.ItemID,
		PromptName: req.PromptName,
		Prompt:     prompt,
		Loop:       loop,
		StartTime:  start,
	})
}

// validateRequest runs the struct tags and rejects a nil payload. Falsy
// payloads such as 0 or false are valid.
func validateRequest(req *TranslateRequest) error {
	err := Validate(req)
	if req.Payload != nil {
		return err
	}

	var verr *ValidationError
	switch {
	case err == nil:
		verr = &ValidationError{Fields: make(map[string]string, 1)}
	case !errors.As(err, &verr):
		return err
	}
	verr.Fields["TranslateRequest.Payload"] = "TranslateRequest.Payload is required"
	return verr
}

// prepare resolves the prompt. A non-nil LoopResult means the translation
// already failed.
func (t *Translator) prepare(ctx context.Context, req *TranslateRequest) (*PromptTemplate, *LoopResult) {
	prompt, err := t.prompts.Load(ctx, req.PromptName, req.PromptVersion)
	if err != nil {
		return nil, &LoopResult{
			Status: StatusFailed,
			Err:    fmt.Errorf("failed to resolve prompt %q: %w", req.PromptName, err),
		}
	}
	return prompt, nil
}
