package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/polyglot/internal/observability"
)

// RecordInput carries everything needed to build an outcome.
type RecordInput struct {
	RecordID   string
	ItemID     string
	PromptName string
	Prompt     *PromptTemplate
	Loop       *LoopResult
	StartTime  time.Time
}

// OutcomeRecorder persists the terminal outcome of a translation.
type OutcomeRecorder struct {
	store   OutcomeStore
	clock   Clock
	metrics *observability.Metrics
}

// NewOutcomeRecorder creates a new recorder.
func NewOutcomeRecorder(store OutcomeStore, clock Clock, metrics *observability.Metrics) *OutcomeRecorder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &OutcomeRecorder{
		store:   store,
		clock:   clock,
		metrics: metrics,
	}
}

// Record builds the outcome from the loop result and inserts it. The
// returned outcome is populated even when the insert fails.
func (r *OutcomeRecorder) Record(ctx context.Context, in RecordInput) (*TranslationOutcome, error) {
	outcome := r.build(in)

	r.metrics.IncOutcome(string(outcome.Status))

	logger := observability.FromContext(ctx)
	if err := r.store.Insert(ctx, outcome); err != nil {
		logger.Error("failed to persist outcome",
			observability.String("outcome_id", outcome.ID),
			observability.Error(err))
		return outcome, fmt.Errorf("failed to persist outcome: %w", err)
	}

	logger.Info("translation outcome recorded",
		observability.String("outcome_id", outcome.ID),
		observability.String("status", string(outcome.Status)),
		observability.Int("attempts", outcome.Attempts),
		observability.Duration("total_time_taken", outcome.CallMetadata.TotalTimeTaken))

	return outcome, nil
}

func (r *OutcomeRecorder) build(in RecordInput) *TranslationOutcome {
	loop := in.Loop
	if loop == nil {
		loop = &LoopResult{Status: StatusFailed, Err: errors.New("translation did not run")}
	}

	outcome := &TranslationOutcome{
		ID:         uuid.NewString(),
		Status:     loop.Status,
		RecordID:   in.RecordID,
		ItemID:     in.ItemID,
		PromptName: in.PromptName,
		ModelName:  loop.Model,
		Attempts:   loop.Attempts,
		CallMetadata: LLMCallResult{
			RemainingRequests: UnknownQuota,
			RemainingTokens:   UnknownQuota,
		},
	}

	if loop.Provider != nil {
		outcome.ProviderName = loop.Provider.Name
	}
	if in.Prompt != nil {
		outcome.PromptID = in.Prompt.ID
		outcome.PromptName = in.Prompt.Name
	}

	switch {
	case loop.Status == StatusCompleted && loop.Result != nil:
		outcome.CallMetadata = *loop.Result
	case loop.Status == StatusCompleted:
		outcome.Status = StatusFailed
		outcome.ErrorMessage = ErrNoResponse.Error()
	default:
		outcome.Status = StatusFailed
		if loop.Err != nil {
			outcome.ErrorMessage = loop.Err.Error()
		} else {
			outcome.ErrorMessage = "translation failed"
		}
	}

	end := r.clock.Now()
	start := in.StartTime
	if start.IsZero() {
		start = end
	}
	outcome.CallMetadata.StartTime = start
	outcome.CallMetadata.EndTime = end
	outcome.CallMetadata.TotalTimeTaken = end.Sub(start)

	return outcome
}
