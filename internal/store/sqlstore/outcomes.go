package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/davidbz/polyglot/internal/domain"
)

const outcomesTable = "translation_outcomes"

//nolint:gochecknoglobals // column list shared by every outcome query
var outcomeColumns = []string{
	"id", "status", "error_message", "record_id", "item_id", "provider_name", "model_name",
	"prompt_id", "prompt_name", "attempts", "response_content", "input_tokens", "output_tokens",
	"remaining_requests", "remaining_tokens", "start_time", "end_time", "total_time_taken_ms",
}

// OutcomeStore appends translation outcomes to the translation_outcomes table.
type OutcomeStore struct {
	db *DB
}

// NewOutcomeStore creates an outcome store on db.
func NewOutcomeStore(db *DB) *OutcomeStore {
	return &OutcomeStore{db: db}
}

// Insert stores a new outcome.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.TranslationOutcome) error {
	var content any
	if !o.CallMetadata.Content.IsZero() {
		encoded, err := json.Marshal(o.CallMetadata.Content)
		if err != nil {
			return fmt.Errorf("encode response content: %w", err)
		}
		content = string(encoded)
	}

	meta := o.CallMetadata
	query, args, err := s.db.SQ.Insert(outcomesTable).
		Columns(outcomeColumns...).
		Values(
			o.ID, string(o.Status), nullString(o.ErrorMessage), o.RecordID, nullString(o.ItemID),
			nullString(o.ProviderName), nullString(o.ModelName), nullString(o.PromptID), nullString(o.PromptName),
			o.Attempts, content, nullInt(meta.InputTokens), nullInt(meta.OutputTokens),
			meta.RemainingRequests, meta.RemainingTokens,
			s.db.timeArg(meta.StartTime), s.db.timeArg(meta.EndTime), meta.TotalTimeTaken.Milliseconds(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outcome insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert outcome %s: %w", o.ID, err)
	}
	return nil
}

// Get returns the outcome with the given id.
func (s *OutcomeStore) Get(ctx context.Context, id string) (*domain.TranslationOutcome, error) {
	query, args, err := s.db.SQ.Select(outcomeColumns...).From(outcomesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outcome query: %w", err)
	}

	o, err := scanOutcome(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOutcomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome %s: %w", id, err)
	}
	return o, nil
}

// ListByRecord returns the outcomes of a record, oldest first.
func (s *OutcomeStore) ListByRecord(ctx context.Context, recordID string) ([]*domain.TranslationOutcome, error) {
	query, args, err := s.db.SQ.Select(outcomeColumns...).From(outcomesTable).
		Where(sq.Eq{"record_id": recordID}).
		OrderBy("end_time", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outcome query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.TranslationOutcome, 0)
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outcomes: %w", err)
	}
	return out, nil
}

func scanOutcome(row rowScanner) (*domain.TranslationOutcome, error) {
	var o domain.TranslationOutcome
	var status string
	var errorMessage, itemID, providerName, modelName, promptID, promptName, content sql.NullString
	var inputTokens, outputTokens sql.NullInt64
	var start, end nullTime
	var elapsedMS int64

	err := row.Scan(
		&o.ID, &status, &errorMessage, &o.RecordID, &itemID, &providerName, &modelName,
		&promptID, &promptName, &o.Attempts, &content, &inputTokens, &outputTokens,
		&o.CallMetadata.RemainingRequests, &o.CallMetadata.RemainingTokens, &start, &end, &elapsedMS,
	)
	if err != nil {
		return nil, err
	}

	o.Status = domain.Status(status)
	o.ErrorMessage = errorMessage.String
	o.ItemID = itemID.String
	o.ProviderName = providerName.String
	o.ModelName = modelName.String
	o.PromptID = promptID.String
	o.PromptName = promptName.String

	if content.Valid {
		if err := json.Unmarshal([]byte(content.String), &o.CallMetadata.Content); err != nil {
			return nil, fmt.Errorf("decode response content of %s: %w", o.ID, err)
		}
	}
	if inputTokens.Valid {
		v := int(inputTokens.Int64)
		o.CallMetadata.InputTokens = &v
	}
	if outputTokens.Valid {
		v := int(outputTokens.Int64)
		o.CallMetadata.OutputTokens = &v
	}

	o.CallMetadata.StartTime = start.Time
	o.CallMetadata.EndTime = end.Time
	o.CallMetadata.TotalTimeTaken = time.Duration(elapsedMS) * time.Millisecond
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
