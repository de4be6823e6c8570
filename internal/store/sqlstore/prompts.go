package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/davidbz/polyglot/internal/domain"
)

const promptsTable = "prompt_templates"

//nolint:gochecknoglobals // column list shared by every prompt query
var promptColumns = []string{
	"id", "name", "version", "author", "created_date", "description", "temperature", "max_tokens",
	"response_format", "system_prompt", "user_prompt", "fingerprint",
}

// PromptStore persists prompt templates in the prompt_templates table.
type PromptStore struct {
	db *DB
}

// NewPromptStore creates a prompt store on db.
func NewPromptStore(db *DB) *PromptStore {
	return &PromptStore{db: db}
}

// Load returns the named prompt. An empty version selects the most recently
// saved one.
func (s *PromptStore) Load(ctx context.Context, name, version string) (*domain.PromptTemplate, error) {
	q := s.db.SQ.Select(promptColumns...).From(promptsTable).Where(sq.Eq{"name": name})
	if version != "" {
		q = q.Where(sq.Eq{"version": version})
	}
	query, args, err := q.OrderBy("saved_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build prompt query: %w", err)
	}

	var p domain.PromptTemplate
	var author, createdDate, description, responseFormat, systemPrompt, fingerprint sql.NullString

	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Name, &p.Version, &author, &createdDate, &description,
		&p.ModelParameters.Temperature, &p.ModelParameters.MaxTokens, &responseFormat,
		&systemPrompt, &p.Content.UserPrompt, &fingerprint,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPromptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt %s: %w", name, err)
	}

	p.Author = author.String
	p.CreatedDate = createdDate.String
	p.Description = description.String
	p.ModelParameters.ResponseFormat = domain.ResponseFormat(responseFormat.String)
	p.Content.SystemPrompt = systemPrompt.String
	p.Fingerprint = fingerprint.String
	return &p, nil
}

// Save inserts the prompt or replaces the stored name/version pair. A pair
// keeps the id it was first stored with; p.ID is set to that id.
func (s *PromptStore) Save(ctx context.Context, p *domain.PromptTemplate) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	columns := append(append([]string(nil), promptColumns...), "saved_at")
	query, args, err := s.db.SQ.Insert(promptsTable).
		Columns(columns...).
		Values(
			p.ID, p.Name, p.Version, nullString(p.Author), nullString(p.CreatedDate), nullString(p.Description),
			p.ModelParameters.Temperature, p.ModelParameters.MaxTokens, nullString(string(p.ModelParameters.ResponseFormat)),
			nullString(p.Content.SystemPrompt), p.Content.UserPrompt, nullString(p.Fingerprint), s.db.timeArg(time.Now()),
		).
		Suffix("ON CONFLICT (name, version) DO UPDATE SET " +
			"author = excluded.author, created_date = excluded.created_date, description = excluded.description, " +
			"temperature = excluded.temperature, max_tokens = excluded.max_tokens, " +
			"response_format = excluded.response_format, system_prompt = excluded.system_prompt, " +
			"user_prompt = excluded.user_prompt, fingerprint = excluded.fingerprint, saved_at = excluded.saved_at " +
			"RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build prompt upsert: %w", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return fmt.Errorf("failed to save prompt %s: %w", p.Name, err)
	}
	p.ID = id
	return nil
}
