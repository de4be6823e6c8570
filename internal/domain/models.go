package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// UnknownQuota is reported when a provider omits remaining-quota headers.
const UnknownQuota = -1

// Provider is one configured LLM backend: endpoint, credential, model list,
// priority and persisted rate-limit state.
type Provider struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"         validate:"required,url"  yaml:"url"`
	Key        string         `json:"key"         validate:"required"      yaml:"key"`
	Vendor     string         `json:"vendor"      validate:"required"      yaml:"provider"`
	ModelNames []string       `json:"model_names" validate:"required,min=1,dive,required" yaml:"model_names"`
	Name       string         `json:"name"        validate:"required"      yaml:"name"`
	Priority   int            `json:"priority"                             yaml:"priority"`
	RateLimit  RateLimitState `json:"rate_limit_info"                      yaml:"-"`
	CreatedAt  time.Time      `json:"created_at"                           yaml:"-"`
	UpdatedAt  time.Time      `json:"updated_at"                           yaml:"-"`
}

// RateLimitState tracks request counters and the cooldown window of a provider.
type RateLimitState struct {
	RequestsMade       int64     `json:"n_requests_made"`
	RequestsSinceReset int64     `json:"n_requests_made_since_last_reset"`
	IsRateLimited      bool      `json:"is_rate_limited"`
	ResetTime          time.Time `json:"rate_limit_reset_time"`
	LastRequestTime    time.Time `json:"last_request_time"`
}

// IsAvailable reports whether the provider's cooldown has elapsed at now.
func (p *Provider) IsAvailable(now time.Time) bool {
	return !p.RateLimit.ResetTime.After(now)
}

// MarkUsed records a successful request made at now.
func (p *Provider) MarkUsed(now time.Time) {
	p.RateLimit.RequestsMade++
	p.RateLimit.RequestsSinceReset++
	p.RateLimit.LastRequestTime = now
	p.RateLimit.IsRateLimited = false
}

// MarkExhausted records a rate-limited request made at now and puts the
// provider into cooldown until now+cooldown.
func (p *Provider) MarkExhausted(now time.Time, cooldown time.Duration) {
	p.RateLimit.RequestsMade++
	p.RateLimit.RequestsSinceReset = 0
	p.RateLimit.IsRateLimited = true
	p.RateLimit.ResetTime = now.Add(cooldown)
	p.RateLimit.LastRequestTime = now
}

// Clone returns a deep copy of the provider.
func (p *Provider) Clone() *Provider {
	if p == nil {
		return nil
	}
	c := *p
	c.ModelNames = append([]string(nil), p.ModelNames...)
	return &c
}

// String describes the provider without its credential.
func (p *Provider) String() string {
	return fmt.Sprintf("Provider: %s, Name: %s, URL: %s", p.Vendor, p.Name, p.URL)
}

// ResponseFormat selects how provider content is interpreted.
type ResponseFormat string

const (
	// ResponseFormatText returns the raw content string.
	ResponseFormatText ResponseFormat = "text"

	// ResponseFormatJSONObject parses the content as a key/value mapping.
	ResponseFormatJSONObject ResponseFormat = "json_object"
)

// IsStructured reports whether content must be parsed as a mapping.
func (f ResponseFormat) IsStructured() bool {
	return f == ResponseFormatJSONObject
}

// ModelParameters are the call parameters stored with a prompt template.
type ModelParameters struct {
	Temperature    float64        `json:"temperature"     validate:"gte=0,lte=2"                         yaml:"temperature"`
	MaxTokens      int            `json:"max_tokens"      validate:"gt=0"                                yaml:"max_tokens"`
	ResponseFormat ResponseFormat `json:"response_format" validate:"omitempty,oneof=text json_object"    yaml:"response_format"`
}

// PromptContent is the system/user prompt pair of a template.
type PromptContent struct {
	SystemPrompt string `json:"system_prompt"                     yaml:"system_prompt"`
	UserPrompt   string `json:"user_prompt"   validate:"required" yaml:"user_prompt"`
}

// PromptTemplate is a named, versioned prompt. It is read-only for the
// translator.
type PromptTemplate struct {
	ID              string          `json:"id"               yaml:"-"`
	Name            string          `json:"prompt_name"      validate:"required" yaml:"prompt_name"`
	Version         string          `json:"prompt_version"   validate:"required" yaml:"prompt_version"`
	Author          string          `json:"author"           yaml:"author"`
	CreatedDate     string          `json:"created_date"     yaml:"created_date"`
	Description     string          `json:"description"      yaml:"description"`
	ModelParameters ModelParameters `json:"model_parameters" yaml:"model_parameters"`
	Content         PromptContent   `json:"prompt_content"   yaml:"prompt_content"`
	Fingerprint     string          `json:"fingerprint"      yaml:"-"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // system, user
	Content string `json:"content"`
}

// ChatRequest is one chat-completions request sent to a provider.
type ChatRequest struct {
	Model          string
	Messages       []Message
	Temperature    float64
	MaxTokens      int
	ResponseFormat ResponseFormat
}

// Usage tracks token consumption reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatResponse is the provider-neutral view of a chat-completions response.
type ChatResponse struct {
	// Content of the first choice; empty when the provider returned none.
	Content string
	// Usage is nil when the provider omitted token accounting.
	Usage             *Usage
	RemainingRequests int
	RemainingTokens   int
}

// ResponseContent holds either raw text or a parsed key/value mapping,
// never both.
type ResponseContent struct {
	Text   string
	Fields map[string]any
}

// IsStructured reports whether the content is a parsed mapping.
func (c ResponseContent) IsStructured() bool {
	return c.Fields != nil
}

// IsZero reports whether no content is present.
func (c ResponseContent) IsZero() bool {
	return c.Fields == nil && c.Text == ""
}

// MarshalJSON encodes text as a JSON string and structured content as an
// object.
func (c ResponseContent) MarshalJSON() ([]byte, error) {
	if c.Fields != nil {
		return json.Marshal(c.Fields)
	}
	if c.Text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *ResponseContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = ResponseContent{}
		return nil
	case data[0] == '{':
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("failed to decode structured content: %w", err)
		}
		*c = ResponseContent{Fields: fields}
		return nil
	default:
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("failed to decode text content: %w", err)
		}
		*c = ResponseContent{Text: text}
		return nil
	}
}

// LLMCallResult is the metadata of one LLM call, attached to an outcome.
type LLMCallResult struct {
	Content           ResponseContent `json:"response_content"`
	InputTokens       *int            `json:"input_tokens,omitempty"`
	OutputTokens      *int            `json:"output_tokens,omitempty"`
	RemainingRequests int             `json:"remaining_requests"`
	RemainingTokens   int             `json:"remaining_tokens"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	TotalTimeTaken    time.Duration   `json:"total_time_taken"`
}

// Status is the lifecycle state of a translation outcome.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether s is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TranslationOutcome is the append-only audit record of one translation
// request.
type TranslationOutcome struct {
	ID           string        `json:"id"`
	Status       Status        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	RecordID     string        `json:"record_id"`
	ItemID       string        `json:"item_id,omitempty"`
	ProviderName string        `json:"provider_name"`
	ModelName    string        `json:"model_name"`
	PromptID     string        `json:"prompt_id"`
	PromptName   string        `json:"prompt_name"`
	Attempts     int           `json:"attempts"`
	CallMetadata LLMCallResult `json:"llm_call_metadata"`
}
