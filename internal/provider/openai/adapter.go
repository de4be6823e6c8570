// Package openai provides a chat client for OpenAI-compatible endpoints using
// the official SDK. It converts between domain and SDK types, reads the
// remaining-quota headers and maps HTTP 429 onto domain.ErrRateLimited.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/observability"
)

const (
	// VendorName is the vendor key this adapter registers under.
	VendorName = "openai"

	headerRemainingRequests = "x-ratelimit-remaining-requests"
	headerRemainingTokens   = "x-ratelimit-remaining-tokens"
)

// Client implements domain.ChatClient for one provider.
type Client struct {
	client   openai.Client
	provider string
}

// NewClient creates a client bound to the provider's URL and key.
func NewClient(provider *domain.Provider, config Config) (*Client, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if provider.Key == "" {
		return nil, fmt.Errorf("API key is required for provider %s", provider.Name)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(provider.Key),
		option.WithMaxRetries(max(config.MaxRetries, 0)),
	}

	if provider.URL != "" {
		opts = append(opts, option.WithBaseURL(provider.URL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Client{
		client:   openai.NewClient(opts...),
		provider: provider.Name,
	}, nil
}

// NewBuilder returns a registry builder producing clients with config.
func NewBuilder(config Config) func(context.Context, *domain.Provider) (domain.ChatClient, error) {
	return func(_ context.Context, provider *domain.Provider) (domain.ChatClient, error) {
		return NewClient(provider, config)
	}
}

// Chat sends one chat-completions request.
func (c *Client) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling chat completions API")

	var httpResp *http.Response
	resp, err := c.client.Chat.Completions.New(ctx, toSDKParams(req), option.WithResponseInto(&httpResp))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Error())
		}
		return nil, fmt.Errorf("chat completions call to %s failed: %w", c.provider, err)
	}

	out := &domain.ChatResponse{
		RemainingRequests: domain.UnknownQuota,
		RemainingTokens:   domain.UnknownQuota,
	}

	if httpResp != nil {
		out.RemainingRequests = parseQuotaHeader(httpResp.Header, headerRemainingRequests)
		out.RemainingTokens = parseQuotaHeader(httpResp.Header, headerRemainingTokens)
	}

	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
	}

	usage := resp.Usage
	if resp.JSON.Usage.Valid() {
		out.Usage = &domain.Usage{
			PromptTokens:     int(usage.PromptTokens),
			CompletionTokens: int(usage.CompletionTokens),
		}
	}

	logger.Debug("chat completions call succeeded",
		observability.Int("prompt_tokens", int(usage.PromptTokens)),
		observability.Int("completion_tokens", int(usage.CompletionTokens)),
		observability.Int("remaining_requests", out.RemainingRequests))

	return out, nil
}

// toSDKParams converts a domain request to SDK ChatCompletionNewParams.
func toSDKParams(req *domain.ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			messages[i] = openai.AssistantMessage(msg.Content)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.ResponseFormat.IsStructured() {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params
}

func parseQuotaHeader(header http.Header, name string) int {
	raw := header.Get(name)
	if raw == "" {
		return domain.UnknownQuota
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return domain.UnknownQuota
	}
	return value
}
