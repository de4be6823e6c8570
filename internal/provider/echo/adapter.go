// Package echo provides an offline chat client that echoes back input messages.
// It implements domain.ChatClient without making external API calls,
// providing deterministic responses for testing and local development.
package echo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/observability"
)

// VendorName is the vendor key this client registers under.
const VendorName = "echo"

// Client implements domain.ChatClient by echoing the request.
type Client struct {
	provider string
}

// NewClient creates a new echo client. No credentials are used.
func NewClient(provider *domain.Provider) *Client {
	name := VendorName
	if provider != nil && provider.Name != "" {
		name = provider.Name
	}
	return &Client{provider: name}
}

// Builder is a registry builder for echo clients.
func Builder(_ context.Context, provider *domain.Provider) (domain.ChatClient, error) {
	return NewClient(provider), nil
}

// Chat returns the request messages as content. Structured formats get a
// JSON object keyed by role.
func (c *Client) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("echoing request", observability.String("echo_provider", c.provider))

	content, err := buildEchoContent(req.Messages, req.ResponseFormat)
	if err != nil {
		return nil, err
	}

	// Simple word-based counting.
	tokens := countTokens(content)

	return &domain.ChatResponse{
		Content: content,
		Usage: &domain.Usage{
			PromptTokens:     tokens,
			CompletionTokens: tokens,
		},
		RemainingRequests: domain.UnknownQuota,
		RemainingTokens:   domain.UnknownQuota,
	}, nil
}

func buildEchoContent(messages []domain.Message, format domain.ResponseFormat) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	if format.IsStructured() {
		fields := make(map[string]string, len(messages))
		for _, msg := range messages {
			fields[msg.Role] = msg.Content
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return "", fmt.Errorf("failed to encode echo content: %w", err)
		}
		return string(encoded), nil
	}

	var builder strings.Builder
	for _, msg := range messages {
		builder.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Content))
	}
	return builder.String(), nil
}

func countTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
