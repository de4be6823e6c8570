package echo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/provider/echo"
)

func TestClient_Chat(t *testing.T) {
	ctx := context.Background()

	t.Run("should echo messages as text", func(t *testing.T) {
		client := echo.NewClient(&domain.Provider{Name: "local"})

		resp, err := client.Chat(ctx, &domain.ChatRequest{
			Model:    "echo4",
			Messages: []domain.Message{{Role: "user", Content: "Hello world"}},
		})

		require.NoError(t, err)
		require.Equal(t, "[user]: Hello world\n", resp.Content)
		require.Equal(t, 3, resp.Usage.PromptTokens) // "[user]:" "Hello" "world"
		require.Equal(t, 3, resp.Usage.CompletionTokens)
		require.Equal(t, domain.UnknownQuota, resp.RemainingRequests)
	})

	t.Run("should echo a JSON object for structured formats", func(t *testing.T) {
		client := echo.NewClient(nil)

		resp, err := client.Chat(ctx, &domain.ChatRequest{
			Messages: []domain.Message{
				{Role: "system", Content: "be brief"},
				{Role: "user", Content: "你好"},
			},
			ResponseFormat: domain.ResponseFormatJSONObject,
		})

		require.NoError(t, err)
		fields, err := domain.ParseStructuredContent(resp.Content)
		require.NoError(t, err)
		require.Equal(t, map[string]any{"system": "be brief", "user": "你好"}, fields)
	})

	t.Run("should return empty content without messages", func(t *testing.T) {
		resp, err := echo.NewClient(nil).Chat(ctx, &domain.ChatRequest{})
		require.NoError(t, err)
		require.Empty(t, resp.Content)
		require.Equal(t, 0, resp.Usage.PromptTokens)
	})

	t.Run("should reject nil requests", func(t *testing.T) {
		resp, err := echo.NewClient(nil).Chat(ctx, nil)
		require.Error(t, err)
		require.Nil(t, resp)
		require.Contains(t, err.Error(), "request cannot be nil")
	})
}

func TestBuilder(t *testing.T) {
	t.Run("should build a chat client", func(t *testing.T) {
		client, err := echo.Builder(context.Background(), &domain.Provider{Name: "local"})
		require.NoError(t, err)
		require.NotNil(t, client)
	})
}
