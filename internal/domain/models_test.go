package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/polyglot/internal/domain"
)

func TestProvider_Cooldown(t *testing.T) {
	t.Run("should stay excluded until the cooldown elapses", func(t *testing.T) {
		exhaustedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		cooldown := 24 * time.Hour

		p := newProvider("a", "primary", 1)
		require.True(t, p.IsAvailable(exhaustedAt))

		p.MarkExhausted(exhaustedAt, cooldown)

		require.False(t, p.IsAvailable(exhaustedAt))
		require.False(t, p.IsAvailable(exhaustedAt.Add(cooldown-time.Nanosecond)))
		require.True(t, p.IsAvailable(exhaustedAt.Add(cooldown)))
		require.True(t, p.IsAvailable(exhaustedAt.Add(cooldown+time.Minute)))
	})

	t.Run("should update counters", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		p := newProvider("a", "primary", 1)

		p.MarkUsed(now)
		p.MarkUsed(now.Add(time.Second))
		require.Equal(t, int64(2), p.RateLimit.RequestsMade)
		require.Equal(t, int64(2), p.RateLimit.RequestsSinceReset)
		require.False(t, p.RateLimit.IsRateLimited)

		p.MarkExhausted(now.Add(2*time.Second), time.Hour)
		require.Equal(t, int64(3), p.RateLimit.RequestsMade)
		require.Equal(t, int64(0), p.RateLimit.RequestsSinceReset)
		require.True(t, p.RateLimit.IsRateLimited)
		require.Equal(t, now.Add(2*time.Second), p.RateLimit.LastRequestTime)
	})
}

func TestProvider_String(t *testing.T) {
	t.Run("should not leak the key", func(t *testing.T) {
		p := newProvider("a", "primary", 1)
		require.NotContains(t, p.String(), p.Key)
		require.Contains(t, p.String(), "primary")
	})
}

func TestProvider_Validate(t *testing.T) {
	t.Run("should accept a complete provider", func(t *testing.T) {
		require.NoError(t, domain.Validate(newProvider("a", "primary", 1)))
	})

	t.Run("should report every missing field", func(t *testing.T) {
		err := domain.Validate(&domain.Provider{URL: "not a url", ModelNames: []string{}})

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "Provider.URL")
		require.Contains(t, verr.Fields, "Provider.Key")
		require.Contains(t, verr.Fields, "Provider.Name")
		require.Contains(t, verr.Fields, "Provider.Vendor")
		require.Contains(t, verr.Fields, "Provider.ModelNames")
	})
}

func TestResponseContent_JSON(t *testing.T) {
	t.Run("should encode text as a string", func(t *testing.T) {
		data, err := json.Marshal(domain.ResponseContent{Text: "Hello"})
		require.NoError(t, err)
		require.JSONEq(t, `"Hello"`, string(data))
	})

	t.Run("should encode fields as an object", func(t *testing.T) {
		data, err := json.Marshal(domain.ResponseContent{Fields: map[string]any{"title": "Hello"}})
		require.NoError(t, err)
		require.JSONEq(t, `{"title":"Hello"}`, string(data))

		var decoded domain.ResponseContent
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.True(t, decoded.IsStructured())
		require.Equal(t, "Hello", decoded.Fields["title"])
	})

	t.Run("should encode empty content as null", func(t *testing.T) {
		data, err := json.Marshal(domain.ResponseContent{})
		require.NoError(t, err)
		require.Equal(t, "null", string(data))
	})
}
