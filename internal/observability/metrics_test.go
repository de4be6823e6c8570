package observability_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/polyglot/internal/observability"
)

func TestMetrics(t *testing.T) {
	t.Run("should count attempts failovers and outcomes", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m, err := observability.NewMetrics(reg)
		require.NoError(t, err)

		m.ObserveAttempt("primary", "gpt-4o-mini", "rate_limited", 120*time.Millisecond)
		m.ObserveAttempt("backup", "gpt-4o-mini", "success", 300*time.Millisecond)
		m.IncFailover("primary")
		m.IncOutcome("completed")

		count, err := testutil.GatherAndCount(reg, "polyglot_llm_attempts_total")
		require.NoError(t, err)
		require.Equal(t, 2, count)

		count, err = testutil.GatherAndCount(reg, "polyglot_provider_failovers_total")
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("should fail on duplicate registration", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		_, err := observability.NewMetrics(reg)
		require.NoError(t, err)

		_, err = observability.NewMetrics(reg)
		require.Error(t, err)
	})

	t.Run("should tolerate nil metrics", func(t *testing.T) {
		var m *observability.Metrics
		require.NotPanics(t, func() {
			m.ObserveAttempt("p", "m", "success", time.Second)
			m.IncFailover("p")
			m.IncOutcome("failed")
		})
	})
}
