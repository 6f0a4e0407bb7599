package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestPrometheus_Counters verifies that every recorder method moves its collector.
func TestPrometheus_Counters(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()

	p.TriggerRegistered("normal")
	p.TriggerRegistered("normal")
	p.TriggerRegistered("snooze")
	p.TriggerDeduplicated()
	p.AttemptGraded("failed")
	p.SessionFinished("dismissed")

	require.InDelta(t, 2, testutil.ToFloat64(p.triggersRegistered.WithLabelValues("normal")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.triggersRegistered.WithLabelValues("snooze")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.triggersDeduplicated), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.attemptsGraded.WithLabelValues("failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.sessionsFinished.WithLabelValues("dismissed")), 0)
}

// TestPrometheus_Handler ensures the exposition endpoint lists the collectors.
func TestPrometheus_Handler(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.TriggerDeduplicated()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alarm_clock_triggers_deduplicated_total 1")
}
