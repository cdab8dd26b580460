package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Recomputed()
	m.Recomputed()
	m.Notified(3)
	m.Refreshed(OutcomeApplied, 10*time.Millisecond)
	m.Refreshed(OutcomeDiscarded, time.Millisecond)
	m.Refreshed(OutcomeDiscarded, time.Millisecond)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	if got := testutil.ToFloat64(m.recomputations); got != 2 {
		t.Errorf("recomputations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.notifications); got != 3 {
		t.Errorf("notifications = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.refreshes.WithLabelValues(OutcomeDiscarded)); got != 2 {
		t.Errorf("discarded refreshes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sessions); got != 1 {
		t.Errorf("sessions = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Recomputed()
	m.Notified(1)
	m.Refreshed(OutcomeFailed, time.Second)
	m.SessionOpened()
	m.SessionClosed()
}
