package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/domain/allocation"
)

func TestObserveAllocation(t *testing.T) {
	m := New()

	m.ObserveAllocation(allocation.FEFO, allocation.OutcomeFulfilled, 0)
	m.ObserveAllocation(allocation.FEFO, allocation.OutcomePartial, 2)
	m.ObserveAllocation(allocation.FEFO, allocation.OutcomePartial, 3)
	m.ObserveConflict(allocation.LIFO)
	m.ObserveAttempts(allocation.LIFO, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("FEFO", "fulfilled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocations.WithLabelValues("FEFO", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("LIFO")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.shortfall))
	assert.Equal(t, 1, testutil.CollectAndCount(m.attempts))
}

func TestTracker(t *testing.T) {
	m := New()

	assert.NoError(t, m.Track("notifications:low_stock").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("notifications:low_stock").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("notifications:low_stock", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("notifications:low_stock", "failure")))

	var nilTracker *Tracker
	assert.ErrorIs(t, nilTracker.End(boom), boom)
}

func TestHandler(t *testing.T) {
	m := New()
	m.RegisterGaugeFunc("db_pool_acquired_conns", "Acquired connections", func() float64 { return 3 })
	m.ObserveAllocation(allocation.FIFO, allocation.OutcomeFulfilled, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `lotkeeper_allocations_total{outcome="fulfilled",strategy="FIFO"} 1`)
	assert.Contains(t, body, "lotkeeper_db_pool_acquired_conns 3")
	assert.Contains(t, body, "go_goroutines")
}
