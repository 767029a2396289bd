package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Cycle("completed", 3*time.Second)
	m.Cycle("skipped", 0)
	m.Check("price_dropped")
	m.Check("price_dropped")
	m.Notification("sent")
	m.Removed("expired", 2)
	m.Removed("deleted", 0)
	m.PoolOccupancy("fetch", 4)
	m.SetActiveMonitors(9)
	m.FetchRetry()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("price_dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweeperRemovedTotal.WithLabelValues("expired")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SweeperRemovedTotal.WithLabelValues("deleted")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PoolInFlight.WithLabelValues("fetch")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.ActiveMonitors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRetriesTotal))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Cycle("completed", time.Second)
		m.Check("no_match")
		m.Notification("failed")
		m.Removed("deleted", 1)
		m.PoolOccupancy("store", 1)
		m.SetActiveMonitors(1)
		m.FetchRetry()
	})
}
