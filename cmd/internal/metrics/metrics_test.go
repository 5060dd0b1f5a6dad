package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "4xx", StatusClass(401))
	assert.Equal(t, "error", StatusClass(0))
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("GET", 200)
	m.ObserveRequest("GET", 200)
	m.ObserveRequest("POST", 401)
	m.ObserveRefresh(RefreshOK, 3)
	m.ObserveEvent("match")
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(RefreshOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))

	n, err := testutil.GatherAndCount(reg, "vivahvows_gateway_refresh_waiters")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", 200)
	m.ObserveRefresh(RefreshFailed, 0)
	m.ObserveEvent("like")
	m.ConnOpened()
	m.ConnClosed()
}

func TestNew_TwoInstancesDoNotCollide(t *testing.T) {
	require.NotPanics(t, func() {
		_ = New(nil)
		_ = New(nil)
	})
}
