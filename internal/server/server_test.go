package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flight-price-checker/internal/bot/scheduler"
	"flight-price-checker/internal/metrics"
	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"
	"flight-price-checker/internal/server"
	"flight-price-checker/internal/testhelpers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type fakeScheduler struct {
	phase  scheduler.Phase
	report *models.CycleReport
}

func (f fakeScheduler) Phase() scheduler.Phase      { return f.phase }
func (f fakeScheduler) Stats() *models.CycleReport { return f.report }

type env struct {
	store    *testhelpers.MemStore
	registry *monitor.Registry
	deps     server.Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := testhelpers.NewMemStore()
	registry := monitor.NewRegistry(store, 3, nil, zap.NewNop())
	registry.SetClock(func() time.Time { return fixedNow })

	return &env{
		store:    store,
		registry: registry,
		deps: server.Deps{
			Registry:  registry,
			Scheduler: fakeScheduler{phase: scheduler.PhaseIdle},
			Checks:    map[string]server.Pinger{"postgres": pinger{}, "redis": pinger{}},
			Gatherer:  prometheus.NewRegistry(),
			Logger:    zap.NewNop(),
		},
	}
}

func (e *env) create(t *testing.T, owner int64, dst string) *models.Monitor {
	t.Helper()
	m, err := e.registry.Create(context.Background(), owner, models.SearchParams{
		Origin: "ICN", Destination: dst, DepartDate: "20260401", ReturnDate: "20260408",
	}, models.NoFilter())
	require.NoError(t, err)
	return m
}

func do(t *testing.T, deps server.Deps, path string, header ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	w := httptest.NewRecorder()
	server.New(":0", deps).Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)

	w, body := do(t, e.deps, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	e.deps.Checks["postgres"] = pinger{err: errors.New("connection refused")}
	w, body = do(t, e.deps, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "connection refused", checks["postgres"])
	assert.Equal(t, "ok", checks["redis"])
}

func TestMetricsServesRegistry(t *testing.T) {
	e := newEnv(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Check("dropped")
	e.deps.Gatherer = reg

	w, _ := do(t, e.deps, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `flight_checker_scheduler_monitor_checks_total{outcome="dropped"} 1`)
}

func TestListMonitors(t *testing.T) {
	e := newEnv(t)
	e.create(t, 1, "NRT")
	e.create(t, 1, "KIX")
	e.create(t, 2, "FUK")

	w, body := do(t, e.deps, "/api/v1/monitors")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["count"])

	w, body = do(t, e.deps, "/api/v1/monitors?owner_id=2")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])
	first := body["monitors"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "FUK", first["destination"])
	assert.Equal(t, "active", first["status"])

	w, _ = do(t, e.deps, "/api/v1/monitors?owner_id=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMonitorsStoreFailure(t *testing.T) {
	e := newEnv(t)
	e.store.FailOn("ListActiveMonitors", errors.New("db down"))

	w, _ := do(t, e.deps, "/api/v1/monitors")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetMonitor(t *testing.T) {
	e := newEnv(t)
	m := e.create(t, 1, "NRT")

	w, body := do(t, e.deps, "/api/v1/monitors/"+m.ID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, m.ID, body["id"])
	assert.Nil(t, body["lowest_price"])
	assert.Contains(t, body, "overall_lowest_price")

	w, _ = do(t, e.deps, "/api/v1/monitors/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulerStatus(t *testing.T) {
	e := newEnv(t)
	e.deps.Scheduler = fakeScheduler{
		phase:  scheduler.PhaseFetching,
		report: &models.CycleReport{StartedAt: fixedNow, Monitors: 2},
	}

	w, body := do(t, e.deps, "/api/v1/scheduler")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fetching", body["phase"])
	last := body["last_cycle"].(map[string]interface{})
	assert.EqualValues(t, 2, last["monitors"])
}

func TestAPITokenRequired(t *testing.T) {
	e := newEnv(t)
	e.deps.APIToken = "secret"

	w, _ := do(t, e.deps, "/api/v1/scheduler")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, e.deps, "/api/v1/scheduler", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, e.deps, "/api/v1/scheduler", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code)

	// health stays open without a token
	w, _ = do(t, e.deps, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}
