package handlers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"flight-price-checker/internal/bot/handlers"
	"flight-price-checker/internal/config"
	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"
	"flight-price-checker/internal/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const adminID int64 = 999

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*handlers.Context, *testhelpers.MemStore) {
	t.Helper()

	store := testhelpers.NewMemStore()
	logger := zaptest.NewLogger(t)
	registry := monitor.NewRegistry(store, 3, []int64{adminID}, logger)
	registry.SetClock(func() time.Time { return fixedNow })

	return &handlers.Context{
		Registry: registry,
		Store:    store,
		Config:   &config.Config{CheckInterval: 30 * time.Minute},
		Logger:   logger,
		Now:      func() time.Time { return fixedNow },
	}, store
}

func TestStartCreatesDefaultConfig(t *testing.T) {
	h, store := setup(t)
	c := testhelpers.NewTeleContext(1)

	require.NoError(t, handlers.HandleStart(h)(c))
	assert.Contains(t, c.LastSent(), "Test")

	cfg, err := store.GetUserConfig(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, models.DefaultTimeFilter(), cfg.Filter)
	assert.Equal(t, models.NotifyAny, cfg.NotifyPolicy)
}

func TestMonitorCopiesFilterAtCreation(t *testing.T) {
	h, store := setup(t)

	require.NoError(t, handlers.HandleSet(h)(testhelpers.NewTeleContext(1, "outbound", "cutoff", "9")))

	c := testhelpers.NewTeleContext(1, "icn", "nrt", "20260401", "20260408")
	require.NoError(t, handlers.HandleMonitor(h)(c))
	assert.Contains(t, c.LastSent(), "Monitoring started")
	assert.Contains(t, c.LastSent(), "1/3")

	active, err := h.Registry.ListActive(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ICN", active[0].Origin)
	assert.Equal(t, models.FilterCutoff, active[0].Filter.Kind)

	// changing settings later leaves the monitor alone
	require.NoError(t, handlers.HandleSet(h)(testhelpers.NewTeleContext(1, "filter", "none")))
	assert.Equal(t, models.FilterCutoff, store.Monitor(active[0].ID).Filter.Kind)
}

func TestMonitorReplies(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"usage", []string{"ICN"}, "/monitor ORIGIN DEST YYYYMMDD YYYYMMDD"},
		{"past date", []string{"ICN", "NRT", "20250101", "20250108"}, "in the past"},
		{"same airports", []string{"ICN", "ICN", "20260401", "20260408"}, "same"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setup(t)
			c := testhelpers.NewTeleContext(1, tt.args...)

			require.NoError(t, handlers.HandleMonitor(h)(c))
			assert.Contains(t, c.LastSent(), tt.want)
		})
	}
}

func TestMonitorQuota(t *testing.T) {
	h, _ := setup(t)

	for _, dst := range []string{"NRT", "KIX", "FUK"} {
		c := testhelpers.NewTeleContext(1, "ICN", dst, "20260401", "20260408")
		require.NoError(t, handlers.HandleMonitor(h)(c))
	}

	c := testhelpers.NewTeleContext(1, "ICN", "CTS", "20260401", "20260408")
	require.NoError(t, handlers.HandleMonitor(h)(c))
	assert.Contains(t, c.LastSent(), "maximum")
}

func TestMonitorStoreFailure(t *testing.T) {
	h, store := setup(t)
	store.FailOn("GetUserConfig", errors.New("connection refused"))

	c := testhelpers.NewTeleContext(1, "ICN", "NRT", "20260401", "20260408")
	require.NoError(t, handlers.HandleMonitor(h)(c))
	assert.Contains(t, c.LastSent(), "Something went wrong")
}

func TestStatusAndCancelList(t *testing.T) {
	h, _ := setup(t)

	status := testhelpers.NewTeleContext(1)
	require.NoError(t, handlers.HandleStatus(h)(status))
	assert.Contains(t, status.LastSent(), "no active monitors")

	require.NoError(t, handlers.HandleMonitor(h)(testhelpers.NewTeleContext(1, "ICN", "NRT", "20260401", "20260408")))

	status = testhelpers.NewTeleContext(1)
	require.NoError(t, handlers.HandleStatus(h)(status))
	assert.Contains(t, status.LastSent(), "not checked yet")

	list := testhelpers.NewTeleContext(1)
	require.NoError(t, handlers.HandleCancel(h)(list))
	assert.Contains(t, list.LastSent(), "Which monitor")
}

func TestCancelCallback(t *testing.T) {
	h, store := setup(t)
	m, err := h.Registry.Create(context.Background(), 1, models.SearchParams{
		Origin: "ICN", Destination: "NRT", DepartDate: "20260401", ReturnDate: "20260408",
	}, models.NoFilter())
	require.NoError(t, err)

	stranger := testhelpers.NewTeleContext(2)
	stranger.Payload = m.ID
	require.NoError(t, handlers.HandleCancelCallback(h)(stranger))
	require.Len(t, stranger.Responses(), 1)
	assert.True(t, stranger.Responses()[0].ShowAlert)
	assert.True(t, store.Monitor(m.ID).IsActive())

	owner := testhelpers.NewTeleContext(1)
	owner.Payload = m.ID
	require.NoError(t, handlers.HandleCancelCallback(h)(owner))
	require.Len(t, owner.Edited(), 1)
	assert.Contains(t, owner.Edited()[0], "ICN-NRT")
	assert.Equal(t, models.StatusCancelled, store.Monitor(m.ID).Status)

	again := testhelpers.NewTeleContext(1)
	again.Payload = m.ID
	require.NoError(t, handlers.HandleCancelCallback(h)(again))
	assert.Contains(t, again.Edited()[0], "no longer active")
}

func TestSetNotifyPolicy(t *testing.T) {
	h, store := setup(t)

	c := testhelpers.NewTeleContext(1, "notify", "target", "300,000")
	require.NoError(t, handlers.HandleSet(h)(c))
	assert.Contains(t, c.LastSent(), "Saved")

	cfg, err := store.GetUserConfig(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NotifyTarget, cfg.NotifyPolicy)
	require.NotNil(t, cfg.NotifyTarget)
	assert.Equal(t, int64(300000), *cfg.NotifyTarget)

	bad := testhelpers.NewTeleContext(1, "notify", "sometimes")
	require.NoError(t, handlers.HandleSet(h)(bad))
	assert.Contains(t, bad.LastSent(), "notify policy must be")
}

func TestAdminHandlers(t *testing.T) {
	h, _ := setup(t)
	for owner, dst := range map[int64]string{1: "NRT", 2: "KIX"} {
		_, err := h.Registry.Create(context.Background(), owner, models.SearchParams{
			Origin: "ICN", Destination: dst, DepartDate: "20260401", ReturnDate: "20260408",
		}, models.NoFilter())
		require.NoError(t, err)
	}

	all := testhelpers.NewTeleContext(adminID)
	require.NoError(t, handlers.HandleAllStatus(h)(all))
	assert.Contains(t, all.LastSent(), "across 2 users")

	one := testhelpers.NewTeleContext(adminID, "2")
	require.NoError(t, handlers.HandleAllCancel(h)(one))
	assert.Contains(t, one.LastSent(), "Stopped 1 monitors")

	rest := testhelpers.NewTeleContext(adminID)
	require.NoError(t, handlers.HandleAllCancel(h)(rest))
	assert.Contains(t, rest.LastSent(), "Stopped 1 monitors")

	stats := testhelpers.NewTeleContext(adminID)
	require.NoError(t, handlers.HandleStats(h)(stats))
	assert.Contains(t, stats.LastSent(), "No cycle has completed yet")
}

type cachedStats struct{ report *models.CycleReport }

func (s cachedStats) GetCycleReport(context.Context) (*models.CycleReport, error) {
	return s.report, nil
}

func TestStatsFallsBackToCachedReport(t *testing.T) {
	h, _ := setup(t)
	h.Stats = cachedStats{report: &models.CycleReport{
		StartedAt:  fixedNow,
		FinishedAt: fixedNow.Add(time.Minute),
		Monitors:   4,
	}}

	c := testhelpers.NewTeleContext(adminID)
	require.NoError(t, handlers.HandleStats(h)(c))
	assert.Contains(t, c.LastSent(), "Monitors: 4")
}
