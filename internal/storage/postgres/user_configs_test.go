package postgres_test

import (
	"context"
	"testing"

	"flight-price-checker/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserConfig(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(`SELECT \* FROM user_configs WHERE \(owner_id = 42\)`).
		WillReturnRows(sqlmock.NewRows([]string{
			"owner_id", "time_filter", "notify_policy", "notify_threshold", "notify_target", "price_type", "created_at", "last_used_at",
		}).AddRow(
			int64(42),
			[]byte(`{"kind":"windows","outbound":{"windows":["morning1"]},"return":{"windows":["night1"]}}`),
			"target", int64(5000), int64(300000), "both", created, checked,
		))

	cfg, err := store.GetUserConfig(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, models.FilterWindows, cfg.Filter.Kind)
	assert.Equal(t, []models.Window{models.WindowMorning1}, cfg.Filter.Outbound.Windows)
	assert.Equal(t, models.NotifyTarget, cfg.NotifyPolicy)
	require.NotNil(t, cfg.NotifyTarget)
	assert.Equal(t, int64(300000), *cfg.NotifyTarget)
	assert.Equal(t, models.PriceBoth, cfg.PriceType)
	assert.True(t, checked.Equal(cfg.LastUsedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserConfigMissing(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(`FROM user_configs`).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))

	cfg, err := store.GetUserConfig(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestSaveUserConfig(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec(`(?s)INSERT INTO user_configs .+VALUES \(42, '\{"kind":"none".*', 'threshold', 5000, NULL, 'restricted', .+ON CONFLICT \(owner_id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := models.DefaultUserConfig(42, created)
	cfg.Filter = models.NoFilter()
	cfg.NotifyPolicy = models.NotifyThreshold

	require.NoError(t, store.SaveUserConfig(context.Background(), cfg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchUserConfig(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec(`UPDATE .user_configs. SET .last_used_at. = '[^']+' WHERE \(owner_id = 42\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.TouchUserConfig(context.Background(), 42, checked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStaleUserConfigs(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(`SELECT owner_id FROM user_configs WHERE \(last_used_at < '[^']+'\) ORDER BY owner_id`).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(int64(7)).AddRow(int64(9)))

	owners, err := store.ListStaleUserConfigs(context.Background(), created)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, owners)
}

func TestDeleteUserConfig(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec(`DELETE FROM .user_configs. WHERE \(owner_id = 42\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteUserConfig(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}
