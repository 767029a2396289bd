package monitor

import (
	"context"
	"time"

	"flight-price-checker/internal/models"
)

// Store persists monitors and user configs. Getters return nil, nil for
// missing records. Status transitions are compare-and-set: they report
// false when the record is missing or its status differs from the expected
// one.
type Store interface {
	CreateMonitor(ctx context.Context, m *models.Monitor) error
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	ListActiveMonitors(ctx context.Context, ownerID int64) ([]models.Monitor, error)
	CountActiveMonitors(ctx context.Context, ownerID int64) (int, error)
	// SetMonitorStatus also stamps ended_at with at.
	SetMonitorStatus(ctx context.Context, id string, from, to models.Status, at time.Time) (bool, error)
	// SaveCheck records a check result for an active monitor. Nil fields
	// of res leave the stored values untouched.
	SaveCheck(ctx context.Context, id string, res models.CheckResult) (bool, error)
	ListExpirableMonitors(ctx context.Context, createdBefore time.Time) ([]models.Monitor, error)
	ListPrunableMonitors(ctx context.Context, anchorBefore time.Time) ([]string, error)
	DeleteMonitor(ctx context.Context, id string) error

	GetUserConfig(ctx context.Context, ownerID int64) (*models.UserConfig, error)
	SaveUserConfig(ctx context.Context, cfg *models.UserConfig) error
	TouchUserConfig(ctx context.Context, ownerID int64, usedAt time.Time) error
	ListStaleUserConfigs(ctx context.Context, usedBefore time.Time) ([]int64, error)
	DeleteUserConfig(ctx context.Context, ownerID int64) error

	Ping(ctx context.Context) error
}

// Fetcher returns the current round-trip listings for a search. It must be
// safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, params models.SearchParams) ([]models.Listing, error)
}

// Notifier delivers a text message to a user.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, text string) error
}
