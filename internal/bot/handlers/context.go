package handlers

import (
	"context"
	"time"

	"flight-price-checker/internal/bot/scheduler"
	"flight-price-checker/internal/config"
	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"

	"go.uber.org/zap"
)

const dbTimeout = 10 * time.Second

const errorMessage = "😔 Something went wrong. Please try again later."

// CycleStats reads the last cycle report another replica may have run.
type CycleStats interface {
	GetCycleReport(ctx context.Context) (*models.CycleReport, error)
}

// Context contains deps for all handlers
type Context struct {
	Registry *monitor.Registry
	Store    monitor.Store
	Checker  *scheduler.PriceChecker
	Stats    CycleStats
	Config   *config.Config
	Logger   *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (h *Context) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// userConfig returns the owner's config, creating the default one on first
// use.
func (h *Context) userConfig(ctx context.Context, ownerID int64) (*models.UserConfig, error) {
	cfg, err := h.Store.GetUserConfig(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg = models.DefaultUserConfig(ownerID, h.now())
	if err := h.Store.SaveUserConfig(ctx, cfg); err != nil {
		return nil, err
	}

	h.Logger.Info("default user config created", zap.Int64("user_id", ownerID))
	return cfg, nil
}
