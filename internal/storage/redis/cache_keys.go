package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flight-price-checker/internal/models"
)

const (
	RateLimitWindowTTL = 1 * time.Minute
	CycleReportTTL     = 24 * time.Hour
)

func RateLimitKey(userID int64) string {
	return fmt.Sprintf("ratelimit:user:%d", userID)
}

func CycleReportKey() string {
	return "flights:cycle:last"
}

func (c *Cache) IncrementUserRateLimit(ctx context.Context, userID int64) (int64, error) {
	key := RateLimitKey(userID)
	return c.IncrementWithExpiry(ctx, key, RateLimitWindowTTL)
}

func (c *Cache) GetUserRateLimit(ctx context.Context, userID int64) (int64, error) {
	key := RateLimitKey(userID)
	return c.GetInt(ctx, key)
}

// SaveCycleReport keeps the last cycle report for the admin surfaces of
// every replica.
func (c *Cache) SaveCycleReport(ctx context.Context, report *models.CycleReport) error {
	return c.Set(ctx, CycleReportKey(), report, CycleReportTTL)
}

// GetCycleReport returns the last saved cycle report, or nil when none is
// cached.
func (c *Cache) GetCycleReport(ctx context.Context) (*models.CycleReport, error) {
	var report models.CycleReport
	err := c.Get(ctx, CycleReportKey(), &report)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}
