package scheduler

import (
	"context"
	"fmt"
	"time"

	"flight-price-checker/internal/bot/utils"
	"flight-price-checker/internal/config"
	"flight-price-checker/internal/metrics"
	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"
	"flight-price-checker/internal/workerpool"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sweeper enforces data retention. Store fan-out runs on its own pool so it
// never competes with price fetches.
type Sweeper struct {
	registry *monitor.Registry
	store    monitor.Store
	pool     *workerpool.Pool
	notifier monitor.Notifier
	adminIDs []int64

	dataRetention   time.Duration
	configRetention time.Duration

	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewSweeper(
	registry *monitor.Registry,
	store monitor.Store,
	pool *workerpool.Pool,
	notifier monitor.Notifier,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		registry:        registry,
		store:           store,
		pool:            pool,
		notifier:        notifier,
		adminIDs:        cfg.AdminIDs,
		dataRetention:   cfg.DataRetention(),
		configRetention: cfg.ConfigRetention(),
		metrics:         m,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep expires stale active monitors, deletes finished monitors and idle
// user configs past retention, and reports what it did. Failed deletions
// are left for the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) models.SweepReport {
	now := s.now().UTC()
	var (
		report models.SweepReport
		errs   error
	)

	expired, err := s.expireMonitors(ctx, now)
	report.Expired = expired
	errs = multierr.Append(errs, err)

	deleted, err := s.deleteMonitors(ctx, now)
	report.MonitorsDeleted = deleted
	errs = multierr.Append(errs, err)

	configs, err := s.deleteConfigs(ctx, now)
	report.ConfigsDeleted = configs
	errs = multierr.Append(errs, err)

	for _, e := range multierr.Errors(errs) {
		report.Errors = append(report.Errors, e.Error())
	}

	s.metrics.Removed("expired", report.Expired)
	s.metrics.Removed("monitor_deleted", report.MonitorsDeleted)
	s.metrics.Removed("config_deleted", report.ConfigsDeleted)

	if errs != nil {
		s.logger.Error("retention sweep finished with errors",
			zap.Int("expired", report.Expired),
			zap.Int("monitors_deleted", report.MonitorsDeleted),
			zap.Int("configs_deleted", report.ConfigsDeleted),
			zap.Error(errs),
		)
	} else {
		s.logger.Info("retention sweep finished",
			zap.Int("expired", report.Expired),
			zap.Int("monitors_deleted", report.MonitorsDeleted),
			zap.Int("configs_deleted", report.ConfigsDeleted),
		)
	}

	if report.Removed() {
		s.notifyAdmins(ctx, report)
	}

	return report
}

func (s *Sweeper) expireMonitors(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.store.ListExpirableMonitors(ctx, now.Add(-s.dataRetention))
	if err != nil {
		return 0, fmt.Errorf("list expirable monitors: %w", err)
	}

	var (
		expired int
		errs    error
	)
	for _, m := range stale {
		err := s.registry.WithMonitor(m.ID, func() error {
			ok, err := s.store.SetMonitorStatus(ctx, m.ID, models.StatusActive, models.StatusExpired, now)
			if err != nil {
				return err
			}
			if ok {
				expired++
				s.logger.Info("monitor expired",
					zap.String("monitor_id", m.ID),
					zap.Int64("owner_id", m.OwnerID),
					zap.Time("created_at", m.CreatedAt),
				)
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire monitor %s: %w", m.ID, err))
		}
	}

	return expired, errs
}

func (s *Sweeper) deleteMonitors(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.store.ListPrunableMonitors(ctx, now.Add(-s.dataRetention))
	if err != nil {
		return 0, fmt.Errorf("list prunable monitors: %w", err)
	}

	results := workerpool.Run(ctx, s.pool, ids, func(ctx context.Context, id string) (struct{}, error) {
		return struct{}{}, s.registry.WithMonitor(id, func() error {
			return s.store.DeleteMonitor(ctx, id)
		})
	})

	var (
		deleted int
		errs    error
	)
	for res := range results {
		if res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete monitor %s: %w", res.Item, res.Err))
			continue
		}
		deleted++
	}

	return deleted, errs
}

// deleteConfigs removes idle configs. A config whose owner still has active
// monitors is kept.
func (s *Sweeper) deleteConfigs(ctx context.Context, now time.Time) (int, error) {
	owners, err := s.store.ListStaleUserConfigs(ctx, now.Add(-s.configRetention))
	if err != nil {
		return 0, fmt.Errorf("list stale user configs: %w", err)
	}

	results := workerpool.Run(ctx, s.pool, owners, func(ctx context.Context, ownerID int64) (bool, error) {
		active, err := s.store.CountActiveMonitors(ctx, ownerID)
		if err != nil {
			return false, err
		}
		if active > 0 {
			return false, nil
		}
		if err := s.store.DeleteUserConfig(ctx, ownerID); err != nil {
			return false, err
		}
		return true, nil
	})

	var (
		deleted int
		errs    error
	)
	for res := range results {
		switch {
		case res.Err != nil:
			errs = multierr.Append(errs, fmt.Errorf("delete user config %d: %w", res.Item, res.Err))
		case res.Value:
			deleted++
		default:
			s.logger.Debug("kept idle user config with active monitors", zap.Int64("owner_id", res.Item))
		}
	}

	return deleted, errs
}

func (s *Sweeper) notifyAdmins(ctx context.Context, report models.SweepReport) {
	if s.notifier == nil {
		return
	}

	text := utils.FormatSweepReport(report)
	for _, admin := range s.adminIDs {
		if err := s.notifier.Notify(ctx, admin, text); err != nil {
			s.logger.Warn("failed to send sweep report",
				zap.Int64("admin_id", admin),
				zap.Error(err),
			)
		}
	}
}
