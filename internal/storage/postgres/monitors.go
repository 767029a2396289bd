package postgres

import (
	"context"
	"fmt"
	"time"

	"flight-price-checker/internal/models"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"
)

var monitorColumns = []string{
	"id", "owner_id", "origin", "destination", "depart_date", "return_date",
	"time_filter", "lowest_price", "status", "created_at", "last_checked_at", "ended_at",
	"overall_lowest_price", "no_match_notified",
}

func (s *Store) CreateMonitor(ctx context.Context, m *models.Monitor) error {
	_, err := s.sess.
		InsertInto(tableMonitors).
		Columns(monitorColumns...).
		Values(
			m.ID, m.OwnerID, m.Origin, m.Destination, m.DepartDate, m.ReturnDate,
			m.Filter, m.LowestPrice, m.Status, m.CreatedAt, m.LastCheckedAt, m.EndedAt,
			m.OverallLowest, m.NoMatchNotified,
		).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to create monitor",
			zap.String("monitor_id", m.ID),
			zap.Int64("owner_id", m.OwnerID),
			zap.Error(err),
		)
		return fmt.Errorf("create monitor: %w", err)
	}

	return nil
}

func (s *Store) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	var m models.Monitor

	err := s.sess.
		Select(monitorColumns...).
		From(tableMonitors).
		Where("id = ?", id).
		LoadOneContext(ctx, &m)

	if err == dbr.ErrNotFound {
		return nil, nil
	}

	if err != nil {
		s.logger.Error("failed to get monitor",
			zap.String("monitor_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get monitor: %w", err)
	}

	return &m, nil
}

// ListActiveMonitors returns active monitors, oldest first. An ownerID of
// zero lists every owner.
func (s *Store) ListActiveMonitors(ctx context.Context, ownerID int64) ([]models.Monitor, error) {
	var monitors []models.Monitor

	stmt := s.sess.
		Select(monitorColumns...).
		From(tableMonitors).
		Where("status = ?", models.StatusActive)
	if ownerID != 0 {
		stmt = stmt.Where("owner_id = ?", ownerID)
	}

	_, err := stmt.
		OrderBy("created_at").
		OrderBy("id").
		LoadContext(ctx, &monitors)

	if err != nil {
		s.logger.Error("failed to list active monitors",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list active monitors: %w", err)
	}

	return monitors, nil
}

func (s *Store) CountActiveMonitors(ctx context.Context, ownerID int64) (int, error) {
	var count int

	err := s.sess.
		Select("count(*)").
		From(tableMonitors).
		Where("owner_id = ? AND status = ?", ownerID, models.StatusActive).
		LoadOneContext(ctx, &count)

	if err != nil {
		s.logger.Error("failed to count active monitors",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("count active monitors: %w", err)
	}

	return count, nil
}

// SetMonitorStatus moves a monitor from one status to another and stamps
// ended_at. It reports false when the monitor was not in the from status.
func (s *Store) SetMonitorStatus(ctx context.Context, id string, from, to models.Status, at time.Time) (bool, error) {
	res, err := s.sess.
		Update(tableMonitors).
		Set("status", to).
		Set("ended_at", at).
		Where("id = ? AND status = ?", id, from).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to set monitor status",
			zap.String("monitor_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return false, fmt.Errorf("set monitor status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set monitor status: %w", err)
	}

	return n > 0, nil
}

// SaveCheck records a completed check on an active monitor. Nil fields of
// res leave the stored values untouched.
func (s *Store) SaveCheck(ctx context.Context, id string, check models.CheckResult) (bool, error) {
	stmt := s.sess.
		Update(tableMonitors).
		Set("last_checked_at", check.CheckedAt)
	if check.LowestPrice != nil {
		stmt = stmt.Set("lowest_price", *check.LowestPrice)
	}
	if check.OverallLowest != nil {
		stmt = stmt.Set("overall_lowest_price", *check.OverallLowest)
	}
	if check.NoMatchNotified != nil {
		stmt = stmt.Set("no_match_notified", *check.NoMatchNotified)
	}

	res, err := stmt.
		Where("id = ? AND status = ?", id, models.StatusActive).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to save check",
			zap.String("monitor_id", id),
			zap.Error(err),
		)
		return false, fmt.Errorf("save check: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save check: %w", err)
	}

	return n > 0, nil
}

func (s *Store) ListExpirableMonitors(ctx context.Context, createdBefore time.Time) ([]models.Monitor, error) {
	var monitors []models.Monitor

	_, err := s.sess.
		Select(monitorColumns...).
		From(tableMonitors).
		Where("status = ? AND created_at < ?", models.StatusActive, createdBefore).
		OrderBy("created_at").
		OrderBy("id").
		LoadContext(ctx, &monitors)

	if err != nil {
		s.logger.Error("failed to list expirable monitors", zap.Error(err))
		return nil, fmt.Errorf("list expirable monitors: %w", err)
	}

	return monitors, nil
}

// ListPrunableMonitors returns ids of finished monitors whose retention
// anchor (last check, else end, else creation) is before anchorBefore.
func (s *Store) ListPrunableMonitors(ctx context.Context, anchorBefore time.Time) ([]string, error) {
	var ids []string

	_, err := s.sess.
		Select("id").
		From(tableMonitors).
		Where("status <> ? AND coalesce(last_checked_at, ended_at, created_at) < ?", models.StatusActive, anchorBefore).
		OrderBy("created_at").
		OrderBy("id").
		LoadContext(ctx, &ids)

	if err != nil {
		s.logger.Error("failed to list prunable monitors", zap.Error(err))
		return nil, fmt.Errorf("list prunable monitors: %w", err)
	}

	return ids, nil
}

func (s *Store) DeleteMonitor(ctx context.Context, id string) error {
	_, err := s.sess.
		DeleteFrom(tableMonitors).
		Where("id = ?", id).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to delete monitor",
			zap.String("monitor_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("delete monitor: %w", err)
	}

	s.logger.Debug("monitor deleted", zap.String("monitor_id", id))
	return nil
}
