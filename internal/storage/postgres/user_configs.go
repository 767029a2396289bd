package postgres

import (
	"context"
	"fmt"
	"time"

	"flight-price-checker/internal/models"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"
)

func (s *Store) GetUserConfig(ctx context.Context, ownerID int64) (*models.UserConfig, error) {
	var cfg models.UserConfig

	err := s.sess.
		Select("*").
		From(tableUserConfigs).
		Where("owner_id = ?", ownerID).
		LoadOneContext(ctx, &cfg)

	if err == dbr.ErrNotFound {
		return nil, nil
	}

	if err != nil {
		s.logger.Error("failed to get user config",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get user config: %w", err)
	}

	return &cfg, nil
}

// SaveUserConfig inserts or replaces the owner's config. created_at is kept
// from the first insert.
func (s *Store) SaveUserConfig(ctx context.Context, cfg *models.UserConfig) error {
	query := `
		INSERT INTO user_configs (
			owner_id, time_filter, notify_policy, notify_threshold,
			notify_target, price_type, created_at, last_used_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			time_filter      = EXCLUDED.time_filter,
			notify_policy    = EXCLUDED.notify_policy,
			notify_threshold = EXCLUDED.notify_threshold,
			notify_target    = EXCLUDED.notify_target,
			price_type       = EXCLUDED.price_type,
			last_used_at     = EXCLUDED.last_used_at
	`

	_, err := s.sess.
		InsertBySql(query,
			cfg.OwnerID,
			cfg.Filter,
			cfg.NotifyPolicy,
			cfg.NotifyThreshold,
			cfg.NotifyTarget,
			cfg.EffectivePriceType(),
			cfg.CreatedAt,
			cfg.LastUsedAt,
		).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to save user config",
			zap.Int64("owner_id", cfg.OwnerID),
			zap.Error(err),
		)
		return fmt.Errorf("save user config: %w", err)
	}

	s.logger.Info("user config saved",
		zap.Int64("owner_id", cfg.OwnerID),
		zap.String("notify_policy", string(cfg.NotifyPolicy)),
	)

	return nil
}

func (s *Store) TouchUserConfig(ctx context.Context, ownerID int64, usedAt time.Time) error {
	_, err := s.sess.
		Update(tableUserConfigs).
		Set("last_used_at", usedAt).
		Where("owner_id = ?", ownerID).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to touch user config",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
		return fmt.Errorf("touch user config: %w", err)
	}

	return nil
}

func (s *Store) ListStaleUserConfigs(ctx context.Context, usedBefore time.Time) ([]int64, error) {
	var owners []int64

	_, err := s.sess.
		Select("owner_id").
		From(tableUserConfigs).
		Where("last_used_at < ?", usedBefore).
		OrderBy("owner_id").
		LoadContext(ctx, &owners)

	if err != nil {
		s.logger.Error("failed to list stale user configs", zap.Error(err))
		return nil, fmt.Errorf("list stale user configs: %w", err)
	}

	return owners, nil
}

func (s *Store) DeleteUserConfig(ctx context.Context, ownerID int64) error {
	_, err := s.sess.
		DeleteFrom(tableUserConfigs).
		Where("owner_id = ?", ownerID).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to delete user config",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
		return fmt.Errorf("delete user config: %w", err)
	}

	s.logger.Info("user config deleted", zap.Int64("owner_id", ownerID))
	return nil
}
