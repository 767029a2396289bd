package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// AdminOnly lets through only users for whom isAdmin is true.
func AdminOnly(isAdmin func(userID int64) bool, logger *zap.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || !isAdmin(user.ID) {
				var userID int64
				if user != nil {
					userID = user.ID
				}
				logger.Warn("admin command refused", zap.Int64("user_id", userID))
				return c.Send("⛔ This command is for administrators only.")
			}
			return next(c)
		}
	}
}

// Toucher records that a user was active.
type Toucher interface {
	TouchUserConfig(ctx context.Context, ownerID int64, usedAt time.Time) error
}

// Activity refreshes the sender's config last-used time on every update,
// which keeps the config out of the retention sweep.
func Activity(store Toucher, logger *zap.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if user := c.Sender(); user != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				err := store.TouchUserConfig(ctx, user.ID, time.Now().UTC())
				cancel()
				if err != nil {
					logger.Warn("failed to record activity",
						zap.Int64("user_id", user.ID),
						zap.Error(err),
					)
				}
			}
			return next(c)
		}
	}
}
