package middleware

import (
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Logger middleware for logging all incoming msgs
func Logger(logger *zap.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()

			var userID int64
			var username string
			if user := c.Sender(); user != nil {
				userID = user.ID
				username = user.Username
			}

			var text, kind string
			if message := c.Message(); message != nil {
				text = message.Text
				kind = "message"
			}
			if callback := c.Callback(); callback != nil {
				text = callback.Data
				kind = "callback"
			}

			err := next(c)

			fields := []zap.Field{
				zap.Int64("user_id", userID),
				zap.String("username", username),
				zap.String("type", kind),
				zap.String("text", text),
				zap.Duration("duration", time.Since(start)),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				logger.Error("handler error", fields...)
			} else {
				logger.Info("request handled", fields...)
			}

			return err
		}
	}
}
