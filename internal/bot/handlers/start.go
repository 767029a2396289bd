package handlers

import (
	"context"

	"flight-price-checker/internal/bot/utils"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /start command
func HandleStart(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		ctx.Logger.Info("user started bot",
			zap.Int64("user_id", userID),
			zap.String("username", c.Sender().Username),
		)

		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		// the welcome goes out even when the config could not be created;
		// the next command retries
		if _, err := ctx.userConfig(dbCtx, userID); err != nil {
			ctx.Logger.Error("failed to load user config",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}

		return c.Send(
			utils.FormatWelcomeMessage(c.Sender().FirstName),
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}
