package handlers

import (
	"context"
	"errors"

	"flight-price-checker/internal/bot/utils"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /settings command
func HandleSettings(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		cfg, err := ctx.userConfig(dbCtx, userID)
		if err != nil {
			ctx.Logger.Error("failed to load user config",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return c.Send(errorMessage)
		}

		return c.Send(
			utils.FormatSettingsMessage(cfg),
			tele.ModeMarkdownV2,
		)
	}
}

// /set changes the time filter for new monitors or the notification policy.
func HandleSet(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		cfg, err := ctx.userConfig(dbCtx, userID)
		if err != nil {
			ctx.Logger.Error("failed to load user config",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return c.Send(errorMessage)
		}

		if err := utils.ApplySetCommand(cfg, c.Args()); err != nil {
			if errors.Is(err, utils.ErrUsage) {
				return c.Send("ℹ️ " + err.Error())
			}
			return c.Send("⚠️ " + err.Error())
		}

		if err := cfg.Filter.Validate(); err != nil {
			return c.Send("⚠️ " + err.Error())
		}

		cfg.LastUsedAt = ctx.now()
		if err := ctx.Store.SaveUserConfig(dbCtx, cfg); err != nil {
			ctx.Logger.Error("failed to save user config",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return c.Send(errorMessage)
		}

		return c.Send(
			"✅ Saved\n\n"+utils.FormatSettingsMessage(cfg),
			tele.ModeMarkdownV2,
		)
	}
}
