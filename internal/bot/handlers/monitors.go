package handlers

import (
	"context"
	"errors"
	"fmt"

	"flight-price-checker/internal/bot/utils"
	"flight-price-checker/internal/monitor"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /monitor ORIGIN DEST YYYYMMDD YYYYMMDD
func HandleMonitor(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		params, err := utils.ParseMonitorArgs(c.Args())
		if err != nil {
			return c.Send("ℹ️ " + err.Error())
		}

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

		// the filter is copied at creation; later /set changes do not touch it
		m, err := ctx.Registry.Create(dbCtx, userID, params, cfg.Filter)
		switch {
		case errors.Is(err, monitor.ErrQuotaExceeded):
			return c.Send(fmt.Sprintf(
				"⚠️ You already watch %d trips, the maximum. Stop one with /cancel first.",
				ctx.Registry.MaxMonitors(),
			))
		case errors.Is(err, monitor.ErrInvalidParams):
			return c.Send("⚠️ " + err.Error())
		case err != nil:
			ctx.Logger.Error("failed to create monitor",
				zap.Int64("user_id", userID),
				zap.Stringer("search", params),
				zap.Error(err),
			)
			return c.Send(errorMessage)
		}

		active, err := ctx.Registry.ListActive(dbCtx, userID)
		if err != nil {
			ctx.Logger.Warn("failed to count monitors", zap.Int64("user_id", userID), zap.Error(err))
		}

		return c.Send(
			utils.FormatMonitorCreated(m, len(active), ctx.Registry.MaxMonitors()),
			tele.ModeMarkdownV2,
		)
	}
}

// /status
func HandleStatus(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		monitors, err := ctx.Registry.ListActive(dbCtx, userID)
		if err != nil {
			ctx.Logger.Error("failed to list monitors",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return c.Send(errorMessage)
		}

		return c.Send(
			utils.FormatMonitorList(monitors, ctx.Registry.MaxMonitors()),
			tele.ModeMarkdownV2,
		)
	}
}

// /cancel shows one button per active monitor; the button is handled by
// HandleCancelCallback.
func HandleCancel(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		monitors, err := ctx.Registry.ListActive(dbCtx, userID)
		if err != nil {
			ctx.Logger.Error("failed to list monitors",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return c.Send(errorMessage)
		}

		if len(monitors) == 0 {
			return c.Send(utils.FormatNoMonitorsMessage(), tele.ModeMarkdownV2)
		}

		return c.Send("Which monitor should I stop?", utils.CancelMonitorsKeyboard(monitors))
	}
}
