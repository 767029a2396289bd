package handlers

import (
	"context"
	"fmt"
	"strconv"

	"flight-price-checker/internal/bot/scheduler"
	"flight-price-checker/internal/bot/utils"
	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// The admin handlers are registered behind middleware.AdminOnly.

// /allstatus
func HandleAllStatus(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		monitors, err := ctx.Registry.ListActive(dbCtx, monitor.AllOwners)
		if err != nil {
			ctx.Logger.Error("failed to list all monitors", zap.Error(err))
			return c.Send(errorMessage)
		}

		return c.Send(utils.FormatAllMonitors(monitors), tele.ModeMarkdownV2)
	}
}

// /allcancel [owner_id] cancels one owner's monitors, or everyone's without
// an argument.
func HandleAllCancel(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		adminID := c.Sender().ID

		ownerID := monitor.AllOwners
		if args := c.Args(); len(args) > 0 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return c.Send("ℹ️ usage: /allcancel [owner_id]")
			}
			ownerID = id
		}

		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		n, err := ctx.Registry.CancelAll(dbCtx, ownerID, adminID)
		if err != nil {
			ctx.Logger.Error("bulk cancel failed",
				zap.Int64("admin_id", adminID),
				zap.Int64("owner_id", ownerID),
				zap.Int("cancelled", n),
				zap.Error(err),
			)
			return c.Send(fmt.Sprintf("⚠️ Stopped %d monitors before an error: %v", n, err))
		}

		ctx.Logger.Info("bulk cancel",
			zap.Int64("admin_id", adminID),
			zap.Int64("owner_id", ownerID),
			zap.Int("cancelled", n),
		)

		return c.Send(fmt.Sprintf("✅ Stopped %d monitors", n))
	}
}

// /stats shows the scheduler phase and the last cycle report.
func HandleStats(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		phase := scheduler.PhaseIdle
		var report *models.CycleReport
		if ctx.Checker != nil {
			phase = ctx.Checker.Phase()
			report = ctx.Checker.Stats()
		}

		if report == nil && ctx.Stats != nil {
			dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
			defer cancel()

			cached, err := ctx.Stats.GetCycleReport(dbCtx)
			if err != nil {
				ctx.Logger.Warn("failed to read cached cycle report", zap.Error(err))
			}
			report = cached
		}

		return c.Send(utils.FormatCycleReport(report, phase.String()), tele.ModeMarkdownV2)
	}
}
