package handlers

import (
	"context"
	"errors"
	"fmt"

	"flight-price-checker/internal/monitor"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// HandleCancelCallback cancels the monitor whose id is the button payload.
func HandleCancelCallback(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID
		monitorID := c.Data()

		dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		m, err := ctx.Registry.Get(dbCtx, monitorID)
		if err != nil && !errors.Is(err, monitor.ErrNotFound) {
			ctx.Logger.Error("failed to get monitor",
				zap.String("monitor_id", monitorID),
				zap.Error(err),
			)
			return c.Respond(&tele.CallbackResponse{Text: errorMessage})
		}

		err = ctx.Registry.Cancel(dbCtx, monitorID, userID)
		switch {
		case errors.Is(err, monitor.ErrNotFound):
			_ = c.Respond(&tele.CallbackResponse{Text: "Already stopped"})
			return c.Edit("ℹ️ This monitor is no longer active.")
		case errors.Is(err, monitor.ErrNotOwner):
			ctx.Logger.Warn("cancel of foreign monitor refused",
				zap.Int64("user_id", userID),
				zap.String("monitor_id", monitorID),
			)
			return c.Respond(&tele.CallbackResponse{Text: "⛔ Not your monitor", ShowAlert: true})
		case err != nil:
			ctx.Logger.Error("failed to cancel monitor",
				zap.Int64("user_id", userID),
				zap.String("monitor_id", monitorID),
				zap.Error(err),
			)
			return c.Respond(&tele.CallbackResponse{Text: errorMessage})
		}

		_ = c.Respond(&tele.CallbackResponse{Text: "Stopped"})
		return c.Edit(fmt.Sprintf("✅ Stopped watching %s", m.SearchParams))
	}
}
