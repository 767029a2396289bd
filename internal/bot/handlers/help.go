package handlers

import (
	"flight-price-checker/internal/bot/utils"

	tele "gopkg.in/telebot.v3"
)

// /help
func HandleHelp(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		helpMsg := utils.FormatHelpMessage(ctx.Registry.MaxMonitors(), ctx.Config.CheckInterval)

		return c.Send(
			helpMsg,
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}
