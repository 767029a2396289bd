package utils

import (
	"fmt"

	"flight-price-checker/internal/models"

	tele "gopkg.in/telebot.v3"
)

// CancelUnique is the callback endpoint of monitor cancel buttons.
const CancelUnique = "cancel"

func MainMenuKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}

	btnStatus := menu.Text("/status")
	btnCancel := menu.Text("/cancel")
	btnSettings := menu.Text("/settings")
	btnHelp := menu.Text("/help")

	menu.Reply(
		menu.Row(btnStatus, btnCancel),
		menu.Row(btnSettings, btnHelp),
	)

	return menu
}

// CancelMonitorsKeyboard offers one inline button per monitor.
func CancelMonitorsKeyboard(monitors []models.Monitor) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	rows := make([]tele.Row, 0, len(monitors))
	for _, m := range monitors {
		label := fmt.Sprintf("❌ %s-%s %s", m.Origin, m.Destination, FormatDate(m.DepartDate))
		rows = append(rows, menu.Row(menu.Data(label, CancelUnique, m.ID)))
	}

	menu.Inline(rows...)
	return menu
}
