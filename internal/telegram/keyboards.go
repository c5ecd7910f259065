package telegram

import (
	"fmt"

	"callbridge/internal/call"
	"callbridge/internal/directory"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data kinds owned by the command layer; call action kinds live in
// internal/call next to the state machine.
const (
	cbDial       = "dial"
	cbContactAdd = "contact_add"
	cbContactDel = "contact_del"
)

// actionKeyboard lays out call action buttons in a single row.
func actionKeyboard(actions []call.Action) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// contactsKeyboard renders the contact book: one row per contact with a dial
// and a delete button, plus a trailing add row.
func contactsKeyboard(contacts []directory.Contact) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(contacts)+1)
	for _, c := range contacts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("📞 %s (%s)", c.Name, c.Address),
				cbDial+":"+c.Address,
			),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbContactDel+":"+c.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Add contact", cbContactAdd),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
