// Package telegram is the Bot API edge: the outbound notifier, the inbound
// webhook handler and the command layer that turns updates into directory and
// call operations.
package telegram

import (
	"context"
	"fmt"

	"callbridge/internal/call"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the slice of *tgbotapi.BotAPI this package uses. Kept as an
// interface so handlers are testable without network.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier implements call.Notifier over the Bot API. Errors are returned to
// the caller; the notification sync layer owns the logging.
type Notifier struct {
	api botAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return newNotifier(api)
}

func newNotifier(api botAPI) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) Send(_ context.Context, chatID int64, text string, actions []call.Action) (call.MessageHandle, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(actions) > 0 {
		msg.ReplyMarkup = actionKeyboard(actions)
	}
	sent, err := n.api.Send(msg)
	if err != nil {
		return call.MessageHandle{}, fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return call.MessageHandle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (n *Notifier) Edit(_ context.Context, h call.MessageHandle, text string, actions []call.Action) error {
	var edit tgbotapi.Chattable
	if len(actions) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(h.ChatID, h.MessageID, text, actionKeyboard(actions))
	} else {
		edit = tgbotapi.NewEditMessageText(h.ChatID, h.MessageID, text)
	}
	if _, err := n.api.Send(edit); err != nil {
		return fmt.Errorf("edit message %d in chat %d: %w", h.MessageID, h.ChatID, err)
	}
	return nil
}

func (n *Notifier) Deliver(_ context.Context, chatID int64, text string) error {
	if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("deliver to chat %d: %w", chatID, err)
	}
	return nil
}
