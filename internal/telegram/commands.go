package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"callbridge/internal/call"
	"callbridge/internal/directory"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const historyLimit = 10

// Handler routes incoming updates to the directory and the call controller.
type Handler struct {
	api         botAPI
	botUsername string
	ctl         *call.Controller
	dir         *directory.Service
	sessions    *Sessions
	log         *slog.Logger
}

func NewHandler(api *tgbotapi.BotAPI, botUsername string, ctl *call.Controller, dir *directory.Service, log *slog.Logger) *Handler {
	return newHandler(api, botUsername, ctl, dir, log)
}

func newHandler(api botAPI, botUsername string, ctl *call.Controller, dir *directory.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		api:         api,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		ctl:         ctl,
		dir:         dir,
		sessions:    NewSessions(),
		log:         log,
	}
}

// HandleUpdate dispatches one webhook update. It never returns an error: the
// webhook must answer 200 regardless, so failures end as user-facing replies
// or log lines.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.From != nil && upd.Message.Chat != nil:
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}

	if h.sessions.Step(userID) != stepNone {
		h.continueContactAdd(ctx, msg)
		return
	}

	if address, ok := parseMentionDial(msg.Text, h.botUsername); ok {
		h.dial(ctx, userID, chatID, address)
		return
	}

	// Plain text from a participant of a connected call is relayed to the
	// other side. Anything else is ignored.
	if c, ok := h.ctl.ActiveFor(userID); ok {
		if _, err := h.ctl.Relay(ctx, c.ID, userID, msg.Text); err != nil {
			h.log.Warn("relay failed", "call_id", c.ID, "err", err)
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		h.reply(chatID, helpText())

	case "register":
		if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
			h.reply(chatID, "Registration binds your line to a group. Run /register in the group where you want to receive calls.")
			return
		}
		reg, err := h.dir.Register(ctx, userID, msg.From.UserName, msg.CommandArguments(), chatID)
		if err != nil {
			h.reply(chatID, registerErrorText(err))
			return
		}
		h.reply(chatID, fmt.Sprintf("✅ Registered %s. Calls to this line ring here.", reg.Address))

	case "call":
		h.dial(ctx, userID, chatID, strings.TrimSpace(msg.CommandArguments()))

	case "contacts":
		h.sendContacts(ctx, userID, chatID)

	case "call_history":
		h.sendHistory(ctx, userID, chatID)

	default:
		h.reply(chatID, "Unknown command. Try /help.")
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}
	userID := cq.From.ID

	if kind, callID, ok := call.ParseActionData(cq.Data); ok {
		h.handleCallAction(ctx, cq, kind, callID)
		return
	}

	kind, arg, _ := strings.Cut(cq.Data, ":")
	switch kind {
	case cbDial:
		h.ack(cq, "")
		if cq.Message != nil && cq.Message.Chat != nil {
			h.dial(ctx, userID, cq.Message.Chat.ID, arg)
		}

	case cbContactAdd:
		h.sessions.Begin(userID)
		h.ack(cq, "")
		if cq.Message != nil && cq.Message.Chat != nil {
			h.reply(cq.Message.Chat.ID, "What should the contact be called?")
		}

	case cbContactDel:
		err := h.dir.RemoveContact(ctx, userID, arg)
		switch {
		case errors.Is(err, directory.ErrContactNotFound):
			h.ack(cq, "Contact already removed.")
		case err != nil:
			h.log.Warn("contact delete failed", "user_id", userID, "err", err)
			h.ack(cq, "Could not remove the contact.")
		default:
			h.ack(cq, "Contact removed.")
			if cq.Message != nil && cq.Message.Chat != nil {
				h.sendContacts(ctx, userID, cq.Message.Chat.ID)
			}
		}

	default:
		h.ack(cq, "")
	}
}

func (h *Handler) handleCallAction(ctx context.Context, cq *tgbotapi.CallbackQuery, kind, callID string) {
	userID := cq.From.ID

	var err error
	switch kind {
	case call.ActionAnswer:
		_, err = h.ctl.Answer(ctx, callID, userID)
	case call.ActionReject:
		_, err = h.ctl.Reject(ctx, callID, userID)
	case call.ActionEnd:
		_, err = h.ctl.End(ctx, callID, userID)
	}
	if err != nil {
		h.ack(cq, callActionErrorText(err))
		return
	}
	h.ack(cq, "")
}

// dial initiates a call and reports failures back into the chat the attempt
// came from. On success the controller has already posted both notifications.
func (h *Handler) dial(ctx context.Context, callerID, originChatID int64, address string) {
	if address == "" {
		h.reply(originChatID, "Tell me who to call, e.g. /call B2222.")
		return
	}
	if _, err := h.ctl.Initiate(ctx, callerID, address, originChatID); err != nil {
		h.reply(originChatID, dialErrorText(err))
	}
}

func (h *Handler) continueContactAdd(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch h.sessions.Step(userID) {
	case stepContactName:
		if len(text) < 2 {
			h.reply(chatID, "That name is too short. What should the contact be called?")
			return
		}
		h.sessions.NameGiven(userID, text)
		h.reply(chatID, "And their line address? (e.g. B2222)")

	case stepContactAddress:
		name := h.sessions.PendingName(userID)
		c, err := h.dir.AddContact(ctx, userID, name, text)
		if err != nil {
			if errors.Is(err, directory.ErrInvalidAddress) {
				h.reply(chatID, "That does not look like an address. One letter and four digits, e.g. B2222.")
				return
			}
			h.sessions.Clear(userID)
			h.log.Warn("contact add failed", "user_id", userID, "err", err)
			h.reply(chatID, "Could not save the contact, sorry.")
			return
		}
		h.sessions.Clear(userID)
		h.reply(chatID, fmt.Sprintf("✅ Saved %s (%s).", c.Name, c.Address))
	}
}

func (h *Handler) sendContacts(ctx context.Context, userID, chatID int64) {
	contacts, err := h.dir.Contacts(ctx, userID)
	if err != nil {
		h.log.Warn("contacts list failed", "user_id", userID, "err", err)
		h.reply(chatID, "Could not load your contacts, sorry.")
		return
	}

	text := "📒 Your contacts:"
	if len(contacts) == 0 {
		text = "📒 Your contact book is empty."
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = contactsKeyboard(contacts)
	if _, err := h.api.Send(msg); err != nil {
		h.log.Warn("contacts send failed", "chat_id", chatID, "err", err)
	}
}

func (h *Handler) sendHistory(ctx context.Context, userID, chatID int64) {
	records, err := h.ctl.History(ctx, userID, historyLimit)
	if err != nil {
		h.log.Warn("history load failed", "user_id", userID, "err", err)
		h.reply(chatID, "Call history is unavailable right now.")
		return
	}
	if len(records) == 0 {
		h.reply(chatID, "No calls yet.")
		return
	}

	var b strings.Builder
	b.WriteString("📜 Recent calls:\n")
	for _, r := range records {
		b.WriteString(renderHistoryLine(r, userID))
		b.WriteByte('\n')
	}
	h.reply(chatID, strings.TrimRight(b.String(), "\n"))
}

func renderHistoryLine(r call.HistoryRecord, viewerID int64) string {
	direction := "→ " + r.ReceiverAddress
	if viewerID == r.ReceiverID {
		direction = "← " + r.CallerAddress
	}
	line := fmt.Sprintf("%s  %s  %s", r.StartedAt.Format("02 Jan 15:04"), direction, r.Status)
	if r.Status == call.StatusEnded {
		line += fmt.Sprintf(" (%ds)", r.DurationSeconds)
	}
	return line
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Warn("reply send failed", "chat_id", chatID, "err", err)
	}
}

// ack answers a callback query so the client stops showing the spinner. An
// empty text acknowledges silently.
func (h *Handler) ack(cq *tgbotapi.CallbackQuery, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
		h.log.Warn("callback ack failed", "err", err)
	}
}

// addressToken matches a line address appearing as a standalone word.
var addressToken = regexp.MustCompile(`^[A-Za-z][0-9]{4}$`)

// parseMentionDial extracts the dialed address from a group message that
// mentions the bot, e.g. "@callbot B2222". The address may precede or follow
// the mention.
func parseMentionDial(text, botUsername string) (string, bool) {
	if botUsername == "" {
		return "", false
	}
	mention := "@" + strings.ToLower(botUsername)

	mentioned := false
	address := ""
	for _, f := range strings.Fields(text) {
		if strings.ToLower(f) == mention {
			mentioned = true
			continue
		}
		if address == "" && addressToken.MatchString(f) {
			address = strings.ToUpper(f)
		}
	}
	if !mentioned || address == "" {
		return "", false
	}
	return address, true
}

func helpText() string {
	return strings.Join([]string{
		"📞 I connect lines between group chats.",
		"",
		"/register A1234 — claim a line address in this group",
		"/call B2222 — call a line",
		"@-mention me with an address to call it",
		"/contacts — your contact book",
		"/call_history — your recent calls",
		"",
		"While connected, plain messages are relayed to the other side.",
	}, "\n")
}

func registerErrorText(err error) string {
	switch {
	case errors.Is(err, directory.ErrInvalidAddress):
		return "Addresses are one letter and four digits, e.g. /register A1234."
	case errors.Is(err, directory.ErrAddressTaken):
		return "That address belongs to someone else. Pick another."
	default:
		return "Registration failed, sorry. Try again."
	}
}

func dialErrorText(err error) string {
	switch {
	case errors.Is(err, call.ErrSelfCallNotAllowed):
		return "You cannot call your own line."
	case errors.Is(err, call.ErrAlreadyInCall):
		return "📵 Busy: one of you is already on a call."
	case errors.Is(err, call.ErrDirectoryLookup):
		return "Could not reach that line. Check the address and that both of you ran /register."
	default:
		return "The call could not be placed, sorry."
	}
}

func callActionErrorText(err error) string {
	switch {
	case errors.Is(err, call.ErrNotFound), errors.Is(err, call.ErrInvalidTransition):
		return "This call is no longer active."
	case errors.Is(err, call.ErrForbidden):
		return "Only the called side can do that."
	default:
		return "That did not work, sorry."
	}
}
