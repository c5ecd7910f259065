package call

import (
	"context"
	"strings"
)

// Participant is the directory's view of an addressable endpoint.
type Participant struct {
	ID       int64  `json:"id"`
	Address  string `json:"address"`
	Username string `json:"username,omitempty"`

	// HomeChatID is the chat incoming-call notifications are delivered to.
	HomeChatID int64 `json:"home_chat_id"`
}

// Directory resolves human-entered addresses and participant ids to
// identities. Implemented by internal/directory.
type Directory interface {
	Lookup(ctx context.Context, participantID int64) (Participant, error)
	ResolveAddress(ctx context.Context, address string) (Participant, error)
}

// Action is one tappable button attached to an outward notification.
type Action struct {
	Label string
	Data  string
}

// Callback data kinds carried by notification actions.
const (
	ActionAnswer = "answer_call"
	ActionReject = "reject_call"
	ActionEnd    = "end_call"
)

// ActionData builds the callback payload for a call action button.
func ActionData(kind, callID string) string {
	return kind + ":" + callID
}

// ParseActionData splits a callback payload produced by ActionData.
func ParseActionData(data string) (kind, callID string, ok bool) {
	kind, callID, found := strings.Cut(data, ":")
	if !found || callID == "" {
		return "", "", false
	}
	switch kind {
	case ActionAnswer, ActionReject, ActionEnd:
		return kind, callID, true
	default:
		return "", "", false
	}
}

// Notifier is the outbound messaging boundary. Sends and edits are
// best-effort: a failure is logged by the caller and never fails the owning
// state transition.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, actions []Action) (MessageHandle, error)
	Edit(ctx context.Context, h MessageHandle, text string, actions []Action) error

	// Deliver posts free-form relayed text to a chat, with no actions and
	// no handle tracking.
	Deliver(ctx context.Context, chatID int64, text string) error
}
