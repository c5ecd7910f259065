package call

import (
	"context"
	"fmt"
	"log/slog"
)

// NotificationSync renders and pushes the pair of outward notification
// messages tied to a call, one on the caller side and one on the receiver
// side. Each side is updated independently; a failed send or edit is a
// warning and never fails the owning state transition, nor does it block
// the other side. The in-memory call state stays authoritative.
type NotificationSync struct {
	notifier Notifier
	log      *slog.Logger
}

func NewNotificationSync(notifier Notifier, log *slog.Logger) *NotificationSync {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationSync{notifier: notifier, log: log}
}

type rendering struct {
	text    string
	actions []Action
}

func renderCallerSide(c Call) rendering {
	switch c.Status {
	case StatusRinging:
		return rendering{text: fmt.Sprintf("📞 Calling %s from %s\n⏳ Waiting for answer...", c.ReceiverAddress, c.CallerAddress)}
	case StatusAnswered:
		return rendering{
			text:    fmt.Sprintf("📞 Connected to %s.", c.ReceiverAddress),
			actions: []Action{{Label: "📞 End call", Data: ActionData(ActionEnd, c.ID)}},
		}
	case StatusRejected:
		return rendering{text: fmt.Sprintf("❌ %s rejected the call.", c.ReceiverAddress)}
	case StatusMissed:
		return rendering{text: fmt.Sprintf("❌ %s did not answer.", c.ReceiverAddress)}
	case StatusEnded:
		return rendering{text: fmt.Sprintf("⏹ Call ended.\n⏱ %ds", c.DurationSeconds)}
	default:
		return rendering{text: "📞 Call updated."}
	}
}

func renderReceiverSide(c Call) rendering {
	switch c.Status {
	case StatusRinging:
		return rendering{
			text: fmt.Sprintf("📞 Incoming call from %s\nTo: %s", c.CallerAddress, c.ReceiverAddress),
			actions: []Action{
				{Label: "✅ Answer", Data: ActionData(ActionAnswer, c.ID)},
				{Label: "❌ Reject", Data: ActionData(ActionReject, c.ID)},
			},
		}
	case StatusAnswered:
		return rendering{
			text:    fmt.Sprintf("📞 Connected to %s.", c.CallerAddress),
			actions: []Action{{Label: "📞 End call", Data: ActionData(ActionEnd, c.ID)}},
		}
	case StatusRejected:
		return rendering{text: fmt.Sprintf("❌ Call from %s rejected.", c.CallerAddress)}
	case StatusMissed:
		return rendering{text: fmt.Sprintf("❌ Missed call from %s.", c.CallerAddress)}
	case StatusEnded:
		return rendering{text: fmt.Sprintf("⏹ Call ended.\n⏱ %ds", c.DurationSeconds)}
	default:
		return rendering{text: "📞 Call updated."}
	}
}

// Announce delivers the two initial notifications for a freshly created
// ringing call and returns the message handles. A failed send leaves that
// side's handle zero; later edits skip zero handles.
func (ns *NotificationSync) Announce(ctx context.Context, c Call, callerChatID, receiverChatID int64) (callerH, receiverH MessageHandle) {
	cr := renderCallerSide(c)
	h, err := ns.notifier.Send(ctx, callerChatID, cr.text, cr.actions)
	if err != nil {
		ns.log.Warn("caller notification send failed", "call_id", c.ID, "chat_id", callerChatID, "err", err)
	} else {
		callerH = h
	}

	rr := renderReceiverSide(c)
	h, err = ns.notifier.Send(ctx, receiverChatID, rr.text, rr.actions)
	if err != nil {
		ns.log.Warn("receiver notification send failed", "call_id", c.ID, "chat_id", receiverChatID, "err", err)
	} else {
		receiverH = h
	}
	return callerH, receiverH
}

// Sync edits both notifications to reflect the call's current status.
func (ns *NotificationSync) Sync(ctx context.Context, c Call) {
	if !c.CallerHandle.IsZero() {
		r := renderCallerSide(c)
		if err := ns.notifier.Edit(ctx, c.CallerHandle, r.text, r.actions); err != nil {
			ns.log.Warn("caller notification edit failed", "call_id", c.ID, "status", c.Status, "err", err)
		}
	}
	if !c.ReceiverHandle.IsZero() {
		r := renderReceiverSide(c)
		if err := ns.notifier.Edit(ctx, c.ReceiverHandle, r.text, r.actions); err != nil {
			ns.log.Warn("receiver notification edit failed", "call_id", c.ID, "status", c.Status, "err", err)
		}
	}
}

// Forward delivers relayed text to the counterpart of the sender. The
// counterpart's notification chat is the delivery destination.
func (ns *NotificationSync) Forward(ctx context.Context, c Call, fromID int64, payload string) error {
	var fromAddress string
	var dest MessageHandle
	switch fromID {
	case c.CallerID:
		fromAddress = c.CallerAddress
		dest = c.ReceiverHandle
	case c.ReceiverID:
		fromAddress = c.ReceiverAddress
		dest = c.CallerHandle
	default:
		return fmt.Errorf("participant %d is not part of call %s", fromID, c.ID)
	}
	if dest.IsZero() {
		return fmt.Errorf("no delivery chat known for counterpart of %d on call %s", fromID, c.ID)
	}
	return ns.notifier.Deliver(ctx, dest.ChatID, fmt.Sprintf("💬 %s: %s", fromAddress, payload))
}
