package call

import (
	"time"

	"github.com/google/uuid"
)

func newCallID() string { return uuid.NewString() }

// Status is the lifecycle state of a call.
// Keep values stable; they are persisted and shown in history.
type Status string

const (
	StatusRinging  Status = "ringing"
	StatusAnswered Status = "answered"
	StatusRejected Status = "rejected"
	StatusMissed   Status = "missed"
	StatusEnded    Status = "ended"
)

// validTransitions defines which status transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusRinging:  {StatusAnswered, StatusRejected, StatusMissed},
	StatusAnswered: {StatusEnded},
	StatusRejected: {},
	StatusMissed:   {},
	StatusEnded:    {},
}

// CanTransitionTo checks if a transition from the current status to next is valid.
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, st := range allowed {
		if st == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no transition leaves this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusMissed, StatusEnded:
		return true
	default:
		return false
	}
}

// IsActive returns true for statuses that occupy a participant.
func (s Status) IsActive() bool {
	return s == StatusRinging || s == StatusAnswered
}

// MessageHandle references one outward notification message.
type MessageHandle struct {
	ChatID    int64 `json:"chat_id" db:"chat_id"`
	MessageID int   `json:"message_id" db:"message_id"`
}

func (h MessageHandle) IsZero() bool { return h.ChatID == 0 && h.MessageID == 0 }

// Call is the live record of one simulated call between two participants.
//
// Invariants:
// - CallerID != ReceiverID, enforced at creation.
// - A participant appears in at most one call with an active status;
//   the registry enforces this atomically on insert.
// - Only the lifecycle controller mutates a Call.
type Call struct {
	ID string `json:"call_id" db:"call_id"`

	CallerID   int64 `json:"caller_id" db:"caller_id"`
	ReceiverID int64 `json:"receiver_id" db:"receiver_id"`

	// Addresses are the directory-registered line numbers shown to users.
	CallerAddress   string `json:"caller_address" db:"caller_address"`
	ReceiverAddress string `json:"receiver_address" db:"receiver_address"`

	Status Status `json:"status" db:"status"`

	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is set only on the answered→ended transition.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Handles of the two outward notification messages, populated once the
	// initial notifications are delivered.
	CallerHandle   MessageHandle `json:"caller_handle" db:"-"`
	ReceiverHandle MessageHandle `json:"receiver_handle" db:"-"`
}

// Counterpart returns the other participant id, or false if the given id is
// not part of the call.
func (c Call) Counterpart(participantID int64) (int64, bool) {
	switch participantID {
	case c.CallerID:
		return c.ReceiverID, true
	case c.ReceiverID:
		return c.CallerID, true
	default:
		return 0, false
	}
}

// HistoryRecord is an immutable snapshot of a call taken at the moment it
// reached a terminal status. It is created exactly once per call and never
// mutated afterwards.
type HistoryRecord struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	CallerID   int64 `json:"caller_id" db:"caller_id"`
	ReceiverID int64 `json:"receiver_id" db:"receiver_id"`

	CallerAddress   string `json:"caller_address" db:"caller_address"`
	ReceiverAddress string `json:"receiver_address" db:"receiver_address"`

	Status Status `json:"status" db:"status"`

	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewHistoryRecord snapshots a terminal call.
func NewHistoryRecord(c Call, now time.Time) HistoryRecord {
	return HistoryRecord{
		ID:              uuid.NewString(),
		CallID:          c.ID,
		CallerID:        c.CallerID,
		ReceiverID:      c.ReceiverID,
		CallerAddress:   c.CallerAddress,
		ReceiverAddress: c.ReceiverAddress,
		Status:          c.Status,
		StartedAt:       c.StartedAt,
		AnsweredAt:      c.AnsweredAt,
		EndedAt:         c.EndedAt,
		DurationSeconds: c.DurationSeconds,
		CreatedAt:       now.UTC(),
	}
}
