package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Controller is the call lifecycle state machine. It owns every transition
// between statuses and orchestrates the registry, the ring-timeout
// scheduler, notification sync and the store.
//
// Concurrency model: transitions for one call id are serialized through a
// keyed mutex; the participant-exclusivity check in Initiate is atomic
// inside Registry.Insert. Outbound I/O (directory lookups, notification
// sends/edits, store writes) happens outside the per-call lock so a slow
// network call never blocks transitions on unrelated calls.
type Controller struct {
	registry *Registry
	sched    *Scheduler
	store    Store
	dir      Directory
	notify   *NotificationSync
	log      *slog.Logger

	// clock is injectable for deterministic tests.
	clock func() time.Time

	locks keyedMutex
}

func NewController(registry *Registry, store Store, dir Directory, notify *NotificationSync, ringTimeout time.Duration, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	ctl := &Controller{
		registry: registry,
		store:    store,
		dir:      dir,
		notify:   notify,
		log:      log,
		clock:    time.Now,
	}
	ctl.sched = NewScheduler(ringTimeout, func(callID string) {
		ctl.ExpireIfStillRinging(context.Background(), callID)
	})
	return ctl
}

// Close cancels all pending ring timers. Used on shutdown.
func (ctl *Controller) Close() { ctl.sched.Stop() }

// Initiate starts a new call from the registered caller to the participant
// the address resolves to. originChatID is the chat the initiating command
// came from; the caller-side notification is posted there so the caller sees
// call progress where they dialed. Zero means use the caller's home chat.
func (ctl *Controller) Initiate(ctx context.Context, callerID int64, receiverAddress string, originChatID int64) (Call, error) {
	caller, err := ctl.dir.Lookup(ctx, callerID)
	if err != nil {
		return Call{}, fmt.Errorf("caller %d: %w: %v", callerID, ErrDirectoryLookup, err)
	}
	receiver, err := ctl.dir.ResolveAddress(ctx, receiverAddress)
	if err != nil {
		return Call{}, fmt.Errorf("address %s: %w: %v", receiverAddress, ErrDirectoryLookup, err)
	}
	if receiver.ID == caller.ID {
		return Call{}, ErrSelfCallNotAllowed
	}

	c := Call{
		ID:              newCallID(),
		CallerID:        caller.ID,
		ReceiverID:      receiver.ID,
		CallerAddress:   caller.Address,
		ReceiverAddress: receiver.Address,
		Status:          StatusRinging,
		StartedAt:       ctl.clock().UTC(),
	}

	// Atomic check-then-register for both participants.
	if err := ctl.registry.Insert(c); err != nil {
		return Call{}, err
	}

	ctl.persistActive(ctx, c)

	if originChatID == 0 {
		originChatID = caller.HomeChatID
	}
	callerH, receiverH := ctl.notify.Announce(ctx, c, originChatID, receiver.HomeChatID)

	// Store the handles and arm the ring timer, unless the call already
	// left ringing while the announcements were in flight.
	unlock := ctl.locks.lock(c.ID)
	cur, ok := ctl.registry.Get(c.ID)
	if ok && cur.Status == StatusRinging {
		cur.CallerHandle = callerH
		cur.ReceiverHandle = receiverH
		ctl.registry.Update(cur)
		ctl.sched.Arm(cur.ID)
		c = cur
	}
	unlock()

	ctl.persistActive(ctx, c)

	ctl.log.Info("call initiated",
		"call_id", c.ID, "caller", c.CallerAddress, "receiver", c.ReceiverAddress)
	return c, nil
}

// Answer transitions a ringing call to answered. Only the receiver may
// answer.
func (ctl *Controller) Answer(ctx context.Context, callID string, actorID int64) (Call, error) {
	c, err := func() (Call, error) {
		unlock := ctl.locks.lock(callID)
		defer unlock()

		c, ok := ctl.registry.Get(callID)
		if !ok {
			return Call{}, fmt.Errorf("call %s: %w", callID, ErrNotFound)
		}
		if c.Status != StatusRinging {
			return Call{}, fmt.Errorf("answer in status %s: %w", c.Status, ErrInvalidTransition)
		}
		if actorID != c.ReceiverID {
			return Call{}, fmt.Errorf("participant %d cannot answer: %w", actorID, ErrForbidden)
		}

		ctl.sched.Cancel(callID)
		now := ctl.clock().UTC()
		c.Status = StatusAnswered
		c.AnsweredAt = &now
		ctl.registry.Update(c)
		return c, nil
	}()
	if err != nil {
		return Call{}, err
	}

	ctl.notify.Sync(ctx, c)
	ctl.persistActive(ctx, c)
	ctl.log.Info("call answered", "call_id", c.ID)
	return c, nil
}

// Reject transitions a ringing call to rejected. Only the receiver may
// reject.
func (ctl *Controller) Reject(ctx context.Context, callID string, actorID int64) (Call, error) {
	c, err := func() (Call, error) {
		unlock := ctl.locks.lock(callID)
		defer unlock()

		c, ok := ctl.registry.Get(callID)
		if !ok {
			return Call{}, fmt.Errorf("call %s: %w", callID, ErrNotFound)
		}
		if c.Status != StatusRinging {
			return Call{}, fmt.Errorf("reject in status %s: %w", c.Status, ErrInvalidTransition)
		}
		if actorID != c.ReceiverID {
			return Call{}, fmt.Errorf("participant %d cannot reject: %w", actorID, ErrForbidden)
		}

		ctl.sched.Cancel(callID)
		now := ctl.clock().UTC()
		c.Status = StatusRejected
		c.EndedAt = &now
		ctl.registry.Remove(callID)
		return c, nil
	}()
	if err != nil {
		return Call{}, err
	}

	ctl.retire(ctx, c)
	ctl.log.Info("call rejected", "call_id", c.ID)
	return c, nil
}

// End transitions an answered call to ended. Either participant may end.
// Duration is derived from the answered and ended timestamps.
func (ctl *Controller) End(ctx context.Context, callID string, actorID int64) (Call, error) {
	c, err := func() (Call, error) {
		unlock := ctl.locks.lock(callID)
		defer unlock()

		c, ok := ctl.registry.Get(callID)
		if !ok {
			return Call{}, fmt.Errorf("call %s: %w", callID, ErrNotFound)
		}
		if c.Status != StatusAnswered {
			return Call{}, fmt.Errorf("end in status %s: %w", c.Status, ErrInvalidTransition)
		}
		if _, part := c.Counterpart(actorID); !part {
			return Call{}, fmt.Errorf("participant %d cannot end: %w", actorID, ErrForbidden)
		}

		now := ctl.clock().UTC()
		c.Status = StatusEnded
		c.EndedAt = &now
		if d := int(now.Sub(*c.AnsweredAt) / time.Second); d > 0 {
			c.DurationSeconds = d
		}
		ctl.registry.Remove(callID)
		return c, nil
	}()
	if err != nil {
		return Call{}, err
	}

	ctl.retire(ctx, c)
	ctl.log.Info("call ended", "call_id", c.ID, "duration_seconds", c.DurationSeconds)
	return c, nil
}

// ExpireIfStillRinging marks a ringing call as missed. It is invoked by the
// scheduler and by recovery, never by a user action, and is a silent no-op
// when the call has already left ringing (the natural race with a concurrent
// answer or reject).
func (ctl *Controller) ExpireIfStillRinging(ctx context.Context, callID string) {
	c, expired := func() (Call, bool) {
		unlock := ctl.locks.lock(callID)
		defer unlock()

		c, ok := ctl.registry.Get(callID)
		if !ok || c.Status != StatusRinging {
			return Call{}, false
		}

		now := ctl.clock().UTC()
		c.Status = StatusMissed
		c.EndedAt = &now
		ctl.registry.Remove(callID)
		return c, true
	}()
	if !expired {
		return
	}

	ctl.retire(ctx, c)
	ctl.log.Info("call missed", "call_id", c.ID)
}

// Relay forwards payload to the counterpart of fromID on an answered call.
// It never mutates call state. Anything but an answered call the sender is
// part of drops the payload silently: relay is invoked opportunistically by
// the generic message handler, so a non-connected call is not an error.
func (ctl *Controller) Relay(ctx context.Context, callID string, fromID int64, payload string) (bool, error) {
	c, ok := ctl.registry.Get(callID)
	if !ok || c.Status != StatusAnswered {
		return false, nil
	}
	if _, part := c.Counterpart(fromID); !part {
		return false, nil
	}
	if err := ctl.notify.Forward(ctx, c, fromID, payload); err != nil {
		return false, err
	}
	return true, nil
}

// ActiveFor returns the active call the participant is part of, if any.
func (ctl *Controller) ActiveFor(participantID int64) (Call, bool) {
	return ctl.registry.ActiveFor(participantID)
}

// ActiveCalls returns a snapshot of all active calls.
func (ctl *Controller) ActiveCalls() []Call {
	return ctl.registry.Snapshot()
}

// History lists the participant's most recent terminal calls.
func (ctl *Controller) History(ctx context.Context, participantID int64, limit int) ([]HistoryRecord, error) {
	recs, err := ctl.store.ListHistory(ctx, participantID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return recs, nil
}

// Adopt registers a rehydrated call without side effects. Used by recovery.
func (ctl *Controller) Adopt(c Call) error {
	return ctl.registry.Insert(c)
}

// ResumeRingTimer arms the expiry timer with a custom remaining delay.
// Used by recovery so a restart does not extend the ring window.
func (ctl *Controller) ResumeRingTimer(callID string, remaining time.Duration) {
	ctl.sched.ArmAfter(callID, remaining)
}

// retire finishes a terminal transition outside the per-call lock: sync both
// notifications, then atomically drop the active mirror and append exactly
// one history record.
func (ctl *Controller) retire(ctx context.Context, c Call) {
	ctl.notify.Sync(ctx, c)
	if err := ctl.store.RetireCall(ctx, c.ID, NewHistoryRecord(c, ctl.clock())); err != nil {
		ctl.log.Warn("call retire persist failed, continuing memory-only", "call_id", c.ID, "err", err)
	}
}

func (ctl *Controller) persistActive(ctx context.Context, c Call) {
	if err := ctl.store.UpsertActiveCall(ctx, c); err != nil {
		ctl.log.Warn("active call upsert failed, continuing memory-only", "call_id", c.ID, "err", err)
	}
}

// keyedMutex serializes work per call id. Entries are reference-counted so
// retired call ids do not accumulate.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyedMutexEntry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &keyedMutexEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
