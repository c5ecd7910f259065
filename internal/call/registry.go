package call

import (
	"fmt"
	"sync"
)

// Registry is the authoritative in-memory index of active calls, keyed by
// call id and by participant id. All methods are safe for concurrent use.
//
// The participant index is what makes the one-active-call-per-participant
// invariant checkable atomically: Insert verifies both participants and
// registers the call under one lock, so two concurrent initiates touching
// the same participant cannot both succeed.
type Registry struct {
	mu            sync.RWMutex
	byID          map[string]Call
	byParticipant map[int64]string
}

func NewRegistry() *Registry {
	return &Registry{
		byID:          make(map[string]Call),
		byParticipant: make(map[int64]string),
	}
}

// Insert registers a new active call. It fails with ErrAlreadyInCall if
// either participant is already part of an active call, and refuses
// duplicate call ids.
func (r *Registry) Insert(c Call) error {
	if !c.Status.IsActive() {
		return fmt.Errorf("cannot register call %s with terminal status %s", c.ID, c.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; exists {
		return fmt.Errorf("call %s already registered", c.ID)
	}
	if _, busy := r.byParticipant[c.CallerID]; busy {
		return fmt.Errorf("caller %d: %w", c.CallerID, ErrAlreadyInCall)
	}
	if _, busy := r.byParticipant[c.ReceiverID]; busy {
		return fmt.Errorf("receiver %d: %w", c.ReceiverID, ErrAlreadyInCall)
	}

	r.byID[c.ID] = c
	r.byParticipant[c.CallerID] = c.ID
	r.byParticipant[c.ReceiverID] = c.ID
	return nil
}

// Get returns a copy of the call by id.
func (r *Registry) Get(id string) (Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// Update replaces the stored call. The call must already be registered;
// participant ids never change after Insert.
func (r *Registry) Update(c Call) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return false
	}
	r.byID[c.ID] = c
	return true
}

// Remove drops the call and frees both participants.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byParticipant, c.CallerID)
	delete(r.byParticipant, c.ReceiverID)
}

// ActiveFor returns the active call the participant is part of, if any.
func (r *Registry) ActiveFor(participantID int64) (Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byParticipant[participantID]
	if !ok {
		return Call{}, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// Snapshot returns copies of all active calls.
func (r *Registry) Snapshot() []Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Call, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// Len returns the number of active calls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
