package call

import (
	"sync"
	"time"
)

// Scheduler owns one cancellable ring-expiry timer per ringing call.
//
// Cancel is synchronous with the transition that retires the call: after
// Cancel returns, the expiry callback will not run for that call id. The
// callback itself re-checks call status under the controller's per-call
// serialization, so even the unavoidable race between a firing timer and a
// concurrent answer resolves to a no-op.
type Scheduler struct {
	mu      sync.Mutex
	timeout time.Duration
	expire  func(callID string)
	timers  map[string]*time.Timer
}

func NewScheduler(timeout time.Duration, expire func(callID string)) *Scheduler {
	return &Scheduler{
		timeout: timeout,
		expire:  expire,
		timers:  make(map[string]*time.Timer),
	}
}

// Arm schedules expiry after the full ring timeout.
func (s *Scheduler) Arm(callID string) {
	s.ArmAfter(callID, s.timeout)
}

// ArmAfter schedules expiry after a custom delay. Recovery uses this to
// preserve the originally scheduled wall-clock expiry across restarts.
// Re-arming an already armed call replaces its timer.
func (s *Scheduler) ArmAfter(callID string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[callID]; ok {
		t.Stop()
	}
	s.timers[callID] = time.AfterFunc(d, func() { s.fire(callID) })
}

func (s *Scheduler) fire(callID string) {
	s.mu.Lock()
	_, armed := s.timers[callID]
	delete(s.timers, callID)
	s.mu.Unlock()

	// A timer cancelled after its goroutine started is no longer in the
	// map; it must not reach the expiry callback.
	if !armed {
		return
	}
	s.expire(callID)
}

// Cancel stops the timer for the call, if armed.
func (s *Scheduler) Cancel(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[callID]; ok {
		t.Stop()
		delete(s.timers, callID)
	}
}

// Stop cancels every armed timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Armed reports whether the call currently has a pending expiry timer.
func (s *Scheduler) Armed(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[callID]
	return ok
}
