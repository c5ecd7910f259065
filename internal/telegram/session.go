package telegram

import "sync"

type contactStep int

const (
	stepNone contactStep = iota
	stepContactName
	stepContactAddress
)

// Sessions tracks the per-user state of the two-step contact-add dialog
// (ask for a name, then an address). State is in-memory only; losing it on
// restart just cancels an unfinished dialog.
type Sessions struct {
	mu    sync.Mutex
	steps map[int64]contactStep
	names map[int64]string
}

func NewSessions() *Sessions {
	return &Sessions{
		steps: make(map[int64]contactStep),
		names: make(map[int64]string),
	}
}

func (s *Sessions) Begin(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[userID] = stepContactName
	delete(s.names, userID)
}

func (s *Sessions) Step(userID int64) contactStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[userID]
}

// NameGiven records the contact name and advances to the address step.
func (s *Sessions) NameGiven(userID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
	s.steps[userID] = stepContactAddress
}

func (s *Sessions) PendingName(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[userID]
}

func (s *Sessions) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.steps, userID)
	delete(s.names, userID)
}
