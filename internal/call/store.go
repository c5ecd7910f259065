package call

import (
	"context"
	"sort"
	"sync"
)

// Store is the persistence contract for active calls and call history.
//
// Writes are best-effort relative to in-memory state: the registry commits
// first and is authoritative, and a store failure degrades the bot to
// memory-only behavior with a logged warning. Upsert must be idempotent,
// keyed by call id; AppendHistory is append-only.
type Store interface {
	UpsertActiveCall(ctx context.Context, c Call) error
	DeleteActiveCall(ctx context.Context, callID string) error
	ListActiveCalls(ctx context.Context, statuses ...Status) ([]Call, error)

	AppendHistory(ctx context.Context, rec HistoryRecord) error
	ListHistory(ctx context.Context, participantID int64, limit int) ([]HistoryRecord, error)

	// RetireCall composes DeleteActiveCall and AppendHistory atomically:
	// a terminal call must never persist as both active and historical.
	RetireCall(ctx context.Context, callID string, rec HistoryRecord) error
}

// MemoryStore keeps calls and history in process memory. It is the fallback
// when no database is configured and the fixture store for tests. It
// intentionally provides no cross-restart durability.
type MemoryStore struct {
	mu      sync.Mutex
	active  map[string]Call
	history []HistoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[string]Call)}
}

func (s *MemoryStore) UpsertActiveCall(_ context.Context, c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[c.ID] = c
	return nil
}

func (s *MemoryStore) DeleteActiveCall(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, callID)
	return nil
}

func (s *MemoryStore) ListActiveCalls(_ context.Context, statuses ...Status) ([]Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.active {
		if len(statuses) == 0 || statusIn(c.Status, statuses) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, rec HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, participantID int64, limit int) ([]HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []HistoryRecord
	for i := len(s.history) - 1; i >= 0; i-- {
		rec := s.history[i]
		if rec.CallerID == participantID || rec.ReceiverID == participantID {
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) RetireCall(_ context.Context, callID string, rec HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, callID)
	s.history = append(s.history, rec)
	return nil
}

// History returns every record, oldest first. Test helper.
func (s *MemoryStore) History() []HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
