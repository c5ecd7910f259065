package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo keeps registrations and contacts in process memory. It backs
// the bot when no database is configured and serves as the test repo.
type MemoryRepo struct {
	mu            sync.Mutex
	registrations map[int64]Registration
	contacts      map[int64][]Contact
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		registrations: make(map[int64]Registration),
		contacts:      make(map[int64][]Contact),
	}
}

func (r *MemoryRepo) UpsertRegistration(_ context.Context, reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[reg.UserID] = reg
	return nil
}

func (r *MemoryRepo) GetByUserID(_ context.Context, userID int64) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[userID]
	if !ok {
		return Registration{}, ErrNotRegistered
	}
	return reg, nil
}

func (r *MemoryRepo) GetByAddress(_ context.Context, address string) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if strings.EqualFold(reg.Address, address) {
			return reg, nil
		}
	}
	return Registration{}, ErrNotRegistered
}

func (r *MemoryRepo) AddContact(_ context.Context, c Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.OwnerID] = append(r.contacts[c.OwnerID], c)
	return nil
}

func (r *MemoryRepo) ListContacts(_ context.Context, ownerID int64) ([]Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Contact, len(r.contacts[ownerID]))
	copy(out, r.contacts[ownerID])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) DeleteContact(_ context.Context, ownerID int64, contactID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.contacts[ownerID]
	for i, c := range list {
		if c.ID == contactID {
			r.contacts[ownerID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrContactNotFound
}
