package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callbridge/internal/call"

	"github.com/google/uuid"
)

// Repository is the persistence contract for registrations and contacts.
type Repository interface {
	UpsertRegistration(ctx context.Context, reg Registration) error
	GetByUserID(ctx context.Context, userID int64) (Registration, error)
	GetByAddress(ctx context.Context, address string) (Registration, error)

	AddContact(ctx context.Context, c Contact) error
	ListContacts(ctx context.Context, ownerID int64) ([]Contact, error)
	DeleteContact(ctx context.Context, ownerID int64, contactID string) error
}

// Service owns address registration and the contact book, and implements the
// call controller's Directory port.
type Service struct {
	repo Repository

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Register binds userID to address, with homeChatID as the chat incoming
// calls are announced in. An address held by a different user is refused.
func (s *Service) Register(ctx context.Context, userID int64, username, rawAddress string, homeChatID int64) (Registration, error) {
	address, err := NormalizeAddress(rawAddress)
	if err != nil {
		return Registration{}, err
	}

	// Only a definitive "nobody holds this address" clears the way; a repo
	// failure must not hand out an address that may be taken.
	switch owner, err := s.repo.GetByAddress(ctx, address); {
	case err == nil:
		if owner.UserID != userID {
			return Registration{}, fmt.Errorf("address %s: %w", address, ErrAddressTaken)
		}
	case !errors.Is(err, ErrNotRegistered):
		return Registration{}, fmt.Errorf("check address %s: %w", address, err)
	}

	reg := Registration{
		UserID:     userID,
		Username:   username,
		Address:    address,
		HomeChatID: homeChatID,
		UpdatedAt:  s.clock().UTC(),
	}
	if err := s.repo.UpsertRegistration(ctx, reg); err != nil {
		return Registration{}, fmt.Errorf("save registration: %w", err)
	}
	return reg, nil
}

// Lookup implements call.Directory.
func (s *Service) Lookup(ctx context.Context, participantID int64) (call.Participant, error) {
	reg, err := s.repo.GetByUserID(ctx, participantID)
	if err != nil {
		return call.Participant{}, err
	}
	return toParticipant(reg), nil
}

// ResolveAddress implements call.Directory.
func (s *Service) ResolveAddress(ctx context.Context, rawAddress string) (call.Participant, error) {
	address, err := NormalizeAddress(rawAddress)
	if err != nil {
		return call.Participant{}, err
	}
	reg, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		return call.Participant{}, err
	}
	return toParticipant(reg), nil
}

// AddContact stores a named contact in the owner's book. The address is
// validated but not required to be registered yet.
func (s *Service) AddContact(ctx context.Context, ownerID int64, name, rawAddress string) (Contact, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return Contact{}, fmt.Errorf("contact name too short")
	}
	address, err := NormalizeAddress(rawAddress)
	if err != nil {
		return Contact{}, err
	}
	c := Contact{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Address:   address,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.AddContact(ctx, c); err != nil {
		return Contact{}, fmt.Errorf("save contact: %w", err)
	}
	return c, nil
}

// Contacts lists the owner's contact book sorted by name.
func (s *Service) Contacts(ctx context.Context, ownerID int64) ([]Contact, error) {
	return s.repo.ListContacts(ctx, ownerID)
}

// RemoveContact deletes one contact from the owner's book.
func (s *Service) RemoveContact(ctx context.Context, ownerID int64, contactID string) error {
	return s.repo.DeleteContact(ctx, ownerID, contactID)
}

// RegistrationOf returns the caller's own registration.
func (s *Service) RegistrationOf(ctx context.Context, userID int64) (Registration, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func toParticipant(reg Registration) call.Participant {
	return call.Participant{
		ID:         reg.UserID,
		Address:    reg.Address,
		Username:   reg.Username,
		HomeChatID: reg.HomeChatID,
	}
}
