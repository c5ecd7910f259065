package directory

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"A1234", "A1234", true},
		{"b2222", "B2222", true},
		{" c3333 ", "C3333", true},
		{"", "", false},
		{"1234A", "", false},
		{"AB123", "", false},
		{"A12345", "", false},
		{"A123", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeAddress(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: got %q %v", tc.in, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("%q: expected ErrInvalidAddress, got %v", tc.in, err)
		}
	}
}

func TestService_RegisterAndResolve(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, 1, "alice", "bogus", -100); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("invalid address: got %v", err)
	}

	reg, err := svc.Register(ctx, 1, "alice", "a1111", -100)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Address != "A1111" {
		t.Fatalf("address not normalized: %q", reg.Address)
	}

	p, err := svc.ResolveAddress(ctx, "a1111")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.ID != 1 || p.HomeChatID != -100 {
		t.Fatalf("resolved wrong participant: %+v", p)
	}

	p, err = svc.Lookup(ctx, 1)
	if err != nil || p.Address != "A1111" {
		t.Fatalf("lookup: %+v %v", p, err)
	}

	if _, err := svc.Lookup(ctx, 99); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("unknown user: got %v", err)
	}
	if _, err := svc.ResolveAddress(ctx, "Z9999"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("unknown address: got %v", err)
	}
}

func TestService_AddressExclusivity(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, 1, "alice", "A1111", -100); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, 2, "bob", "A1111", -200); !errors.Is(err, ErrAddressTaken) {
		t.Fatalf("expected ErrAddressTaken, got %v", err)
	}

	// Re-registering the same address for the same user is fine.
	if _, err := svc.Register(ctx, 1, "alice", "A1111", -150); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	p, err := svc.Lookup(ctx, 1)
	if err != nil || p.HomeChatID != -150 {
		t.Fatalf("home chat not updated: %+v %v", p, err)
	}
}

// lookupFailingRepo simulates a repo whose address lookups error out.
type lookupFailingRepo struct {
	*MemoryRepo
	addressErr error
}

func (r *lookupFailingRepo) GetByAddress(ctx context.Context, address string) (Registration, error) {
	if r.addressErr != nil {
		return Registration{}, r.addressErr
	}
	return r.MemoryRepo.GetByAddress(ctx, address)
}

func TestService_RegisterFailsClosedOnRepoError(t *testing.T) {
	repo := &lookupFailingRepo{MemoryRepo: NewMemoryRepo(), addressErr: errors.New("connection reset")}
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, 1, "alice", "A1111", -100); err == nil {
		t.Fatalf("expected error when address check fails")
	}
	if _, err := repo.GetByUserID(ctx, 1); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("registration written despite failed address check: %v", err)
	}

	// Once the repo recovers, the same registration goes through.
	repo.addressErr = nil
	if _, err := svc.Register(ctx, 1, "alice", "A1111", -100); err != nil {
		t.Fatalf("register after recovery: %v", err)
	}
}

func TestService_ContactBook(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if _, err := svc.AddContact(ctx, 1, "x", "B2222"); err == nil {
		t.Fatalf("expected error for one-letter name")
	}
	if _, err := svc.AddContact(ctx, 1, "Bob", "bad"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("invalid contact address: got %v", err)
	}

	added, err := svc.AddContact(ctx, 1, "Bob", "b2222")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddContact(ctx, 1, "Anna", "C3333"); err != nil {
		t.Fatalf("add: %v", err)
	}

	list, err := svc.Contacts(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Anna" || list[1].Address != "B2222" {
		t.Fatalf("contact list mismatch: %+v", list)
	}

	if err := svc.RemoveContact(ctx, 1, added.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.RemoveContact(ctx, 1, added.ID); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("double remove: got %v", err)
	}

	// Contacts are per owner.
	other, err := svc.Contacts(ctx, 2)
	if err != nil || len(other) != 0 {
		t.Fatalf("owner scoping broken: %+v %v", other, err)
	}
}
