package call

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func ringingCall(id string, caller, receiver int64) Call {
	return Call{
		ID: id, CallerID: caller, ReceiverID: receiver,
		Status: StatusRinging, StartedAt: time.Now().UTC(),
	}
}

func TestRegistry_InsertEnforcesParticipantExclusivity(t *testing.T) {
	r := NewRegistry()
	if err := r.Insert(ringingCall("c1", 1, 2)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if err := r.Insert(ringingCall("c2", 1, 3)); !errors.Is(err, ErrAlreadyInCall) {
		t.Fatalf("busy caller: got %v", err)
	}
	if err := r.Insert(ringingCall("c3", 4, 2)); !errors.Is(err, ErrAlreadyInCall) {
		t.Fatalf("busy receiver: got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("failed inserts must not register anything, len=%d", r.Len())
	}
}

func TestRegistry_InsertRejectsTerminalStatus(t *testing.T) {
	r := NewRegistry()
	c := ringingCall("c1", 1, 2)
	c.Status = StatusEnded
	if err := r.Insert(c); err == nil {
		t.Fatalf("expected error for terminal status")
	}
}

func TestRegistry_RemoveFreesBothParticipants(t *testing.T) {
	r := NewRegistry()
	if err := r.Insert(ringingCall("c1", 1, 2)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	r.Remove("c1")

	if _, ok := r.ActiveFor(1); ok {
		t.Fatalf("caller still indexed after remove")
	}
	if _, ok := r.ActiveFor(2); ok {
		t.Fatalf("receiver still indexed after remove")
	}
	if err := r.Insert(ringingCall("c2", 1, 2)); err != nil {
		t.Fatalf("participants not freed: %v", err)
	}
}

func TestRegistry_ActiveForFindsEitherSide(t *testing.T) {
	r := NewRegistry()
	if err := r.Insert(ringingCall("c1", 1, 2)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, id := range []int64{1, 2} {
		c, ok := r.ActiveFor(id)
		if !ok || c.ID != "c1" {
			t.Fatalf("participant %d: got %v %v", id, c.ID, ok)
		}
	}
}

func TestRegistry_ConcurrentInsertsAdmitOnePerParticipant(t *testing.T) {
	r := NewRegistry()
	const attempts = 50

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// All attempts involve participant 1 as caller or receiver.
			c := ringingCall(fmt.Sprintf("c%d", i), 1, int64(100+i))
			if i%2 == 0 {
				c.CallerID, c.ReceiverID = c.ReceiverID, c.CallerID
			}
			errs <- r.Insert(c)
		}(i)
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winning insert, got %d", won)
	}
}
