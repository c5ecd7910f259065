package call

import (
	"context"
	"strings"
	"testing"
	"time"
)

func sampleCall(status Status) Call {
	c := Call{
		ID: "c1", CallerID: alice.ID, ReceiverID: bob.ID,
		CallerAddress: alice.Address, ReceiverAddress: bob.Address,
		Status: status, StartedAt: time.Now().UTC(),
		CallerHandle:   MessageHandle{ChatID: -50, MessageID: 1},
		ReceiverHandle: MessageHandle{ChatID: bob.HomeChatID, MessageID: 2},
	}
	return c
}

func actionKinds(actions []Action) []string {
	var out []string
	for _, a := range actions {
		kind, _, _ := ParseActionData(a.Data)
		out = append(out, kind)
	}
	return out
}

func TestRenderings_ActionsFollowStatus(t *testing.T) {
	ringing := sampleCall(StatusRinging)
	if got := renderCallerSide(ringing).actions; len(got) != 0 {
		t.Fatalf("caller side must have no actions while ringing, got %v", got)
	}
	kinds := actionKinds(renderReceiverSide(ringing).actions)
	if len(kinds) != 2 || kinds[0] != ActionAnswer || kinds[1] != ActionReject {
		t.Fatalf("receiver ringing actions: %v", kinds)
	}

	answered := sampleCall(StatusAnswered)
	for _, r := range []rendering{renderCallerSide(answered), renderReceiverSide(answered)} {
		kinds := actionKinds(r.actions)
		if len(kinds) != 1 || kinds[0] != ActionEnd {
			t.Fatalf("answered actions: %v", kinds)
		}
	}

	for _, status := range []Status{StatusRejected, StatusMissed, StatusEnded} {
		c := sampleCall(status)
		if len(renderCallerSide(c).actions) != 0 || len(renderReceiverSide(c).actions) != 0 {
			t.Fatalf("terminal status %s still renders actions", status)
		}
	}
}

func TestRenderings_EndedShowsDuration(t *testing.T) {
	c := sampleCall(StatusEnded)
	c.DurationSeconds = 42
	if txt := renderCallerSide(c).text; !strings.Contains(txt, "42s") {
		t.Fatalf("caller ended text misses duration: %q", txt)
	}
	if txt := renderReceiverSide(c).text; !strings.Contains(txt, "42s") {
		t.Fatalf("receiver ended text misses duration: %q", txt)
	}
}

func TestSync_EditsBothSidesIndependently(t *testing.T) {
	n := &fakeNotifier{}
	ns := NewNotificationSync(n, nil)

	c := sampleCall(StatusAnswered)
	ns.Sync(context.Background(), c)
	if got := len(n.Edits()); got != 2 {
		t.Fatalf("expected 2 edits, got %d", got)
	}

	// A side with no handle (failed initial send) is skipped, the other
	// side still updates.
	n2 := &fakeNotifier{}
	ns2 := NewNotificationSync(n2, nil)
	c.CallerHandle = MessageHandle{}
	ns2.Sync(context.Background(), c)
	edits := n2.Edits()
	if len(edits) != 1 || edits[0].Handle != c.ReceiverHandle {
		t.Fatalf("expected only receiver edit, got %+v", edits)
	}
}

func TestForward_RoutesToCounterpartChat(t *testing.T) {
	n := &fakeNotifier{}
	ns := NewNotificationSync(n, nil)
	c := sampleCall(StatusAnswered)

	if err := ns.Forward(context.Background(), c, bob.ID, "on my way"); err != nil {
		t.Fatalf("forward: %v", err)
	}
	delivered := n.Delivered()
	if len(delivered) != 1 || delivered[0].ChatID != c.CallerHandle.ChatID {
		t.Fatalf("forwarded to wrong chat: %+v", delivered)
	}
	if !strings.Contains(delivered[0].Text, bob.Address) {
		t.Fatalf("sender address missing from %q", delivered[0].Text)
	}

	if err := ns.Forward(context.Background(), c, carol.ID, "hi"); err == nil {
		t.Fatalf("expected error for non-participant")
	}
}
