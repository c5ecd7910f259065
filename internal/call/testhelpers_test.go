package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// testClock is a manually advanced clock for deterministic transitions.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock { return &testClock{now: start} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeDirectory resolves from fixed participant fixtures.
type fakeDirectory struct {
	byID      map[int64]Participant
	byAddress map[string]Participant
}

func newFakeDirectory(parts ...Participant) *fakeDirectory {
	d := &fakeDirectory{
		byID:      make(map[int64]Participant),
		byAddress: make(map[string]Participant),
	}
	for _, p := range parts {
		d.byID[p.ID] = p
		d.byAddress[p.Address] = p
	}
	return d
}

func (d *fakeDirectory) Lookup(_ context.Context, id int64) (Participant, error) {
	p, ok := d.byID[id]
	if !ok {
		return Participant{}, fmt.Errorf("participant %d not registered", id)
	}
	return p, nil
}

func (d *fakeDirectory) ResolveAddress(_ context.Context, address string) (Participant, error) {
	p, ok := d.byAddress[address]
	if !ok {
		return Participant{}, fmt.Errorf("address %s not registered", address)
	}
	return p, nil
}

type sentMessage struct {
	ChatID  int64
	Text    string
	Actions []Action
	Handle  MessageHandle
}

type editedMessage struct {
	Handle  MessageHandle
	Text    string
	Actions []Action
}

type deliveredMessage struct {
	ChatID int64
	Text   string
}

// fakeNotifier records all outbound traffic and can be told to fail.
type fakeNotifier struct {
	mu        sync.Mutex
	nextMsgID int
	sends     []sentMessage
	edits     []editedMessage
	delivered []deliveredMessage

	failSends bool
	failEdits bool
}

func (n *fakeNotifier) Send(_ context.Context, chatID int64, text string, actions []Action) (MessageHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failSends {
		return MessageHandle{}, errors.New("send refused")
	}
	n.nextMsgID++
	h := MessageHandle{ChatID: chatID, MessageID: n.nextMsgID}
	n.sends = append(n.sends, sentMessage{ChatID: chatID, Text: text, Actions: actions, Handle: h})
	return h, nil
}

func (n *fakeNotifier) Edit(_ context.Context, h MessageHandle, text string, actions []Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failEdits {
		return errors.New("edit refused")
	}
	n.edits = append(n.edits, editedMessage{Handle: h, Text: text, Actions: actions})
	return nil
}

func (n *fakeNotifier) Deliver(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, deliveredMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *fakeNotifier) Delivered() []deliveredMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]deliveredMessage, len(n.delivered))
	copy(out, n.delivered)
	return out
}

func (n *fakeNotifier) Edits() []editedMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]editedMessage, len(n.edits))
	copy(out, n.edits)
	return out
}

var (
	alice = Participant{ID: 1, Address: "A1111", HomeChatID: -100}
	bob   = Participant{ID: 2, Address: "B2222", HomeChatID: -200}
	carol = Participant{ID: 3, Address: "C3333", HomeChatID: -300}
)

type fixture struct {
	ctl      *Controller
	registry *Registry
	store    *MemoryStore
	notifier *fakeNotifier
	clock    *testClock
}

func newFixture(ringTimeout time.Duration) *fixture {
	f := &fixture{
		registry: NewRegistry(),
		store:    NewMemoryStore(),
		notifier: &fakeNotifier{},
		clock:    newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	log := slog.Default()
	f.ctl = NewController(f.registry, f.store, newFakeDirectory(alice, bob, carol), NewNotificationSync(f.notifier, log), ringTimeout, log)
	f.ctl.clock = f.clock.Now
	return f
}
