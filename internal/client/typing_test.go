package client

import (
	"sync"
	"testing"
	"time"

	"github.com/meetwire/meetwire/internal/proto"
)

func TestTypingDebounceSingleTimer(t *testing.T) {
	c, ch := newTestClient(t, "alice", Handlers{})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	// A burst of keystrokes inside the idle window. Every tick re-emits
	// typing so the peer can refresh its staleness window.
	for i := 0; i < 5; i++ {
		c.TypingActivity()
		time.Sleep(3 * time.Millisecond)
	}

	if got := ch.sent(proto.EventTyping); len(got) != 5 {
		t.Fatalf("expected a typing emit per tick, got %d", len(got))
	}

	waitFor(t, time.Second, func() bool {
		return len(ch.sent(proto.EventStopTyping)) == 1
	})
	// The window stays quiet after firing once.
	time.Sleep(60 * time.Millisecond)
	if got := ch.sent(proto.EventStopTyping); len(got) != 1 {
		t.Fatalf("stop_typing fired %d times", len(got))
	}

	typing := decodeEmit[proto.TypingData](t, ch.sent(proto.EventTyping)[0])
	if typing.Room != "alice_bob" || typing.Identity != "alice" {
		t.Fatalf("typing payload: %+v", typing)
	}
}

func TestTypingNewBurstAfterIdle(t *testing.T) {
	c, ch := newTestClient(t, "alice", Handlers{})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	c.TypingActivity()
	waitFor(t, time.Second, func() bool {
		return len(ch.sent(proto.EventStopTyping)) == 1
	})

	c.TypingActivity()
	if got := ch.sent(proto.EventTyping); len(got) != 2 {
		t.Fatalf("second burst must emit typing again, got %d", len(got))
	}
	waitFor(t, time.Second, func() bool {
		return len(ch.sent(proto.EventStopTyping)) == 2
	})
}

func TestSendMessageEndsTypingBurst(t *testing.T) {
	c, ch := newTestClient(t, "alice", Handlers{})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	c.TypingActivity()
	if err := c.SendMessage("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := ch.sent(proto.EventStopTyping); len(got) != 1 {
		t.Fatalf("send must flush the burst, got %d stop_typing", len(got))
	}
	// The idle timer was cancelled, no second stop follows.
	time.Sleep(60 * time.Millisecond)
	if got := ch.sent(proto.EventStopTyping); len(got) != 1 {
		t.Fatalf("cancelled timer still fired: %d", len(got))
	}
}

func TestTypingWithoutRoomIsNoOp(t *testing.T) {
	c, ch := newTestClient(t, "alice", Handlers{})

	c.TypingActivity()
	time.Sleep(60 * time.Millisecond)

	if len(ch.sent(proto.EventTyping)) != 0 || len(ch.sent(proto.EventStopTyping)) != 0 {
		t.Fatal("typing events emitted without a room")
	}
}

func TestRemoteTypingIndicator(t *testing.T) {
	type change struct {
		active   bool
		identity string
	}
	var changes []change
	c, ch := newTestClient(t, "alice", Handlers{
		OnTypingChanged: func(active bool, identity string) {
			changes = append(changes, change{active, identity})
		},
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ch.deliver(t, proto.EventTyping, proto.TypingData{Room: "alice_bob", Identity: "bob"})
	ch.deliver(t, proto.EventStopTyping, proto.TypingData{Room: "alice_bob", Identity: "bob"})

	if len(changes) != 2 || !changes[0].active || changes[1].active {
		t.Fatalf("typing changes: %+v", changes)
	}
	if changes[0].identity != "bob" {
		t.Fatalf("identity: %+v", changes[0])
	}
}

func TestRemoteTypingClearedByMessage(t *testing.T) {
	var changes []bool
	c, ch := newTestClient(t, "alice", Handlers{
		OnTypingChanged: func(active bool, _ string) { changes = append(changes, active) },
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ch.deliver(t, proto.EventTyping, proto.TypingData{Room: "alice_bob", Identity: "bob"})
	ch.deliver(t, proto.EventChatMessage, proto.ChatMessageData{
		ID: 1, Identity: "bob", Room: "alice_bob", Kind: proto.KindText, Content: "done typing",
	})

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Fatalf("typing changes: %v", changes)
	}
}

func TestRemoteTypingExpiresWithoutStop(t *testing.T) {
	var mu sync.Mutex
	var changes []bool
	c, ch := newTestClient(t, "alice", Handlers{
		OnTypingChanged: func(active bool, _ string) {
			mu.Lock()
			changes = append(changes, active)
			mu.Unlock()
		},
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ch.deliver(t, proto.EventTyping, proto.TypingData{Room: "alice_bob", Identity: "bob"})

	// The peer's stop_typing never arrives (dropped or disconnected); the
	// staleness window clears the indicator on its own.
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2 && changes[0] && !changes[1]
	})
}

func TestForeignRoomTypingIgnored(t *testing.T) {
	var fired int
	c, ch := newTestClient(t, "alice", Handlers{
		OnTypingChanged: func(bool, string) { fired++ },
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ch.deliver(t, proto.EventTyping, proto.TypingData{Room: "alice_carol", Identity: "carol"})

	if fired != 0 {
		t.Fatal("foreign room typing surfaced")
	}
}
