package client

import (
	"errors"
	"testing"

	"github.com/meetwire/meetwire/internal/call"
	"github.com/meetwire/meetwire/internal/proto"
)

func TestIntentsRequireActiveRoom(t *testing.T) {
	c, _ := newTestClient(t, "alice", Handlers{})

	cases := map[string]func() error{
		"send_message":    func() error { return c.SendMessage("x") },
		"send_image":      func() error { return c.SendImage("x") },
		"send_file":       func() error { return c.SendFile("x", "a.txt") },
		"send_tts":        func() error { return c.SendTTS("x") },
		"send_transcript": func() error { return c.SendTranscript("x", true) },
		"delete_message":  func() error { return c.DeleteMessage(1) },
		"clear_history":   func() error { return c.ClearHistory() },
		"start_call":      func() error { return c.StartCall(false) },
	}
	for name, fn := range cases {
		var cerr *Error
		if err := fn(); !errors.As(err, &cerr) || cerr.Code != CodeNoActiveRoom {
			t.Fatalf("%s: expected no_active_room, got %v", name, fn())
		}
	}
}

func TestSendEchoScenario(t *testing.T) {
	var received []proto.ChatMessageData
	c, ch := newTestClient(t, "alice", Handlers{
		OnMessage: func(msg proto.ChatMessageData) { received = append(received, msg) },
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := c.SendMessage("hello bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	sends := ch.sent(proto.EventSendMessage)
	if len(sends) != 1 {
		t.Fatalf("expected one send_message, got %d", len(sends))
	}
	sent := decodeEmit[proto.SendData](t, sends[0])
	if sent.Identity != "alice" || sent.Room != "alice_bob" || sent.Content != "hello bob" {
		t.Fatalf("send payload: %+v", sent)
	}
	if len(c.Messages()) != 0 {
		t.Fatal("message appeared locally before the relay echo")
	}

	echo := proto.ChatMessageData{
		ID: 11, Identity: "alice", Room: "alice_bob",
		Kind: proto.KindText, Content: "hello bob", TimestampDisplay: "15:04",
	}
	ch.deliver(t, proto.EventChatMessage, echo)

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].ID != 11 {
		t.Fatalf("echo not applied: %+v", msgs)
	}
	if len(received) != 1 || received[0].Content != "hello bob" {
		t.Fatalf("OnMessage: %+v", received)
	}
}

func TestSendFileCarriesOriginalName(t *testing.T) {
	c, ch := newTestClient(t, "alice", Handlers{})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := c.SendFile("payload", "notes.pdf"); err != nil {
		t.Fatalf("send file: %v", err)
	}
	sent := decodeEmit[proto.SendData](t, ch.sent(proto.EventSendFile)[0])
	if sent.OriginalName != "notes.pdf" {
		t.Fatalf("original name: %+v", sent)
	}
}

func TestForeignRoomMessageIgnored(t *testing.T) {
	var fired int
	c, ch := newTestClient(t, "alice", Handlers{
		OnMessage: func(proto.ChatMessageData) { fired++ },
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ch.deliver(t, proto.EventChatMessage, proto.ChatMessageData{
		ID: 1, Identity: "carol", Room: "alice_carol", Kind: proto.KindText, Content: "wrong room",
	})

	if fired != 0 || len(c.Messages()) != 0 {
		t.Fatal("foreign room message surfaced")
	}
}

func TestPlayTTSBecomesEchoMessage(t *testing.T) {
	var received []proto.ChatMessageData
	c, ch := newTestClient(t, "alice", Handlers{
		OnMessage: func(msg proto.ChatMessageData) { received = append(received, msg) },
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	ch.deliver(t, proto.EventPlayTTS, proto.TTSData{Room: "alice_bob", Identity: "bob", Text: "read this"})

	if len(received) != 1 || received[0].Kind != proto.KindTTSEcho || received[0].Content != "read this" {
		t.Fatalf("tts echo: %+v", received)
	}
	if received[0].ID != 0 {
		t.Fatal("synthetic message must not carry a relay id")
	}
}

func TestPresenceUpdates(t *testing.T) {
	var members []string
	c, ch := newTestClient(t, "alice", Handlers{
		OnPresenceChanged: func(m []string) { members = m },
	})
	_ = c

	ch.deliver(t, proto.EventUpdatePresence, []string{"alice", "bob"})

	if len(members) != 2 || members[0] != "alice" || members[1] != "bob" {
		t.Fatalf("presence: %v", members)
	}
}

func TestSignalRoutedToCallEngine(t *testing.T) {
	var states []call.State
	c, ch := newTestClient(t, "bob", Handlers{
		OnCallStateChanged: func(s call.State) { states = append(states, s) },
	})
	if _, err := c.Open("alice"); err != nil {
		t.Fatalf("open: %v", err)
	}

	// An incoming offer drives the engine into the callee role.
	ch.deliver(t, proto.EventSignal, proto.SignalData{
		Room: "alice_bob",
		Type: proto.SignalOffer,
		SDP:  []byte(`{"type":"offer","sdp":"v=0"}`),
	})

	if c.CallState() != call.StateNegotiating {
		t.Fatalf("engine state: %s", c.CallState())
	}
	if len(states) == 0 || states[0] != call.StateNegotiating {
		t.Fatalf("state callbacks: %v", states)
	}
	if answers := ch.sent(proto.EventSignal); len(answers) != 1 {
		t.Fatalf("expected answer signal, got %d", len(answers))
	}
}

func TestStartCallMediaDenied(t *testing.T) {
	ch := newFakeChannel()
	c := New(Options{
		Identity: "alice",
		Channel:  ch,
		NewPeer:  func() (call.PeerConnection, error) { return &stubPeer{}, nil },
		Media:    deniedMedia{},
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}

	var cerr *Error
	if err := c.StartCall(true); !errors.As(err, &cerr) || cerr.Code != CodeMediaAccessDenied {
		t.Fatalf("expected media_access_denied, got %v", err)
	}
	if c.CallState() != call.StateIdle {
		t.Fatalf("state after denial: %s", c.CallState())
	}
}

func TestDisconnectTearsDownSession(t *testing.T) {
	var left []string
	var errs []error
	c, _ := newTestClient(t, "alice", Handlers{
		OnLeaveRoom: func(room string) { left = append(left, room) },
		OnError:     func(err error) { errs = append(errs, err) },
	})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.StartCall(false); err != nil {
		t.Fatalf("start call: %v", err)
	}

	c.HandleDisconnect(errors.New("connection reset"))

	if c.Room() != "" {
		t.Fatalf("room survived disconnect: %q", c.Room())
	}
	if c.CallState() != call.StateIdle {
		t.Fatalf("call survived disconnect: %s", c.CallState())
	}
	if len(left) != 1 || left[0] != "alice_bob" {
		t.Fatalf("leave observable: %v", left)
	}
	var cerr *Error
	if len(errs) != 1 || !errors.As(errs[0], &cerr) || cerr.Code != CodeTransportDisconnected {
		t.Fatalf("errors: %v", errs)
	}
}

func TestHangupIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t, "alice", Handlers{})
	if _, err := c.Open("bob"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.StartCall(false); err != nil {
		t.Fatalf("start call: %v", err)
	}

	c.Hangup()
	c.Hangup()

	if c.CallState() != call.StateIdle {
		t.Fatalf("state: %s", c.CallState())
	}
}

type deniedMedia struct{}

func (deniedMedia) Acquire(call.Constraints) (call.Stream, error) {
	return nil, errors.New("device busy")
}
