package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/meetwire/meetwire/internal/call"
	"github.com/meetwire/meetwire/internal/transport"
)

type emitted struct {
	event string
	data  json.RawMessage
}

// fakeChannel is an in-memory transport.Channel: emits are recorded, and
// deliver pushes relay events into the registered handlers.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string]transport.Handler
	emits    []emitted
	emitErr  error
	closed   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]transport.Handler)}
}

func (f *fakeChannel) Connect(context.Context) error { return nil }

func (f *fakeChannel) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.emits = append(f.emits, emitted{event: event, data: data})
	return nil
}

func (f *fakeChannel) On(event string, h transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = h
}

func (f *fakeChannel) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[event]
	f.mu.Unlock()
	if h == nil {
		t.Fatalf("no handler registered for %q", event)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	h(data)
}

func (f *fakeChannel) sent(event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func decodeEmit[T any](t *testing.T, e emitted) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(e.data, &v); err != nil {
		t.Fatalf("decode %s emit: %v", e.event, err)
	}
	return v
}

// stubPeer is the minimal call.PeerConnection for controller-level tests.
type stubPeer struct {
	mu     sync.Mutex
	closed int
}

func (p *stubPeer) AddStream(call.Stream) error { return nil }
func (p *stubPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"}, nil
}
func (p *stubPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "a"}, nil
}
func (p *stubPeer) SetLocalDescription(webrtc.SessionDescription) error  { return nil }
func (p *stubPeer) SetRemoteDescription(webrtc.SessionDescription) error { return nil }
func (p *stubPeer) AddICECandidate(webrtc.ICECandidateInit) error        { return nil }
func (p *stubPeer) SetAudioEnabled(bool) error                           { return nil }
func (p *stubPeer) OnICECandidate(func(webrtc.ICECandidateInit))         {}
func (p *stubPeer) OnTrack(func(*webrtc.TrackRemote))                    {}
func (p *stubPeer) OnConnectionStateChange(func(webrtc.PeerConnectionState)) {}
func (p *stubPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

type stubStream struct{}

func (stubStream) Tracks() []webrtc.TrackLocal { return nil }
func (stubStream) Close() error                { return nil }

type stubMedia struct{}

func (stubMedia) Acquire(call.Constraints) (call.Stream, error) { return stubStream{}, nil }

// waitFor polls cond until it holds or the deadline passes. Timer-driven
// behavior (the typing idle window) is asserted this way rather than with
// fixed sleeps.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestClient(t *testing.T, identity string, h Handlers) (*Client, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	c := New(Options{
		Identity:   identity,
		Channel:    ch,
		Handlers:   h,
		TypingIdle: 25 * time.Millisecond,
		NewPeer:    func() (call.PeerConnection, error) { return &stubPeer{}, nil },
		Media:      stubMedia{},
	})
	return c, ch
}
