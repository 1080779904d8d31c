package call

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/meetwire/meetwire/internal/proto"
)

// Options wires the engine to its collaborators. NewPeer and Media are
// injected so tests can substitute fakes; Send emits signal events on the
// transport channel.
type Options struct {
	Identity      string
	NewPeer       func() (PeerConnection, error)
	Media         Media
	Send          func(sig proto.SignalData) error
	OnState       func(state State)
	OnRemoteTrack func(track *webrtc.TrackRemote)
	Log           *zerolog.Logger
}

// Engine drives the offer/answer/candidate handshake for at most one
// concurrent call session, scoped to the room it was created for.
type Engine struct {
	opts Options

	mu   sync.Mutex
	sess *session
	// Inbound candidates received before a remote description is set. Held
	// at engine level so candidates arriving ahead of the offer (callee
	// side) survive session creation. Cleared on teardown.
	pending []webrtc.ICECandidateInit
	gen     uint64
	// starting claims the session slot for a caller dial while Media.Acquire
	// is suspended outside the lock; superseded tells that dial it lost the
	// slot to an inbound offer in the meantime.
	starting   bool
	superseded bool
}

type session struct {
	room      string
	role      Role
	state     State
	pc        PeerConnection
	stream    Stream
	remoteSet bool
	muted     bool
	gen       uint64
}

// NewEngine builds an idle engine.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// State reports the current session state; idle with no session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return StateIdle
	}
	return e.sess.state
}

// Role reports the current session role; RoleNone with no session.
func (e *Engine) Role() Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return RoleNone
	}
	return e.sess.role
}

// Start initiates a call as caller: acquires local media (audio always,
// video per call type), creates the peer connection, applies a local offer
// and emits it. Outbound ICE candidates are sent as discovered, never
// buffered; only inbound candidates wait for a remote description.
func (e *Engine) Start(room string, video bool) error {
	if room == "" {
		return ErrNoRoom
	}

	e.mu.Lock()
	if e.sess != nil || e.starting {
		e.mu.Unlock()
		return ErrCallActive
	}
	e.starting = true
	e.mu.Unlock()

	stream, err := e.opts.Media.Acquire(Constraints{Audio: true, Video: video})
	if err != nil {
		e.mu.Lock()
		e.starting = false
		e.superseded = false
		e.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMediaDenied, err)
	}

	s, err := e.newSession(room, RoleCaller, stream)
	if err != nil {
		_ = stream.Close()
		return err
	}

	offer, err := s.pc.CreateOffer()
	if err != nil {
		e.teardown(s)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		e.teardown(s)
		return fmt.Errorf("set local description: %w", err)
	}

	e.notifyState(StateNegotiating)
	if err := e.sendDescription(room, proto.SignalOffer, offer); err != nil {
		e.teardown(s)
		return err
	}
	return nil
}

// HandleSignal dispatches one inbound signal payload. Signals whose room
// does not match activeRoom are ignored without touching any state.
// Malformed or late payloads are dropped with ErrMalformedSignal; nothing
// here is fatal to the session.
func (e *Engine) HandleSignal(activeRoom string, sig proto.SignalData) error {
	if sig.Room == "" || sig.Room != activeRoom {
		e.log().Debug().Str("room", sig.Room).Str("type", sig.Type).Msg("signal for inactive room dropped")
		return nil
	}

	switch sig.Type {
	case proto.SignalOffer:
		return e.handleOffer(sig)
	case proto.SignalAnswer:
		return e.handleAnswer(sig)
	case proto.SignalCandidate:
		return e.handleCandidate(sig)
	default:
		e.log().Warn().Str("type", sig.Type).Msg("unknown signal type dropped")
		return fmt.Errorf("%w: type %q", ErrMalformedSignal, sig.Type)
	}
}

func (e *Engine) handleOffer(sig proto.SignalData) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sig.SDP, &desc); err != nil {
		return fmt.Errorf("%w: offer sdp: %v", ErrMalformedSignal, err)
	}

	e.mu.Lock()
	existing := e.sess
	dialing := e.starting
	if existing == nil && dialing && e.polite(sig.Room) {
		// A local dial is suspended in media acquisition. The polite peer
		// yields the slot now, under the same lock the dial will claim it
		// with, so the outcome does not depend on who resumes first.
		e.superseded = true
	}
	e.mu.Unlock()

	if existing != nil {
		// Glare: both sides sent an offer. The lexicographically smaller
		// identity is polite and rolls back to take the callee role; the
		// other side ignores the incoming offer and waits for an answer.
		if existing.role == RoleCaller && existing.state == StateNegotiating && e.polite(sig.Room) {
			e.log().Info().Str("room", sig.Room).Msg("offer glare, rolling back as polite peer")
			e.closeSession(false)
		} else {
			e.log().Warn().Str("room", sig.Room).Str("state", string(existing.state)).Msg("unexpected offer dropped")
			return fmt.Errorf("%w: offer while %s", ErrMalformedSignal, existing.state)
		}
	} else if dialing {
		if !e.polite(sig.Room) {
			e.log().Warn().Str("room", sig.Room).Msg("offer during local dial dropped")
			return fmt.Errorf("%w: offer while dialing", ErrMalformedSignal)
		}
		e.log().Info().Str("room", sig.Room).Msg("offer glare during dial, yielding local dial")
	}

	// The offer's media sections decide what the callee captures; answering
	// an audio-only call must not touch the camera.
	video := strings.Contains(desc.SDP, "m=video")
	stream, err := e.opts.Media.Acquire(Constraints{Audio: true, Video: video})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaDenied, err)
	}

	s, err := e.newSession(sig.Room, RoleCallee, stream)
	if err != nil {
		_ = stream.Close()
		return err
	}
	e.notifyState(StateNegotiating)

	if err := e.applyRemote(s, desc); err != nil {
		e.teardown(s)
		return fmt.Errorf("set remote offer: %w", err)
	}

	answer, err := s.pc.CreateAnswer()
	if err != nil {
		e.teardown(s)
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		e.teardown(s)
		return fmt.Errorf("set local description: %w", err)
	}
	if err := e.sendDescription(sig.Room, proto.SignalAnswer, answer); err != nil {
		e.teardown(s)
		return err
	}
	return nil
}

func (e *Engine) handleAnswer(sig proto.SignalData) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sig.SDP, &desc); err != nil {
		return fmt.Errorf("%w: answer sdp: %v", ErrMalformedSignal, err)
	}

	e.mu.Lock()
	s := e.sess
	e.mu.Unlock()
	if s == nil || s.role != RoleCaller || s.state != StateNegotiating {
		e.log().Warn().Str("room", sig.Room).Msg("answer without pending offer dropped")
		return fmt.Errorf("%w: answer without pending offer", ErrMalformedSignal)
	}

	if err := e.applyRemote(s, desc); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	// The connected transition is driven by the peer connection's own
	// track/state observables, not here.
	return nil
}

func (e *Engine) handleCandidate(sig proto.SignalData) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(sig.Candidate, &cand); err != nil {
		return fmt.Errorf("%w: candidate: %v", ErrMalformedSignal, err)
	}

	e.mu.Lock()
	s := e.sess
	if s == nil || !s.remoteSet {
		e.pending = append(e.pending, cand)
		e.mu.Unlock()
		return nil
	}
	pc := s.pc
	e.mu.Unlock()

	if err := pc.AddICECandidate(cand); err != nil {
		// Original behavior tolerates bad candidates.
		e.log().Warn().Err(err).Msg("add ice candidate failed")
	}
	return nil
}

// applyRemote sets the remote description and flushes buffered inbound
// candidates in arrival order, exactly once.
func (e *Engine) applyRemote(s *session, desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	e.mu.Lock()
	s.remoteSet = true
	buffered := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, cand := range buffered {
		if err := s.pc.AddICECandidate(cand); err != nil {
			e.log().Warn().Err(err).Msg("apply buffered candidate failed")
		}
	}
	return nil
}

// Close tears the session down: stops local tracks, discards the peer
// connection, clears the candidate buffer and returns to idle. Idempotent.
func (e *Engine) Close() {
	e.closeSession(true)
}

// ToggleMute flips the local audio enablement and reports the new muted
// state. No-op (false) when no session holds an audio track. Negotiation
// state is untouched.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	s := e.sess
	if s == nil || s.pc == nil {
		e.mu.Unlock()
		return false
	}
	s.muted = !s.muted
	muted := s.muted
	pc := s.pc
	e.mu.Unlock()

	if err := pc.SetAudioEnabled(!muted); err != nil {
		e.log().Warn().Err(err).Msg("toggle mute failed")
	}
	return muted
}

func (e *Engine) newSession(room string, role Role, stream Stream) (*session, error) {
	pc, err := e.opts.NewPeer()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	if err := pc.AddStream(stream); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add local tracks: %w", err)
	}

	e.mu.Lock()
	lost := e.sess != nil
	if role == RoleCaller {
		lost = lost || e.superseded
		e.starting = false
		e.superseded = false
	}
	if lost {
		// The slot was taken while media acquisition was suspended. The
		// caller of newSession closes the stream; the fresh pc dies here.
		e.mu.Unlock()
		_ = pc.Close()
		return nil, ErrCallActive
	}
	e.gen++
	s := &session{
		room:   room,
		role:   role,
		state:  StateNegotiating,
		pc:     pc,
		stream: stream,
		gen:    e.gen,
	}
	e.sess = s
	e.mu.Unlock()

	gen := s.gen
	pc.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		if !e.current(gen) {
			return
		}
		data, err := json.Marshal(cand)
		if err != nil {
			return
		}
		if err := e.opts.Send(proto.SignalData{Room: room, Type: proto.SignalCandidate, Candidate: data}); err != nil {
			e.log().Warn().Err(err).Msg("send candidate failed")
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote) {
		if !e.current(gen) {
			return
		}
		e.markConnected(gen)
		if e.opts.OnRemoteTrack != nil {
			e.opts.OnRemoteTrack(track)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if !e.current(gen) {
			return
		}
		switch state {
		case webrtc.PeerConnectionStateConnected:
			e.markConnected(gen)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			e.log().Info().Str("state", state.String()).Msg("peer connection lost")
			e.closeSession(true)
		}
	})

	return s, nil
}

// current reports whether gen identifies the live session. Late callbacks
// from a torn-down connection fail this check and are discarded.
func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess != nil && e.sess.gen == gen
}

func (e *Engine) markConnected(gen uint64) {
	e.mu.Lock()
	if e.sess == nil || e.sess.gen != gen || e.sess.state == StateConnected {
		e.mu.Unlock()
		return
	}
	e.sess.state = StateConnected
	e.mu.Unlock()
	e.notifyState(StateConnected)
}

func (e *Engine) closeSession(toIdle bool) {
	e.mu.Lock()
	e.pending = nil
	s := e.sess
	e.sess = nil
	if s != nil {
		e.gen++
	}
	e.mu.Unlock()
	if s == nil {
		return
	}

	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			e.log().Warn().Err(err).Msg("stop local tracks failed")
		}
	}
	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			e.log().Warn().Err(err).Msg("close peer connection failed")
		}
	}

	e.notifyState(StateClosed)
	if toIdle {
		e.notifyState(StateIdle)
	}
}

// teardown discards a session that failed mid-setup without emitting the
// closed/idle transitions twice.
func (e *Engine) teardown(s *session) {
	e.mu.Lock()
	if e.sess == s {
		e.sess = nil
		e.gen++
	}
	e.pending = nil
	e.mu.Unlock()

	if s.stream != nil {
		_ = s.stream.Close()
	}
	if s.pc != nil {
		_ = s.pc.Close()
	}
	e.notifyState(StateIdle)
}

func (e *Engine) sendDescription(room, sigType string, desc webrtc.SessionDescription) error {
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", sigType, err)
	}
	if err := e.opts.Send(proto.SignalData{Room: room, Type: sigType, SDP: data}); err != nil {
		return fmt.Errorf("send %s: %w", sigType, err)
	}
	return nil
}

// polite reports whether the local peer yields on glare: the
// lexicographically smaller identity of the room pair rolls back.
func (e *Engine) polite(room string) bool {
	parts := strings.SplitN(room, "_", 2)
	if len(parts) != 2 {
		return true
	}
	return e.opts.Identity == parts[0]
}

func (e *Engine) notifyState(state State) {
	if e.opts.OnState != nil {
		e.opts.OnState(state)
	}
}

func (e *Engine) log() *zerolog.Logger {
	if e.opts.Log != nil {
		return e.opts.Log
	}
	nop := zerolog.Nop()
	return &nop
}
