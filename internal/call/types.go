package call

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// State is the lifecycle state of a call session. Keep values stable: they
// are surfaced to UI collaborators.
type State string

const (
	StateIdle        State = "idle"
	StateNegotiating State = "negotiating"
	StateConnected   State = "connected"
	StateClosed      State = "closed"
)

// Role distinguishes which side of the handshake this peer took.
type Role string

const (
	RoleNone   Role = ""
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

var (
	// ErrNoRoom is returned when a call is initiated without an active room.
	ErrNoRoom = errors.New("no active room for call")
	// ErrCallActive is returned when a call session already exists.
	ErrCallActive = errors.New("call already active")
	// ErrMediaDenied wraps local capture failures. Recoverable: the engine
	// stays idle and the caller is notified.
	ErrMediaDenied = errors.New("media access denied")
	// ErrMalformedSignal wraps unexpected or undecodable signaling payloads.
	// Never fatal to the session.
	ErrMalformedSignal = errors.New("malformed signal")
)

// Constraints selects which local tracks to capture.
type Constraints struct {
	Audio bool
	Video bool
}

// Stream is a set of locally captured tracks. Owned exclusively by the call
// session; Close stops every track.
type Stream interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// Media acquires local capture devices.
type Media interface {
	Acquire(c Constraints) (Stream, error)
}

// PeerConnection abstracts the underlying peer connection so the negotiation
// logic can be exercised against a fake.
type PeerConnection interface {
	AddStream(s Stream) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(cand webrtc.ICECandidateInit) error
	// SetAudioEnabled toggles whether locally captured audio reaches the
	// remote peer. Implemented with RTPSender.ReplaceTrack.
	SetAudioEnabled(enabled bool) error
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnTrack(fn func(track *webrtc.TrackRemote))
	OnConnectionStateChange(fn func(state webrtc.PeerConnectionState))
	Close() error
}
