package call

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// pionPeer adapts a pion PeerConnection to the engine's interface.
type pionPeer struct {
	pc *webrtc.PeerConnection

	mu           sync.Mutex
	audioTracks  []webrtc.TrackLocal
	audioSenders []*webrtc.RTPSender
}

// NewPeerFactory returns a constructor for pion-backed peer connections
// using the given STUN/TURN URLs.
func NewPeerFactory(iceServers []string) func() (PeerConnection, error) {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return func() (PeerConnection, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		return &pionPeer{pc: pc}, nil
	}
}

func (p *pionPeer) AddStream(s Stream) error {
	for _, track := range s.Tracks() {
		sender, err := p.pc.AddTrack(track)
		if err != nil {
			return err
		}
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			p.mu.Lock()
			p.audioTracks = append(p.audioTracks, track)
			p.audioSenders = append(p.audioSenders, sender)
			p.mu.Unlock()
		}
	}
	return nil
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(cand)
}

// SetAudioEnabled mutes by detaching the audio track from its sender and
// unmutes by reattaching it.
func (p *pionPeer) SetAudioEnabled(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, sender := range p.audioSenders {
		var track webrtc.TrackLocal
		if enabled {
			track = p.audioTracks[i]
		}
		if err := sender.ReplaceTrack(track); err != nil {
			return err
		}
	}
	return nil
}

func (p *pionPeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil {
			fn(cand.ToJSON())
		}
	})
}

func (p *pionPeer) OnTrack(fn func(track *webrtc.TrackRemote)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

func (p *pionPeer) OnConnectionStateChange(fn func(state webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
