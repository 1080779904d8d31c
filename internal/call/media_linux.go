//go:build linux && cgo

package call

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// deviceMedia captures local camera/mic via pion/mediadevices (V4L2 + malgo).
type deviceMedia struct{}

// NewDeviceMedia returns the hardware-backed Media implementation.
func NewDeviceMedia() Media {
	return deviceMedia{}
}

type deviceStream struct {
	stream mediadevices.MediaStream
}

func (s *deviceStream) Tracks() []webrtc.TrackLocal {
	tracks := s.stream.GetTracks()
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t)
	}
	return out
}

func (s *deviceStream) Close() error {
	var firstErr error
	for _, t := range s.stream.GetTracks() {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (deviceMedia) Acquire(c Constraints) (Stream, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	constraints := mediadevices.MediaStreamConstraints{Codec: selector}
	if c.Video {
		constraints.Video = func(mt *mediadevices.MediaTrackConstraints) {
			// Raw formats only: some cameras expose an MJPEG node producing
			// malformed frames. Cap resolution to keep encoding latency low.
			mt.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			mt.Width = prop.IntRanged{Max: 640}
			mt.Height = prop.IntRanged{Max: 480}
		}
	}
	if c.Audio {
		constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}
	return &deviceStream{stream: stream}, nil
}
