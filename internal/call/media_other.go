//go:build !linux || !cgo

package call

import "errors"

// Camera/mic capture via pion/mediadevices needs platform drivers (V4L2 and
// malgo on Linux); other platforms get a stub that fails acquisition, which
// the engine surfaces as a recoverable media error.
type deviceMedia struct{}

// NewDeviceMedia returns the platform Media implementation.
func NewDeviceMedia() Media {
	return deviceMedia{}
}

func (deviceMedia) Acquire(Constraints) (Stream, error) {
	return nil, errors.New("media capture not supported on this platform")
}
