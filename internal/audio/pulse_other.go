//go:build !linux

package audio

import "errors"

// NewPulse is only available on linux
func NewPulse() (FrameSource, error) {
	return nil, errors.New("pulse: not supported on this platform")
}
