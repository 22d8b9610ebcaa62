package audio

import (
	"fmt"
	"runtime"
)

// NewSource opens the named backend. "auto" resolves to pulse on linux and
// miniaudio elsewhere.
func NewSource(backend string) (FrameSource, error) {
	if backend == "" || backend == "auto" {
		backend = DefaultBackend()
	}

	switch backend {
	case "pulse":
		return NewPulse()
	case "malgo":
		return NewMalgo()
	case "portaudio":
		return NewPortAudio()
	}
	return nil, fmt.Errorf("audio: unknown backend %q", backend)
}

// DefaultBackend returns the backend "auto" resolves to on this platform
func DefaultBackend() string {
	if runtime.GOOS == "linux" {
		return "pulse"
	}
	return "malgo"
}
