package audio

import (
	"context"
	"errors"
)

var (
	ErrDeviceUnavailable = errors.New("audio: device unavailable")
	ErrStreamStartFailed = errors.New("audio: stream start failed")
	ErrInvalidFrame      = errors.New("audio: invalid frame")
	ErrInvalidRate       = errors.New("audio: invalid sample rate")
)

// Frame is one backend delivery of interleaved samples normalised to
// float32 in [-1, 1]. It is only valid for the duration of the callback
// unless copied.
type Frame struct {
	Samples  []float32
	Channels int
}

// FrameCount returns the number of sample positions (samples per channel)
func (f Frame) FrameCount() int {
	if f.Channels < 1 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Clone returns a frame backed by its own storage
func (f Frame) Clone() Frame {
	samples := make([]float32, len(f.Samples))
	copy(samples, f.Samples)
	return Frame{Samples: samples, Channels: f.Channels}
}

// StreamFormat is the native format negotiated with the device
type StreamFormat struct {
	SampleRate int
	Channels   int
}

// FrameCallback receives frames on the backend's own thread. It must not
// block.
type FrameCallback func(Frame)

// DeviceSelector picks the device a stream is opened on. An empty ID with
// Loopback set means the monitor of the default output device.
type DeviceSelector struct {
	ID       string
	Loopback bool
}

// DeviceInfo represents a capturable device
type DeviceInfo struct {
	ID       string
	Name     string
	Default  bool
	Loopback bool
}

// FrameSource abstracts an OS audio backend
type FrameSource interface {
	Open(ctx context.Context, sel DeviceSelector) (Stream, error)
	Devices() ([]DeviceInfo, error)
	Close() error
}

// Stream is an opened device. Start may be called once; Stop guarantees no
// further callbacks once it returns.
type Stream interface {
	Format() StreamFormat
	Start(cb FrameCallback) error
	Stop() error
	// Err delivers asynchronous stream failures. Finite sources deliver
	// io.EOF once all audio was handed to the callback.
	Err() <-chan error
}
