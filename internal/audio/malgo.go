package audio

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoSource struct {
	ctx *malgo.AllocatedContext
}

// nativeLoopback reports whether miniaudio can open playback devices for
// capture. Only its WASAPI backend, the Windows default, supports this.
var nativeLoopback = runtime.GOOS == "windows"

// NewMalgo creates a miniaudio-backed frame source
func NewMalgo() (FrameSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: %w", err)
	}
	return &malgoSource{ctx: ctx}, nil
}

func (m *malgoSource) Devices() ([]DeviceInfo, error) {
	kinds := []malgo.DeviceType{malgo.Capture}
	if nativeLoopback {
		kinds = append(kinds, malgo.Playback)
	}

	var result []DeviceInfo
	for _, kind := range kinds {
		devices, err := m.list(kind)
		if err != nil {
			return nil, err
		}
		result = append(result, devices...)
	}
	return result, nil
}

func (m *malgoSource) list(kind malgo.DeviceType) ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:       hex.EncodeToString(d.ID[:]),
			Name:     d.Name(),
			Default:  d.IsDefault != 0,
			Loopback: kind == malgo.Playback || (!nativeLoopback && isLoopbackName(d.Name())),
		})
	}
	return result, nil
}

// resolveMalgoDevice picks the miniaudio device type and ID for sel. Only
// WASAPI can capture a playback device; elsewhere loopback means a virtual
// input such as BlackHole or a PulseAudio monitor, found by name among
// inputs() unless sel.ID names one.
func resolveMalgoDevice(sel DeviceSelector, native bool, inputs func() ([]DeviceInfo, error)) (malgo.DeviceType, string, error) {
	switch {
	case !sel.Loopback:
		return malgo.Capture, sel.ID, nil
	case native:
		return malgo.Loopback, sel.ID, nil
	case sel.ID != "":
		return malgo.Capture, sel.ID, nil
	}

	devices, err := inputs()
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	for _, d := range devices {
		if isLoopbackName(d.Name) {
			return malgo.Capture, d.ID, nil
		}
	}
	return 0, "", fmt.Errorf("%w: miniaudio only captures playback on WASAPI; install a loopback input such as BlackHole or pass --device", ErrDeviceUnavailable)
}

func (m *malgoSource) Open(ctx context.Context, sel DeviceSelector) (Stream, error) {
	kind, id, err := resolveMalgoDevice(sel, nativeLoopback, func() ([]DeviceInfo, error) {
		return m.list(malgo.Capture)
	})
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(kind)
	deviceConfig.Capture.Format = malgo.FormatF32
	// zero channels and rate select the device's native format
	deviceConfig.Capture.Channels = 0
	deviceConfig.SampleRate = 0

	if id != "" {
		idBytes, err := hex.DecodeString(id)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid device ID: %v", ErrDeviceUnavailable, err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	s := &malgoStream{errs: make(chan error, 1)}
	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.device = dev
	s.format = StreamFormat{
		SampleRate: int(dev.SampleRate()),
		Channels:   int(dev.CaptureChannels()),
	}
	s.sampleFormat = malgoFormat(dev.CaptureFormat())
	return s, nil
}

func (m *malgoSource) Close() error {
	if err := m.ctx.Uninit(); err != nil {
		return err
	}
	m.ctx.Free()
	return nil
}

type malgoStream struct {
	device       *malgo.Device
	format       StreamFormat
	sampleFormat SampleFormat
	errs         chan error

	mu       sync.Mutex
	cb       FrameCallback
	stopping bool
	once     sync.Once
}

func (s *malgoStream) Format() StreamFormat { return s.format }

func (s *malgoStream) Err() <-chan error { return s.errs }

func (s *malgoStream) Start(cb FrameCallback) error {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()

	if err := s.device.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamStartFailed, err)
	}
	return nil
}

func (s *malgoStream) onData(_, input []byte, _ uint32) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb == nil {
		return
	}

	samples, err := DecodeInterleaved(input, s.sampleFormat)
	if err != nil {
		s.report(err)
		return
	}
	cb(Frame{Samples: samples, Channels: s.format.Channels})
}

// onStop fires when miniaudio stops the device, including when the device
// disappears underneath us
func (s *malgoStream) onStop() {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if !stopping {
		s.report(fmt.Errorf("malgo: device stopped unexpectedly"))
	}
}

func (s *malgoStream) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *malgoStream) Stop() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		err = s.device.Stop()
		s.device.Uninit()

		s.mu.Lock()
		s.cb = nil
		s.mu.Unlock()
	})
	return err
}

func malgoFormat(f malgo.FormatType) SampleFormat {
	switch f {
	case malgo.FormatU8:
		return FormatU8
	case malgo.FormatS16:
		return FormatS16
	case malgo.FormatS24:
		return FormatS24
	case malgo.FormatS32:
		return FormatS32
	default:
		return FormatF32
	}
}
