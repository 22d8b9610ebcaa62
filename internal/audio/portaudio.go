package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const portAudioFramesPerBuffer = 512

// Name fragments of host-exposed devices that carry the output mix
var loopbackNames = []string{"monitor", "stereo mix", "loopback", "what u hear", "blackhole"}

type portAudioSource struct{}

// NewPortAudio creates a PortAudio-based frame source
func NewPortAudio() (FrameSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioSource{}, nil
}

func (p *portAudioSource) Open(ctx context.Context, sel DeviceSelector) (Stream, error) {
	device, err := p.findDevice(sel)
	if err != nil {
		return nil, err
	}

	channels := min(device.MaxInputChannels, 2)
	buffer := make([]float32, portAudioFramesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: portAudioFramesPerBuffer,
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, device.Name, err)
	}

	return &portAudioStream{
		ctx:    ctx,
		stream: stream,
		buffer: buffer,
		format: StreamFormat{SampleRate: int(device.DefaultSampleRate), Channels: channels},
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}, nil
}

func (p *portAudioSource) findDevice(sel DeviceSelector) (*portaudio.DeviceInfo, error) {
	if sel.ID == "" && !sel.Loopback {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: default input: %v", ErrDeviceUnavailable, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enumerate devices: %v", ErrDeviceUnavailable, err)
	}
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		if sel.ID != "" && d.Name == sel.ID {
			return d, nil
		}
		if sel.ID == "" && isLoopbackName(d.Name) {
			return d, nil
		}
	}

	if sel.ID == "" {
		return nil, fmt.Errorf("%w: no loopback input exposed by the host", ErrDeviceUnavailable)
	}
	return nil, fmt.Errorf("%w: device not found: %s", ErrDeviceUnavailable, sel.ID)
}

func (p *portAudioSource) Devices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]DeviceInfo, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, DeviceInfo{
				ID:       d.Name,
				Name:     d.Name,
				Default:  d == defaultDevice,
				Loopback: isLoopbackName(d.Name),
			})
		}
	}

	return result, nil
}

func (p *portAudioSource) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	ctx    context.Context
	stream *portaudio.Stream
	buffer []float32
	format StreamFormat
	errs   chan error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (s *portAudioStream) Format() StreamFormat { return s.format }

func (s *portAudioStream) Err() <-chan error { return s.errs }

func (s *portAudioStream) Start(cb FrameCallback) error {
	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		return fmt.Errorf("%w: %v", ErrStreamStartFailed, err)
	}
	s.stop = make(chan struct{})

	// Read loop: Read blocks until a buffer is ready, so it runs on its own
	// goroutine and plays the role of the backend callback thread
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-s.stop:
				return
			default:
			}
			if err := s.stream.Read(); err != nil {
				select {
				case <-s.stop:
				default:
					s.errs <- fmt.Errorf("portaudio read: %w", err)
				}
				return
			}
			cb(Frame{Samples: s.buffer, Channels: s.format.Channels})
		}
	}()

	return nil
}

func (s *portAudioStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if s.stop == nil {
			err = s.stream.Close()
			return
		}
		close(s.stop)
		err = s.stream.Stop()
		<-s.done
		if cerr := s.stream.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func isLoopbackName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackNames {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
