//go:build linux

package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

const pulseLatency = 0.05 // seconds

type pulseSource struct {
	client *pulse.Client
}

// NewPulse creates a PulseAudio (or PipeWire-pulse) frame source
func NewPulse() (FrameSource, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("transvox"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseSource{client: c}, nil
}

func (p *pulseSource) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	def, _ := p.client.DefaultSource()

	var devices []DeviceInfo
	for _, s := range sources {
		devices = append(devices, DeviceInfo{
			ID:       s.ID(),
			Name:     s.Name(),
			Default:  def != nil && def.ID() == s.ID(),
			Loopback: isLoopbackName(s.ID()),
		})
	}
	return devices, nil
}

func (p *pulseSource) Open(ctx context.Context, sel DeviceSelector) (Stream, error) {
	s := &pulseStream{
		errs: make(chan error, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	opts := []pulse.RecordOption{pulse.RecordLatency(pulseLatency)}
	switch {
	case sel.ID != "":
		source, err := p.client.SourceByID(sel.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, sel.ID, err)
		}
		s.format = StreamFormat{SampleRate: source.SampleRate(), Channels: pulseChannels(len(source.Channels()))}
		opts = append(opts, pulse.RecordSource(source))
	case sel.Loopback:
		sink, err := p.client.DefaultSink()
		if err != nil {
			return nil, fmt.Errorf("%w: default sink: %v", ErrDeviceUnavailable, err)
		}
		s.format = StreamFormat{SampleRate: sink.SampleRate(), Channels: pulseChannels(len(sink.Channels()))}
		opts = append(opts, pulse.RecordMonitor(sink))
	default:
		source, err := p.client.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("%w: default source: %v", ErrDeviceUnavailable, err)
		}
		s.format = StreamFormat{SampleRate: source.SampleRate(), Channels: pulseChannels(len(source.Channels()))}
		opts = append(opts, pulse.RecordSource(source))
	}

	if s.format.Channels == 1 {
		opts = append(opts, pulse.RecordMono)
	} else {
		opts = append(opts, pulse.RecordStereo)
	}
	opts = append(opts, pulse.RecordSampleRate(s.format.SampleRate))

	writer := pulse.Float32Writer(func(buf []float32) (int, error) {
		s.mu.Lock()
		cb := s.cb
		s.mu.Unlock()
		if cb != nil && len(buf) > 0 {
			cb(Frame{Samples: buf, Channels: s.format.Channels})
		}
		return len(buf), nil
	})

	stream, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: pulse record: %v", ErrDeviceUnavailable, err)
	}
	s.stream = stream
	return s, nil
}

func (p *pulseSource) Close() error {
	p.client.Close()
	return nil
}

// pulse remixes to the requested map, so anything above stereo is folded
// to two channels server-side
func pulseChannels(n int) int {
	if n <= 1 {
		return 1
	}
	return 2
}

type pulseStream struct {
	stream *pulse.RecordStream
	format StreamFormat
	errs   chan error

	mu      sync.Mutex
	cb      FrameCallback
	started bool
	once    sync.Once
	stop    chan struct{}
	done    chan struct{}
}

func (s *pulseStream) Format() StreamFormat { return s.format }

func (s *pulseStream) Err() <-chan error { return s.errs }

func (s *pulseStream) Start(cb FrameCallback) error {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()

	s.stream.Start()
	if err := s.stream.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamStartFailed, err)
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	// pulse has no stream-died callback; poll the stream state instead
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if !s.stream.Running() {
					err := s.stream.Error()
					if err == nil {
						err = fmt.Errorf("pulse: record stream stopped")
					}
					select {
					case s.errs <- err:
					default:
					}
					return
				}
			}
		}
	}()
	return nil
}

func (s *pulseStream) Stop() error {
	s.once.Do(func() {
		close(s.stop)
		s.stream.Stop()
		s.stream.Close()

		s.mu.Lock()
		s.cb = nil
		started := s.started
		s.mu.Unlock()

		if started {
			<-s.done
		}
	})
	return nil
}
