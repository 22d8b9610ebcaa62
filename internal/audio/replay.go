package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

const replayFramesPerChunk = 1024

// ReplaySource plays a decoded audio file back as if it were a device. It
// serves development runs (capture --replay) and tests.
type ReplaySource struct {
	path     string
	realtime bool
}

// NewReplay returns a source that replays path. With realtime set, chunks
// are paced at the file's sample rate.
func NewReplay(path string, realtime bool) *ReplaySource {
	return &ReplaySource{path: path, realtime: realtime}
}

func (r *ReplaySource) Open(ctx context.Context, _ DeviceSelector) (Stream, error) {
	clip, err := ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &replayStream{
		ctx:      ctx,
		clip:     clip,
		realtime: r.realtime,
		errs:     make(chan error, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (r *ReplaySource) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: r.path, Name: "replay: " + r.path, Default: true}}, nil
}

func (r *ReplaySource) Close() error { return nil }

type replayStream struct {
	ctx      context.Context
	clip     Clip
	realtime bool
	errs     chan error

	once    sync.Once
	started bool
	stop    chan struct{}
	done    chan struct{}
}

func (s *replayStream) Format() StreamFormat { return s.clip.Format }

func (s *replayStream) Err() <-chan error { return s.errs }

func (s *replayStream) Start(cb FrameCallback) error {
	if s.clip.Format.Channels < 1 {
		return fmt.Errorf("%w: clip has no channels", ErrStreamStartFailed)
	}
	s.started = true

	chunk := replayFramesPerChunk * s.clip.Format.Channels
	interval := time.Duration(replayFramesPerChunk) * time.Second / time.Duration(s.clip.Format.SampleRate)
	buf := make([]float32, chunk)

	go func() {
		defer close(s.done)
		for pos := 0; pos < len(s.clip.Samples); pos += chunk {
			select {
			case <-s.stop:
				return
			case <-s.ctx.Done():
				return
			default:
			}

			// hand out a reused buffer like a real backend would
			n := copy(buf, s.clip.Samples[pos:min(pos+chunk, len(s.clip.Samples))])
			cb(Frame{Samples: buf[:n], Channels: s.clip.Format.Channels})

			if s.realtime {
				select {
				case <-s.stop:
					return
				case <-time.After(interval):
				}
			}
		}
		s.errs <- io.EOF
	}()
	return nil
}

func (s *replayStream) Stop() error {
	s.once.Do(func() {
		close(s.stop)
		if s.started {
			<-s.done
		}
	})
	return nil
}
