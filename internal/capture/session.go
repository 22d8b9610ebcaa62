// Package capture runs a live recording: frames from an audio backend are
// queued off the callback thread, downmixed, resampled and streamed into a
// WAV file that is finalized exactly once however the recording ends.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/petems/transvox/internal/audio"
	"github.com/petems/transvox/internal/wav"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSampleRate = 16000
	DefaultQueueSize  = 64
)

type Config struct {
	OutputPath string
	SampleRate int
	QueueSize  int
	Device     audio.DeviceSelector
}

// Stats is a snapshot of a session's counters
type Stats struct {
	ID             string
	Path           string
	SourceFormat   audio.StreamFormat
	FramesReceived uint64
	FramesDropped  uint64
	SamplesWritten int64
	Duration       time.Duration
}

type Session struct {
	cfg Config
	src audio.FrameSource
	log zerolog.Logger
	id  string

	mu     sync.Mutex // serializes Start and the stop path
	state  atomic.Int32
	stream audio.Stream
	format audio.StreamFormat
	rs     *audio.Resampler
	writer *wav.Writer

	queueMu   sync.RWMutex
	accepting bool
	queue     chan audio.Frame

	received atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Bool
	started  atomic.Bool

	group    errgroup.Group
	stopping chan struct{}
	halted   chan struct{}
	haltOnce sync.Once

	stopOnce sync.Once
	stopErr  error
}

// New prepares a session. Nothing is opened until Start.
func New(cfg Config, src audio.FrameSource, log zerolog.Logger) *Session {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	id := uuid.NewString()
	return &Session{
		cfg:      cfg,
		src:      src,
		log:      log.With().Str("session", id).Logger(),
		id:       id,
		stopping: make(chan struct{}),
		halted:   make(chan struct{}),
	}
}

// OutputName returns the default recording path for a capture started at t
func OutputName(dir string, t time.Time) string {
	return filepath.Join(dir, "audio_"+t.Format("20060102150405")+".wav")
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session can no longer make progress on its own:
// a fatal pipeline error, a failed device, or a finite source running dry
func (s *Session) Done() <-chan struct{} { return s.halted }

// Start opens the device and the output file and begins recording. Any
// failure releases what was opened and leaves the session Closed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != Idle {
		return ErrAlreadyStarted
	}

	stream, err := s.src.Open(ctx, s.cfg.Device)
	if err != nil {
		s.state.Store(int32(Closed))
		return stageErr(StageDevice, err)
	}
	s.format = stream.Format()

	rs, err := audio.NewResampler(s.format.SampleRate, s.cfg.SampleRate)
	if err != nil {
		stream.Stop()
		s.state.Store(int32(Closed))
		return stageErr(StageResample, err)
	}

	writer, err := wav.Create(s.cfg.OutputPath, s.cfg.SampleRate)
	if err != nil {
		stream.Stop()
		s.state.Store(int32(Closed))
		return stageErr(StageWrite, err)
	}

	s.stream = stream
	s.rs = rs
	s.writer = writer
	s.queue = make(chan audio.Frame, s.cfg.QueueSize)
	s.accepting = true

	s.group.Go(s.consume)

	if err := stream.Start(s.onFrame); err != nil {
		s.abortStart()
		if !errors.Is(err, audio.ErrStreamStartFailed) {
			err = fmt.Errorf("%w: %v", audio.ErrStreamStartFailed, err)
		}
		return stageErr(StageDevice, err)
	}
	s.group.Go(s.watch)

	s.started.Store(true)
	s.state.Store(int32(Recording))
	s.log.Info().
		Str("path", s.cfg.OutputPath).
		Int("source_rate", s.format.SampleRate).
		Int("source_channels", s.format.Channels).
		Int("rate", s.cfg.SampleRate).
		Msg("Recording started")
	return nil
}

// abortStart unwinds a Start whose stream refused to run. The empty output
// file is removed since nothing was ever recorded into it.
func (s *Session) abortStart() {
	s.stream.Stop()
	s.closeQueue()
	_ = s.group.Wait()
	if err := s.writer.Finalize(); err == nil {
		_ = os.Remove(s.writer.Path())
	}
	s.state.Store(int32(Closed))
}

// Run records until ctx is cancelled or the session halts, then stops. The
// result joins the first fatal error with any finalize failure.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		s.log.Info().Msg("Interrupted")
	case <-s.halted:
	}
	return s.Stop()
}

// Stop ends the recording: no further callbacks are accepted, every queued
// frame is written, the resampler tail is flushed and the file finalized.
// Safe to call more than once and from several goroutines; all callers get
// the same result.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
	})
	return s.stopErr
}

func (s *Session) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != Recording {
		s.state.Store(int32(Closed))
		return nil
	}
	s.state.Store(int32(Stopping))
	s.log.Debug().Msg("Stopping")

	var errs []error
	if err := s.stream.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to stop stream")
	}
	s.closeQueue()
	close(s.stopping)

	if err := s.group.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := s.writer.Finalize(); err != nil {
		errs = append(errs, stageErr(StageFinalize, err))
	}
	s.state.Store(int32(Closed))

	st := s.Stats()
	ev := s.log.Info()
	if st.FramesDropped > 0 {
		ev = s.log.Warn()
	}
	ev.Str("path", st.Path).
		Uint64("frames", st.FramesReceived).
		Uint64("dropped", st.FramesDropped).
		Int64("samples", st.SamplesWritten).
		Dur("duration", st.Duration).
		Msg("Recording finalized")

	return errors.Join(errs...)
}

func (s *Session) Stats() Stats {
	st := Stats{
		ID:             s.id,
		Path:           s.cfg.OutputPath,
		FramesReceived: s.received.Load(),
		FramesDropped:  s.dropped.Load(),
	}
	if s.started.Load() {
		st.SourceFormat = s.format
		st.SamplesWritten = s.writer.Samples()
		st.Duration = s.writer.Duration()
	}
	return st
}

// onFrame runs on the backend thread and must never block
func (s *Session) onFrame(f audio.Frame) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if !s.accepting {
		return
	}
	s.received.Add(1)

	select {
	case s.queue <- f.Clone():
	default:
		s.dropped.Add(1)
	}
}

func (s *Session) closeQueue() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if s.accepting {
		s.accepting = false
		close(s.queue)
	}
}

func (s *Session) consume() error {
	for f := range s.queue {
		mono, err := audio.Downmix(f)
		if err != nil {
			return s.fail(stageErr(StageDownmix, err))
		}
		if err := s.writer.WriteChunk(s.rs.Process(mono)); err != nil {
			return s.fail(stageErr(StageWrite, err))
		}
	}

	if err := s.writer.WriteChunk(s.rs.Flush()); err != nil {
		return s.fail(stageErr(StageWrite, err))
	}
	return nil
}

// watch turns asynchronous stream failures into a halt. A finite source
// reporting io.EOF has simply run out of audio.
func (s *Session) watch() error {
	select {
	case err := <-s.stream.Err():
		if errors.Is(err, io.EOF) {
			s.log.Info().Msg("Source finished")
			s.halt()
			return nil
		}
		return s.fail(stageErr(StageDevice, err))
	case <-s.stopping:
		return nil
	}
}

func (s *Session) fail(err error) error {
	if s.failed.CompareAndSwap(false, true) {
		s.log.Error().Err(err).Msg("Recording failed")
	}
	s.closeQueue()
	s.halt()
	return err
}

func (s *Session) halt() {
	s.haltOnce.Do(func() { close(s.halted) })
}
