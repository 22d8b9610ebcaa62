package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"
)

// SampleRate is the only rate whisper.cpp accepts
const SampleRate = 16000

// Transcriber turns a recorded file into text
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (Result, error)
	Close() error
}

type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type Result struct {
	Text     string
	Language string
	Segments []Segment
}

// Options configures inference
type Options struct {
	Language string // "auto" lets whisper detect it
	Threads  int
}

type whisperTranscriber struct {
	model whisperlib.Model
	opts  Options
	log   zerolog.Logger
	mu    sync.Mutex
}

// New loads the model at modelPath
func New(modelPath string, opts Options, log zerolog.Logger) (Transcriber, error) {
	if opts.Language == "" {
		opts.Language = "auto"
	}

	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	return &whisperTranscriber{
		model: model,
		opts:  opts,
		log:   log.With().Str("component", "whisper").Logger(),
	}, nil
}

func (w *whisperTranscriber) TranscribeFile(ctx context.Context, path string) (Result, error) {
	samples, err := LoadSamples(path)
	if err != nil {
		return Result{}, err
	}
	if len(samples) == 0 {
		w.log.Info().Str("path", path).Msg("No audio to transcribe")
		return Result{Language: w.opts.Language}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return Result{}, fmt.Errorf("whisper: transcriber closed")
	}

	// a context is not thread-safe; one per call
	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create context: %w", err)
	}
	if w.opts.Threads > 0 {
		wctx.SetThreads(uint(w.opts.Threads))
	}
	if err := wctx.SetLanguage(w.opts.Language); err != nil {
		w.log.Warn().Err(err).Str("language", w.opts.Language).Msg("Failed to set language, using auto")
		_ = wctx.SetLanguage("auto")
	}
	wctx.SetTranslate(false)

	w.log.Info().
		Str("path", path).
		Dur("audio", time.Duration(len(samples))*time.Second/SampleRate).
		Msg("Transcribing")

	start := time.Now()
	// returning false from the encoder callback aborts inference
	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, keepGoing, nil, nil); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("whisper process failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	segments, err := collectSegments(wctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Text:     joinSegments(segments),
		Language: wctx.DetectedLanguage(),
		Segments: segments,
	}
	if res.Language == "" {
		res.Language = w.opts.Language
	}

	w.log.Info().
		Int("segments", len(segments)).
		Str("language", res.Language).
		Dur("took", time.Since(start)).
		Msg("Transcription complete")
	return res, nil
}

func (w *whisperTranscriber) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}

type segmentSource interface {
	NextSegment() (whisperlib.Segment, error)
}

func collectSegments(src segmentSource) ([]Segment, error) {
	var segments []Segment
	for {
		seg, err := src.NextSegment()
		if errors.Is(err, io.EOF) {
			return segments, nil
		}
		if err != nil {
			return nil, fmt.Errorf("whisper read segment: %w", err)
		}
		segments = append(segments, Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
}

// joinSegments puts each non-empty segment on its own line
func joinSegments(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
