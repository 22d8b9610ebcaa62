package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petems/transvox/internal/audio"
	"github.com/petems/transvox/internal/capture"
	"github.com/petems/transvox/internal/config"
	"github.com/petems/transvox/internal/wav"
	"github.com/petems/transvox/internal/whisper"
	"github.com/rs/zerolog"
)

// Mock implementations for testing
type mockSource struct {
	frames  [][]float32
	format  audio.StreamFormat
	devices []audio.DeviceInfo
	sel     audio.DeviceSelector
	closed  bool
}

func (m *mockSource) Open(ctx context.Context, sel audio.DeviceSelector) (audio.Stream, error) {
	m.sel = sel
	return &mockStream{frames: m.frames, format: m.format, errs: make(chan error, 1)}, nil
}

func (m *mockSource) Devices() ([]audio.DeviceInfo, error) {
	return m.devices, nil
}

func (m *mockSource) Close() error {
	m.closed = true
	return nil
}

// mockStream plays its frames once and then reports io.EOF
type mockStream struct {
	frames [][]float32
	format audio.StreamFormat
	errs   chan error
	once   sync.Once
	done   chan struct{}
}

func (m *mockStream) Format() audio.StreamFormat { return m.format }

func (m *mockStream) Err() <-chan error { return m.errs }

func (m *mockStream) Start(cb audio.FrameCallback) error {
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		for _, f := range m.frames {
			cb(audio.Frame{Samples: f, Channels: m.format.Channels})
		}
		m.errs <- io.EOF
	}()
	return nil
}

func (m *mockStream) Stop() error {
	m.once.Do(func() {
		if m.done != nil {
			<-m.done
		}
	})
	return nil
}

type mockTranscriber struct {
	result whisper.Result
	err    error
	paths  []string
}

func (m *mockTranscriber) TranscribeFile(ctx context.Context, path string) (whisper.Result, error) {
	m.paths = append(m.paths, path)
	return m.result, m.err
}

func (m *mockTranscriber) Close() error {
	return nil
}

type mockTranslator struct {
	inputs []string
}

func (m *mockTranslator) Translate(ctx context.Context, text string) (string, error) {
	m.inputs = append(m.inputs, text)
	return "[zh] " + text, nil
}

type mockCopier struct {
	copied []string
	err    error
}

func (m *mockCopier) Copy(ctx context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.copied = append(m.copied, text)
	return nil
}

type mockStatus struct {
	events []string
}

func (m *mockStatus) SetRecording(path string)  { m.events = append(m.events, "recording") }
func (m *mockStatus) SetProcessing(what string) { m.events = append(m.events, what) }
func (m *mockStatus) SetIdle()                  { m.events = append(m.events, "idle") }

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Capture.OutputDir = t.TempDir()
	return cfg
}

func TestCaptureRecordsUntilSourceEnds(t *testing.T) {
	src := &mockSource{
		format: audio.StreamFormat{SampleRate: 16000, Channels: 2},
		frames: [][]float32{
			{0.5, 0.5, -0.5, -0.5},
			{0.25, 0.25},
		},
	}
	status := &mockStatus{}
	cfg := testConfig(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	a := New(Config{
		Sources:       func(string) (audio.FrameSource, error) { return src, nil },
		Config:        cfg,
		Logger:        zerolog.Nop(),
		StatusUpdater: status,
		Now:           func() time.Time { return at },
	})

	stats, err := a.Capture(context.Background(), CaptureRequest{DeviceID: "monitor"})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	want := filepath.Join(cfg.Capture.OutputDir, "audio_20240102030405.wav")
	if stats.Path != want {
		t.Fatalf("expected output %s, got %s", want, stats.Path)
	}
	if stats.SamplesWritten != 3 {
		t.Fatalf("expected 3 samples, got %d", stats.SamplesWritten)
	}
	h, err := wav.ReadHeaderFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if h.Subchunk2Size != 6 {
		t.Fatalf("expected 6 data bytes, got %d", h.Subchunk2Size)
	}
	if src.sel.ID != "monitor" || !src.sel.Loopback {
		t.Fatalf("unexpected device selector %+v", src.sel)
	}
	if !src.closed {
		t.Fatal("expected backend to be closed")
	}
	if strings.Join(status.events, ",") != "recording,idle" {
		t.Fatalf("unexpected status events %v", status.events)
	}
}

func TestCaptureBackendError(t *testing.T) {
	a := New(Config{
		Sources: func(string) (audio.FrameSource, error) { return nil, audio.ErrDeviceUnavailable },
		Config:  testConfig(t),
		Logger:  zerolog.Nop(),
	})

	_, err := a.Capture(context.Background(), CaptureRequest{})
	var se *capture.StageError
	if !errors.As(err, &se) || se.Stage != capture.StageDevice {
		t.Fatalf("expected device stage error, got %v", err)
	}
}

func TestCaptureReplay(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	w, err := wav.Create(in, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteChunk(make([]float32, 4800)); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	a := New(Config{
		Sources: func(string) (audio.FrameSource, error) {
			t.Fatal("replay must not open a device")
			return nil, nil
		},
		Config: testConfig(t),
		Logger: zerolog.Nop(),
	})

	out := filepath.Join(dir, "out", "replayed.wav")
	stats, err := a.Capture(context.Background(), CaptureRequest{Output: out, Replay: in})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if stats.SamplesWritten != 1600 {
		t.Fatalf("expected 1600 samples at 16 kHz, got %d", stats.SamplesWritten)
	}
}

func TestTranscribeWritesAndCopies(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(input, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}

	stt := &mockTranscriber{result: whisper.Result{Text: "hello\nworld", Language: "en"}}
	clip := &mockCopier{}
	a := New(Config{
		Transcriber: stt,
		Clipboard:   clip,
		Config:      testConfig(t),
		Logger:      zerolog.Nop(),
	})

	output := filepath.Join(dir, "audio.txt")
	res, err := a.Transcribe(context.Background(), TranscribeRequest{Input: input, Output: output, Copy: true})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Language != "en" {
		t.Fatalf("expected language en, got %q", res.Language)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello\nworld\n" {
		t.Fatalf("unexpected transcript file %q", got)
	}
	if len(clip.copied) != 1 || clip.copied[0] != "hello\nworld" {
		t.Fatalf("unexpected clipboard contents %v", clip.copied)
	}
}

func TestTranscribeClipboardFailureIsNotFatal(t *testing.T) {
	input := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(input, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}
	a := New(Config{
		Transcriber: &mockTranscriber{result: whisper.Result{Text: "hi"}},
		Clipboard:   &mockCopier{err: errors.New("no display")},
		Config:      testConfig(t),
		Logger:      zerolog.Nop(),
	})
	if _, err := a.Transcribe(context.Background(), TranscribeRequest{Input: input, Copy: true}); err != nil {
		t.Fatalf("expected clipboard error to be logged only, got %v", err)
	}
}

func TestTranscribeMissingInput(t *testing.T) {
	stt := &mockTranscriber{}
	a := New(Config{Transcriber: stt, Config: testConfig(t), Logger: zerolog.Nop()})

	_, err := a.Transcribe(context.Background(), TranscribeRequest{Input: filepath.Join(t.TempDir(), "nope.wav")})
	if !errors.Is(err, whisper.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if len(stt.paths) != 0 {
		t.Fatal("transcriber should not be called")
	}
}

func TestTranscribeWithoutTranscriber(t *testing.T) {
	a := New(Config{Config: testConfig(t), Logger: zerolog.Nop()})
	if _, err := a.Transcribe(context.Background(), TranscribeRequest{Input: "x.wav"}); err == nil {
		t.Fatal("expected error without a transcriber")
	}
}

func TestTranslate(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(input, []byte("  good morning \n"), 0644); err != nil {
		t.Fatal(err)
	}

	tr := &mockTranslator{}
	a := New(Config{Translator: tr, Config: testConfig(t), Logger: zerolog.Nop()})

	output := filepath.Join(dir, "out.txt")
	got, err := a.Translate(context.Background(), TranslateRequest{Input: input, Output: output})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "[zh] good morning" {
		t.Fatalf("unexpected translation %q", got)
	}
	if tr.inputs[0] != "good morning" {
		t.Fatalf("expected trimmed input, got %q", tr.inputs[0])
	}
	written, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(written) != "[zh] good morning\n" {
		t.Fatalf("unexpected output file %q", written)
	}
}

func TestTranslateMissingInput(t *testing.T) {
	a := New(Config{Translator: &mockTranslator{}, Config: testConfig(t), Logger: zerolog.Nop()})
	if _, err := a.Translate(context.Background(), TranslateRequest{Input: filepath.Join(t.TempDir(), "nope.txt")}); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestDevices(t *testing.T) {
	src := &mockSource{devices: []audio.DeviceInfo{
		{ID: "mic", Name: "Microphone", Default: true},
		{ID: "sink.monitor", Name: "Monitor of Speakers", Loopback: true},
	}}
	var requested string
	a := New(Config{
		Sources: func(backend string) (audio.FrameSource, error) {
			requested = backend
			return src, nil
		},
		Config: testConfig(t),
		Logger: zerolog.Nop(),
	})

	devices, err := a.Devices("pulse")
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if requested != "pulse" {
		t.Fatalf("expected pulse backend, got %q", requested)
	}
	if len(devices) != 2 || !devices[1].Loopback {
		t.Fatalf("unexpected devices %+v", devices)
	}
	if !src.closed {
		t.Fatal("expected backend to be closed")
	}
}
