package whisper

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/petems/transvox/internal/wav"
)

type mockSegments struct {
	segs []whisperlib.Segment
	err  error
}

func (m *mockSegments) NextSegment() (whisperlib.Segment, error) {
	if len(m.segs) == 0 {
		if m.err != nil {
			return whisperlib.Segment{}, m.err
		}
		return whisperlib.Segment{}, io.EOF
	}
	s := m.segs[0]
	m.segs = m.segs[1:]
	return s, nil
}

func TestCollectSegmentsJoinsWithNewlines(t *testing.T) {
	src := &mockSegments{segs: []whisperlib.Segment{
		{Start: 0, End: time.Second, Text: " Hello there."},
		{Start: time.Second, End: 2 * time.Second, Text: "   "},
		{Start: 2 * time.Second, End: 3 * time.Second, Text: "General Kenobi. "},
	}}

	segments, err := collectSegments(src)
	if err != nil {
		t.Fatalf("collectSegments: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	if got := joinSegments(segments); got != "Hello there.\nGeneral Kenobi." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestCollectSegmentsError(t *testing.T) {
	boom := errors.New("boom")
	_, err := collectSegments(&mockSegments{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func writeWAV(t *testing.T, rate int, samples []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	w, err := wav.Create(path, rate)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteChunk(samples); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSamplesPassthrough(t *testing.T) {
	input := []float32{0, 0.25, -0.25, 0.5}
	got, err := LoadSamples(writeWAV(t, SampleRate, input))
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if len(got) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(got))
	}
	for i := range input {
		if math.Abs(float64(got[i]-input[i])) > 1e-3 {
			t.Fatalf("sample %d: expected %f, got %f", i, input[i], got[i])
		}
	}
}

func TestLoadSamplesResamples(t *testing.T) {
	input := make([]float32, 48000)
	got, err := LoadSamples(writeWAV(t, 48000, input))
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if len(got) != 16000 {
		t.Fatalf("expected 16000 samples, got %d", len(got))
	}
}

func TestLoadSamplesMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("RIFF but not really"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSamples(path); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if _, err := LoadSamples(filepath.Join(t.TempDir(), "missing.wav")); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for missing file, got %v", err)
	}
}
