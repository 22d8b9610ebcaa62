package audio

import (
	"errors"
	"testing"
)

func TestDownmixInterleavedMono(t *testing.T) {
	input := []float32{0.1, 0.2, 0.3, 0.4}
	got := downmixInterleaved(input, 1, len(input))

	if len(got) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(got))
	}
	for i := range input {
		if got[i] != input[i] {
			t.Fatalf("expected element %d to be %f, got %f", i, input[i], got[i])
		}
	}

	if &got[0] == &input[0] {
		t.Fatal("expected mono result to be copied into a new slice")
	}
}

func TestDownmixInterleavedStereo(t *testing.T) {
	frames := 4
	input := []float32{
		0.0, 1.0,
		0.5, 0.5,
		1.0, 0.0,
		-0.5, 0.5,
	}

	expected := []float32{
		0.5, 0.5, 0.5, 0.0,
	}

	got := downmixInterleaved(input, 2, frames)
	if len(got) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("frame %d mismatch: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestDownmixInterleavedMoreChannels(t *testing.T) {
	frames := 2
	input := []float32{
		1, 3, 5,
		2, 4, 6,
	}

	// out-of-range device values are clamped after averaging
	expected := []float32{1, 1}

	got := downmixInterleaved(input, 3, frames)
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("frame %d mismatch: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestDownmixOppositeChannelsCancel(t *testing.T) {
	got, err := Downmix(Frame{Samples: []float32{1.0, -1.0, 1.0, -1.0}, Channels: 2})
	if err != nil {
		t.Fatalf("Downmix() error = %v", err)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 0 {
		t.Fatalf("expected [0 0], got %v", got)
	}
}

func TestDownmixLengthMatchesFrameCount(t *testing.T) {
	for channels := 1; channels <= 8; channels++ {
		for _, frames := range []int{0, 1, 7, 480} {
			f := Frame{Samples: make([]float32, frames*channels), Channels: channels}
			for i := range f.Samples {
				f.Samples[i] = float32(i%5) / 5
			}
			got, err := Downmix(f)
			if err != nil {
				t.Fatalf("channels=%d frames=%d: unexpected error %v", channels, frames, err)
			}
			if len(got) != f.FrameCount() {
				t.Fatalf("channels=%d frames=%d: expected %d samples, got %d", channels, frames, f.FrameCount(), len(got))
			}
		}
	}
}

func TestDownmixRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{name: "zero channels", frame: Frame{Samples: []float32{0.1, 0.2}, Channels: 0}},
		{name: "negative channels", frame: Frame{Samples: []float32{0.1}, Channels: -2}},
		{name: "partial frame", frame: Frame{Samples: []float32{0.1, 0.2, 0.3}, Channels: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Downmix(tt.frame)
			if !errors.Is(err, ErrInvalidFrame) {
				t.Fatalf("expected ErrInvalidFrame, got %v", err)
			}
			if got != nil {
				t.Fatalf("expected no output, got %v", got)
			}
		})
	}
}
