package whisper

import (
	"errors"
	"fmt"

	"github.com/petems/transvox/internal/audio"
)

// ErrMalformedInput is returned for audio files that cannot be decoded
var ErrMalformedInput = errors.New("whisper: malformed input")

// LoadSamples decodes a WAV or FLAC file into 16 kHz mono samples
func LoadSamples(path string) ([]float32, error) {
	clip, err := audio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	mono, err := audio.Downmix(clip.Frame())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, path, err)
	}

	rs, err := audio.NewResampler(clip.Format.SampleRate, SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, path, err)
	}
	if rs.Passthrough() {
		return mono, nil
	}

	out := rs.Process(mono)
	return append(out, rs.Flush()...), nil
}
