package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// ErrUnsupportedFile is returned for audio files that cannot be decoded
var ErrUnsupportedFile = errors.New("audio: unsupported file")

// Clip is a fully decoded audio file with interleaved samples in [-1, 1]
type Clip struct {
	Samples []float32
	Format  StreamFormat
}

// Frame returns the clip as a single frame
func (c Clip) Frame() Frame {
	return Frame{Samples: c.Samples, Channels: c.Format.Channels}
}

// ReadFile decodes a WAV or FLAC file, chosen by extension
func ReadFile(path string) (Clip, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return ReadFLAC(path)
	case ".wav", ".wave":
		return ReadWAV(path)
	}
	return Clip{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
}

// ReadWAV decodes an integer PCM WAV file
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Clip{}, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedFile, path)
	}
	if d.WavAudioFormat != 1 {
		return Clip{}, fmt.Errorf("%w: %s: audio format %d is not PCM", ErrUnsupportedFile, path, d.WavAudioFormat)
	}
	if d.BitDepth == 0 || d.BitDepth > 32 {
		return Clip{}, fmt.Errorf("%w: %s: unsupported bit depth %d", ErrUnsupportedFile, path, d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFile, path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 || buf.Format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("%w: %s: %d channels at %d Hz", ErrUnsupportedFile, path, channels, buf.Format.SampleRate)
	}

	return Clip{
		Samples: intBufferToFloat(buf, int(d.BitDepth)),
		Format:  StreamFormat{SampleRate: buf.Format.SampleRate, Channels: channels},
	}, nil
}

// intBufferToFloat scales integer PCM to [-1, 1]. 8-bit WAV is unsigned.
func intBufferToFloat(buf *goaudio.IntBuffer, bitDepth int) []float32 {
	samples := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		for i, v := range buf.Data {
			samples[i] = float32(v-128) / 128
		}
		return samples
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return samples
}

// ReadFLAC decodes a FLAC file
func ReadFLAC(path string) (Clip, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFile, path, err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))
	samples := make([]float32, 0, int(stream.Info.NSamples)*channels)

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFile, path, err)
		}
		n := frame.Subframes[0].NSamples
		for i := 0; i < n; i++ {
			for _, sub := range frame.Subframes {
				samples = append(samples, float32(sub.Samples[i])/scale)
			}
		}
	}

	return Clip{
		Samples: samples,
		Format:  StreamFormat{SampleRate: int(stream.Info.SampleRate), Channels: channels},
	}, nil
}
