// Package wav writes mono 16-bit PCM WAV files incrementally. The header is
// written with zero sizes on Create and patched by Finalize, so a file is
// only fully valid once Finalize has run.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"
)

const (
	// HeaderSize is the size of the canonical RIFF/WAVE header
	HeaderSize = 44

	// MaxDataBytes is the largest data chunk a 32-bit RIFF size can describe
	MaxDataBytes = math.MaxUint32 - (HeaderSize - 8)

	formatPCM     = 1
	numChannels   = 1
	bitsPerSample = 16
	bytesPerFrame = numChannels * bitsPerSample / 8
)

var (
	ErrIO        = errors.New("wav: i/o failure")
	ErrFinalize  = errors.New("wav: finalize failed")
	ErrFinalized = errors.New("wav: writer already finalized")
	ErrInvalid   = errors.New("wav: invalid header")
)

// Header is the canonical 44-byte WAV header
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// Duration returns the playing time the header declares
func (h Header) Duration() time.Duration {
	if h.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(h.Subchunk2Size) / float64(h.ByteRate) * float64(time.Second))
}

// newHeader builds a header whose RIFF and data sizes are left at zero
func newHeader(sampleRate int) Header {
	return Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * bytesPerFrame,
		BlockAlign:    bytesPerFrame,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
	}
}

// ReadHeader parses and validates the canonical header at the start of r
func ReadHeader(r io.ReaderAt) (Header, error) {
	var h Header
	if err := binary.Read(io.NewSectionReader(r, 0, HeaderSize), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch {
	case string(h.ChunkID[:]) != "RIFF":
		return h, fmt.Errorf("%w: missing RIFF header", ErrInvalid)
	case string(h.Format[:]) != "WAVE":
		return h, fmt.Errorf("%w: missing WAVE format", ErrInvalid)
	case string(h.Subchunk1ID[:]) != "fmt ":
		return h, fmt.Errorf("%w: missing fmt chunk", ErrInvalid)
	case string(h.Subchunk2ID[:]) != "data":
		return h, fmt.Errorf("%w: missing data chunk", ErrInvalid)
	}
	return h, nil
}

// ReadHeaderFile reads the header of the WAV file at path
func ReadHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	return ReadHeader(f)
}

// Writer owns one output file. WriteChunk and Finalize are safe to call from
// different goroutines; chunks land in the order the calls are made.
type Writer struct {
	mu         sync.Mutex
	f          *os.File
	path       string
	sampleRate int
	dataBytes  int64
	finalized  bool
	buf        []byte
}

// Create truncates path and writes a placeholder header declaring no data
func Create(path string, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrIO, sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrIO, path, err)
	}

	var hdr bytes.Buffer
	if err := binary.Write(&hdr, binary.LittleEndian, newHeader(sampleRate)); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: encode header: %v", ErrIO, err)
	}

	if _, err := f.Write(hdr.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: write header: %v", ErrIO, err)
	}

	return &Writer{f: f, path: path, sampleRate: sampleRate}, nil
}

// WriteChunk appends samples as clamped signed 16-bit little-endian PCM
func (w *Writer) WriteChunk(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return ErrFinalized
	}
	if len(samples) == 0 {
		return nil
	}

	size := len(samples) * bytesPerFrame
	if w.dataBytes+int64(size) > MaxDataBytes {
		return fmt.Errorf("%w: %s would exceed the 4 GiB WAV limit", ErrIO, w.path)
	}

	if cap(w.buf) < size {
		w.buf = make([]byte, size)
	}
	buf := w.buf[:size]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(toInt16(s)))
	}

	n, err := w.f.Write(buf)
	if err != nil {
		// keep the declared length on a sample boundary
		whole := int64(n - n%bytesPerFrame)
		w.dataBytes += whole
		if n%bytesPerFrame != 0 {
			_ = w.f.Truncate(HeaderSize + w.dataBytes)
			_, _ = w.f.Seek(0, io.SeekEnd)
		}
		return fmt.Errorf("%w: write %s: %v", ErrIO, w.path, err)
	}
	w.dataBytes += int64(n)
	return nil
}

// Finalize patches the RIFF and data sizes and closes the file. Only the
// first call does any work; later calls return nil.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return nil
	}
	w.finalized = true

	var errs []error
	riff := make([]byte, 4)
	binary.LittleEndian.PutUint32(riff, uint32(HeaderSize-8+w.dataBytes))
	if _, err := w.f.WriteAt(riff, 4); err != nil {
		errs = append(errs, fmt.Errorf("riff size: %w", err))
	}

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(w.dataBytes))
	if _, err := w.f.WriteAt(data, 40); err != nil {
		errs = append(errs, fmt.Errorf("data size: %w", err))
	}

	if err := w.f.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := w.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFinalize, w.path, err)
	}
	return nil
}

// Path returns the output file path
func (w *Writer) Path() string { return w.path }

// SampleRate returns the rate declared in the header
func (w *Writer) SampleRate() int { return w.sampleRate }

// DataBytes returns the PCM bytes written so far
func (w *Writer) DataBytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dataBytes
}

// Samples returns the number of samples written so far
func (w *Writer) Samples() int64 {
	return w.DataBytes() / bytesPerFrame
}

// Duration returns the audio length written so far
func (w *Writer) Duration() time.Duration {
	return time.Duration(w.Samples()) * time.Second / time.Duration(w.sampleRate)
}

// Finalized reports whether Finalize has run
func (w *Writer) Finalized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finalized
}

func toInt16(s float32) int16 {
	switch {
	case s != s: // NaN
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	return int16(math.Round(float64(s) * math.MaxInt16))
}
