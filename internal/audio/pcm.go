package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleFormat identifies the wire encoding of a backend buffer
type SampleFormat int

const (
	FormatU8 SampleFormat = iota + 1
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

// BytesPerSample returns the width of one sample, or 0 for unknown formats
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatF32:
		return 4
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS16:
		return "s16le"
	case FormatS24:
		return "s24le"
	case FormatS32:
		return "s32le"
	case FormatF32:
		return "f32le"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// DecodeInterleaved converts little-endian PCM bytes into float32 samples in
// [-1, 1]. Trailing bytes that do not form a whole sample are rejected.
func DecodeInterleaved(data []byte, format SampleFormat) ([]float32, error) {
	width := format.BytesPerSample()
	if width == 0 {
		return nil, fmt.Errorf("%w: unsupported sample format %s", ErrInvalidFrame, format)
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidFrame, len(data), width)
	}

	out := make([]float32, len(data)/width)
	for i := range out {
		b := data[i*width:]
		switch format {
		case FormatU8:
			out[i] = (float32(b[0]) - 128) / 128
		case FormatS16:
			out[i] = float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		case FormatS24:
			// sign-extend the 24-bit value through the top byte of an int32
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			out[i] = float32(v) / 8388608
		case FormatS32:
			out[i] = float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
		case FormatF32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	}
	return out, nil
}
