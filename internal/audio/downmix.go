package audio

import "fmt"

// Downmix averages the channels of each frame position into one mono
// sample. The sum is accumulated in float64 and clamped to [-1, 1].
func Downmix(f Frame) ([]float32, error) {
	if f.Channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFrame, f.Channels)
	}
	if len(f.Samples)%f.Channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels", ErrInvalidFrame, len(f.Samples), f.Channels)
	}
	return downmixInterleaved(f.Samples, f.Channels, len(f.Samples)/f.Channels), nil
}

func downmixInterleaved(samples []float32, channels, frames int) []float32 {
	mono := make([]float32, frames)
	if channels == 1 {
		for i, s := range samples[:frames] {
			mono[i] = clamp(s)
		}
		return mono
	}

	for i := 0; i < frames; i++ {
		var sum float64
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += float64(s)
		}
		mono[i] = clamp(float32(sum / float64(channels)))
	}
	return mono
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
