package audio

import (
	"fmt"
	"math"
)

const (
	zeroCrossings   = 16
	tableOversample = 512
	kaiserBeta      = 8.6
	rolloff         = 0.95
)

// sincTable holds a Kaiser-windowed sinc sampled tableOversample times per
// zero crossing, from 0 to zeroCrossings inclusive, plus one guard entry.
var sincTable = buildSincTable()

// Resampler converts a mono stream between two sample rates with a
// band-limited windowed-sinc interpolator. Filter history and output phase
// are carried across Process calls so chunk boundaries are seamless.
// A Resampler belongs to one stream; call Reset before reusing it.
type Resampler struct {
	src, dst int
	// reduced ratio, output t sits at input position t*num/den
	num, den int64
	cutoff   float64
	half     int

	history  []float32
	consumed int64 // samples dropped from the front of history
	out      int64 // outputs produced so far
	flushed  bool
}

// NewResampler returns a resampler from src Hz to dst Hz
func NewResampler(src, dst int) (*Resampler, error) {
	if src <= 0 || dst <= 0 {
		return nil, fmt.Errorf("%w: %d Hz -> %d Hz", ErrInvalidRate, src, dst)
	}

	g := gcd(src, dst)
	r := &Resampler{
		src: src,
		dst: dst,
		num: int64(src / g),
		den: int64(dst / g),
	}
	if src != dst {
		r.cutoff = rolloff * math.Min(1, float64(dst)/float64(src))
		r.half = int(math.Ceil(zeroCrossings / r.cutoff))
	}
	r.Reset()
	return r, nil
}

// Passthrough reports whether Process is the identity
func (r *Resampler) Passthrough() bool {
	return r.src == r.dst
}

// Reset discards history and phase
func (r *Resampler) Reset() {
	// Leading zeros stand in for the signal before the first sample
	r.history = make([]float32, r.half, r.half+4096)
	r.consumed = 0
	r.out = 0
	r.flushed = false
}

// Process resamples the next chunk. With equal rates the input slice is
// returned as-is. Output lags input by the filter half-width; Flush emits
// the remainder.
func (r *Resampler) Process(in []float32) []float32 {
	if r.Passthrough() {
		return in
	}
	if r.flushed {
		return nil
	}

	r.history = append(r.history, in...)
	out := make([]float32, 0, int64(len(in))*r.den/r.num+1)
	for {
		base, frac := r.position()
		if base+r.half >= len(r.history) {
			break
		}
		out = append(out, r.interpolate(base, frac))
		r.out++
	}
	r.compact()
	return out
}

// Flush emits the outputs still held back by the filter's look-ahead. After
// Flush the total output length is ceil(n*dst/src) for n input samples.
// Subsequent calls return nil until Reset.
func (r *Resampler) Flush() []float32 {
	if r.Passthrough() || r.flushed {
		return nil
	}
	r.flushed = true

	end := len(r.history)
	r.history = append(r.history, make([]float32, r.half)...)

	var out []float32
	for {
		base, frac := r.position()
		if base >= end {
			break
		}
		out = append(out, r.interpolate(base, frac))
		r.out++
	}
	return out
}

// position returns the index into history and the fractional offset of the
// next output sample.
func (r *Resampler) position() (int, float64) {
	n := r.out * r.num
	base := int64(r.half) + n/r.den - r.consumed
	return int(base), float64(n%r.den) / float64(r.den)
}

func (r *Resampler) interpolate(base int, frac float64) float32 {
	var sum float64
	for k := base - r.half + 1; k <= base+r.half; k++ {
		d := math.Abs(frac-float64(k-base)) * r.cutoff
		sum += float64(r.history[k]) * kernel(d)
	}
	return clamp(float32(sum * r.cutoff))
}

// compact drops history no longer reachable by the next output's taps
func (r *Resampler) compact() {
	base, _ := r.position()
	drop := base - r.half + 1
	if drop <= 0 {
		return
	}
	n := copy(r.history, r.history[drop:])
	r.history = r.history[:n]
	r.consumed += int64(drop)
}

// kernel evaluates the windowed sinc at d zero crossings
func kernel(d float64) float64 {
	if d >= zeroCrossings {
		return 0
	}
	x := d * tableOversample
	i := int(x)
	f := x - float64(i)
	return sincTable[i] + f*(sincTable[i+1]-sincTable[i])
}

func buildSincTable() []float64 {
	n := zeroCrossings * tableOversample
	t := make([]float64, n+2)
	i0Beta := besselI0(kaiserBeta)
	for i := 0; i <= n; i++ {
		x := float64(i) / tableOversample
		r := x / zeroCrossings
		w := besselI0(kaiserBeta*math.Sqrt(1-r*r)) / i0Beta
		t[i] = sinc(x) * w
	}
	return t
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// besselI0 is the zeroth-order modified Bessel function of the first kind
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	half := x / 2
	for k := 1; k < 50; k++ {
		term *= (half / float64(k)) * (half / float64(k))
		sum += term
		if term < sum*1e-12 {
			break
		}
	}
	return sum
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
