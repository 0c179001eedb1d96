package audiocapture

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectral subtraction parameters.
const (
	DenoiseFrame = 512
	DenoiseHop   = DenoiseFrame / 2

	// Latency is the delay in samples between input and output.
	DenoiseLatency = 2 * DenoiseHop

	denoiseWarmFrames = 8
	denoiseOverSub    = 2.0
	denoiseGainFloor  = 0.1
	denoiseNoiseAlpha = 0.95
)

// Denoiser suppresses stationary background noise with spectral
// subtraction. The noise spectrum is learned from the first frames and
// then tracked on frames that look like noise. Output is delayed by
// DenoiseLatency samples so Process can work in place on any length.
type Denoiser struct {
	window []float64
	frame  []float64 // last DenoiseFrame input samples
	buf    []float64
	olap   []float64
	noise  []float64 // per bin magnitude, DenoiseFrame/2+1 bins
	frames int

	pending []float32
	outQ    []float32
	total   int
}

// NewDenoiser returns a denoiser with an empty noise estimate.
func NewDenoiser() *Denoiser {
	d := &Denoiser{
		window: make([]float64, DenoiseFrame),
		frame:  make([]float64, DenoiseFrame),
		buf:    make([]float64, DenoiseFrame),
		olap:   make([]float64, DenoiseFrame),
		noise:  make([]float64, DenoiseFrame/2+1),
		outQ:   make([]float32, DenoiseHop, DenoiseHop*4),
	}
	// Square-root periodic Hann on analysis and synthesis sums to one at
	// 50% overlap.
	for i := range d.window {
		d.window[i] = math.Sqrt(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/DenoiseFrame)))
	}
	return d
}

// Process denoises samples in place.
func (d *Denoiser) Process(samples []float32) {
	d.total += len(samples)
	d.pending = append(d.pending, samples...)
	for len(d.pending) >= DenoiseHop {
		d.hop(d.pending[:DenoiseHop])
		d.pending = append(d.pending[:0], d.pending[DenoiseHop:]...)
	}
	n := copy(samples, d.outQ)
	d.outQ = append(d.outQ[:0], d.outQ[n:]...)
}

// Flush returns the samples still held back by the analysis delay. The
// denoiser should not be used afterwards.
func (d *Denoiser) Flush() []float32 {
	owed := min(DenoiseLatency, d.total)
	if owed == 0 {
		return nil
	}
	zeros := make([]float32, DenoiseHop)
	if len(d.pending) > 0 {
		d.pending = append(d.pending, zeros[:DenoiseHop-len(d.pending)]...)
		d.hop(d.pending)
		d.pending = d.pending[:0]
	}
	d.hop(zeros)
	out := make([]float32, owed)
	copy(out, d.outQ[DenoiseLatency-owed:DenoiseLatency])
	d.outQ = d.outQ[:0]
	d.total = 0
	return out
}

func (d *Denoiser) hop(in []float32) {
	copy(d.frame, d.frame[DenoiseHop:])
	for i, v := range in {
		d.frame[DenoiseFrame-DenoiseHop+i] = float64(v)
	}
	for i, v := range d.frame {
		d.buf[i] = v * d.window[i]
	}

	spec := fft.FFTReal(d.buf)
	bins := len(d.noise)

	var level, floor float64
	for k := range bins {
		level += cmplx.Abs(spec[k])
		floor += d.noise[k]
	}

	switch {
	case d.frames < denoiseWarmFrames:
		for k := range bins {
			d.noise[k] += cmplx.Abs(spec[k]) / denoiseWarmFrames
		}
		d.frames++
	default:
		if level < 2*floor {
			for k := range bins {
				d.noise[k] = denoiseNoiseAlpha*d.noise[k] + (1-denoiseNoiseAlpha)*cmplx.Abs(spec[k])
			}
		}
		for k := range bins {
			mag := cmplx.Abs(spec[k])
			gain := denoiseGainFloor
			if mag > 0 {
				gain = max(1-denoiseOverSub*d.noise[k]/mag, denoiseGainFloor)
			}
			g := complex(gain, 0)
			spec[k] *= g
			if k > 0 && k < DenoiseFrame/2 {
				spec[DenoiseFrame-k] *= g
			}
		}
	}

	out := fft.IFFT(spec)
	for i := range d.olap {
		d.olap[i] += real(out[i]) * d.window[i]
	}
	for _, v := range d.olap[:DenoiseHop] {
		d.outQ = append(d.outQ, float32(max(-1, min(1, v))))
	}
	copy(d.olap, d.olap[DenoiseHop:])
	clear(d.olap[DenoiseFrame-DenoiseHop:])
}
