// Package spectrum turns PCM samples into the byte magnitude frames the
// visualizer draws, with the same scaling as a Web Audio AnalyserNode.
package spectrum

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	DefaultSize      = 1024
	DefaultSmoothing = 0.8
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0
)

// Analyser computes smoothed frequency magnitudes over a fixed FFT size.
type Analyser struct {
	mu        sync.Mutex
	size      int
	fft       *fourier.FFT
	window    []float64
	input     []float64
	coeff     []complex128
	smoothed  []float64
	smoothing float64
	minDB     float64
	maxDB     float64
}

// New creates an analyser for size samples (a power of two).
func New(size int) *Analyser {
	if size <= 0 {
		size = DefaultSize
	}
	a := &Analyser{
		size:      size,
		fft:       fourier.NewFFT(size),
		window:    blackman(size),
		input:     make([]float64, size),
		coeff:     make([]complex128, size/2+1),
		smoothed:  make([]float64, size/2),
		smoothing: DefaultSmoothing,
		minDB:     DefaultMinDB,
		maxDB:     DefaultMaxDB,
	}
	return a
}

// Size returns the number of samples consumed per frame.
func (a *Analyser) Size() int {
	return a.size
}

// Bins returns the length of frames produced by ByteFrequencyData.
func (a *Analyser) Bins() int {
	return a.size / 2
}

// ByteFrequencyData returns one frame of Bins() magnitudes in [0,255].
// Samples shorter than Size() are zero padded; nil means silence.
func (a *Analyser) ByteFrequencyData(samples []float64) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.input {
		v := 0.0
		if i < len(samples) {
			v = samples[i]
		}
		a.input[i] = v * a.window[i]
	}
	a.coeff = a.fft.Coefficients(a.coeff, a.input)

	out := make([]byte, len(a.smoothed))
	scale := 255 / (a.maxDB - a.minDB)
	for k := range a.smoothed {
		c := a.coeff[k]
		mag := math.Hypot(real(c), imag(c)) / float64(a.size)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		if a.smoothed[k] <= 0 {
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		v := math.Floor(scale * (db - a.minDB))
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		out[k] = byte(v)
	}
	return out
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0 := (1 - alpha) / 2
	a1 := 0.5
	a2 := alpha / 2
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

// SampleSource yields the n mono samples at the current playback position,
// or nil when none are available.
type SampleSource interface {
	Samples(n int) []float64
}

// Visualizer pairs a sample source with an analyser.
type Visualizer struct {
	src SampleSource
	a   *Analyser
}

// NewVisualizer creates a visualizer reading from src.
func NewVisualizer(src SampleSource, a *Analyser) *Visualizer {
	return &Visualizer{src: src, a: a}
}

// Frame returns the spectrum frame for the current position.
func (v *Visualizer) Frame() []byte {
	return v.a.ByteFrequencyData(v.src.Samples(v.a.Size()))
}
