package rollout

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/Noofbiz/kolFlow/datasets"
)

// Spectrum holds the radial spatial amplitude spectrum of one frame:
// amplitudes of the 2-D Fourier coefficients sorted by wavenumber
// magnitude.
type Spectrum struct {
	Wavenumber []float64
	Amplitude  []float64
}

// FrameSpectrum computes the spectrum for one timestep and channel of a
// (time, channel, H, W) sequence.
func FrameSpectrum(seq datasets.Grid, timestep, channel int) (Spectrum, error) {
	if seq.Rank() != 4 {
		return Spectrum{}, fmt.Errorf("spectrum requires a (time, channel, H, W) sequence, got shape %v", seq.Shape)
	}
	steps, channels, h, w := seq.Shape[0], seq.Shape[1], seq.Shape[2], seq.Shape[3]
	if timestep < 0 || timestep >= steps {
		return Spectrum{}, fmt.Errorf("timestep %d out of range [0, %d)", timestep, steps)
	}
	if channel < 0 || channel >= channels {
		return Spectrum{}, fmt.Errorf("channel %d out of range [0, %d)", channel, channels)
	}

	grid := make([]complex128, h*w)
	base := (timestep*channels + channel) * h * w
	for i, v := range seq.Data[base : base+h*w] {
		grid[i] = complex(float64(v), 0)
	}

	// 2-D FFT: transform rows, then columns
	rowFFT := fourier.NewCmplxFFT(w)
	for r := 0; r < h; r++ {
		row := grid[r*w : (r+1)*w]
		copy(row, rowFFT.Coefficients(nil, row))
	}
	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	for c := 0; c < w; c++ {
		for r := range col {
			col[r] = grid[r*w+c]
		}
		out := colFFT.Coefficients(nil, col)
		for r := range out {
			grid[r*w+c] = out[r]
		}
	}

	type point struct{ k, a float64 }
	pts := make([]point, 0, h*w)
	for r := 0; r < h; r++ {
		ky := fftFreq(r, h)
		for c := 0; c < w; c++ {
			kx := fftFreq(c, w)
			pts = append(pts, point{math.Hypot(kx, ky), cmplx.Abs(grid[r*w+c])})
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].k < pts[j].k })

	s := Spectrum{
		Wavenumber: make([]float64, len(pts)),
		Amplitude:  make([]float64, len(pts)),
	}
	for i, p := range pts {
		s.Wavenumber[i] = p.k
		s.Amplitude[i] = p.a
	}
	return s, nil
}

// fftFreq is the signed sample frequency of bin i of an n-point transform
// with unit spacing.
func fftFreq(i, n int) float64 {
	if i <= (n-1)/2 {
		return float64(i) / float64(n)
	}
	return float64(i-n) / float64(n)
}
