package rollout

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/kolFlow/datasets"
)

// PlotErrorCurves writes per-timestep MSE and MAE line plots to path.
func PlotErrorCurves(mse, mae []float64, path string) error {
	p := plot.New()
	p.Title.Text = "Rollout error per timestep"
	p.X.Label.Text = "timestep"
	p.Y.Label.Text = "error"

	mseLine, err := plotter.NewLine(curveXYs(mse))
	if err != nil {
		return fmt.Errorf("building MSE line: %w", err)
	}
	mseLine.Color = color.RGBA{R: 196, A: 255}
	maeLine, err := plotter.NewLine(curveXYs(mae))
	if err != nil {
		return fmt.Errorf("building MAE line: %w", err)
	}
	maeLine.Color = color.RGBA{B: 196, A: 255}

	p.Add(mseLine, maeLine)
	p.Legend.Add("MSE", mseLine)
	p.Legend.Add("MAE", maeLine)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// PlotSpectra overlays the ground-truth and prediction log-amplitude
// spectra of one frame.
func PlotSpectra(gt, pred Spectrum, path string) error {
	p := plot.New()
	p.Title.Text = "Spatial amplitude spectrum"
	p.X.Label.Text = "wavenumber"
	p.Y.Label.Text = "log amplitude"

	gtLine, err := plotter.NewLine(spectrumXYs(gt))
	if err != nil {
		return fmt.Errorf("building ground-truth spectrum line: %w", err)
	}
	gtLine.Color = color.RGBA{B: 196, A: 255}
	predLine, err := plotter.NewLine(spectrumXYs(pred))
	if err != nil {
		return fmt.Errorf("building prediction spectrum line: %w", err)
	}
	predLine.Color = color.RGBA{R: 196, A: 255}

	p.Add(gtLine, predLine)
	p.Legend.Add("ground truth", gtLine)
	p.Legend.Add("prediction", predLine)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// PlotFieldHeatMap renders one timestep of one channel as a heat map with a
// diverging palette.
func PlotFieldHeatMap(seq datasets.Grid, timestep, channel int, title, path string) error {
	if seq.Rank() != 4 {
		return fmt.Errorf("heat map requires a (time, channel, H, W) sequence, got shape %v", seq.Shape)
	}
	steps, channels, h, w := seq.Shape[0], seq.Shape[1], seq.Shape[2], seq.Shape[3]
	if timestep < 0 || timestep >= steps {
		return fmt.Errorf("timestep %d out of range [0, %d)", timestep, steps)
	}
	if channel < 0 || channel >= channels {
		return fmt.Errorf("channel %d out of range [0, %d)", channel, channels)
	}

	base := (timestep*channels + channel) * h * w
	grid := fieldGrid{data: seq.Data[base : base+h*w], h: h, w: w}
	hm := plotter.NewHeatMap(grid, moreland.SmoothBlueRed().Palette(255))

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(hm)
	return p.Save(4*vg.Inch, 4*vg.Inch, path)
}

func curveXYs(vals []float64) plotter.XYs {
	xys := make(plotter.XYs, len(vals))
	for i, v := range vals {
		xys[i].X = float64(i)
		xys[i].Y = v
	}
	return xys
}

func spectrumXYs(s Spectrum) plotter.XYs {
	xys := make(plotter.XYs, len(s.Amplitude))
	for i := range s.Amplitude {
		xys[i].X = s.Wavenumber[i]
		xys[i].Y = math.Log(s.Amplitude[i] + 1e-12)
	}
	return xys
}

// fieldGrid adapts one (H, W) frame channel to plotter.GridXYZ.
type fieldGrid struct {
	data []float32
	h, w int
}

func (g fieldGrid) Dims() (int, int)   { return g.w, g.h }
func (g fieldGrid) X(c int) float64    { return float64(c) }
func (g fieldGrid) Y(r int) float64    { return float64(r) }
func (g fieldGrid) Z(c, r int) float64 { return float64(g.data[r*g.w+c]) }
