package datasets

import "fmt"

// Stats holds per-channel mean and standard deviation computed over a whole
// dataset. The statistics always cover the full fixed channel superset, in
// this order: velocity-x, velocity-y, density, pressure, Reynolds number,
// Mach number. Active subsets are selected per dataset configuration.
type Stats struct {
	Mean [6]float32
	Std  [6]float32
}

// TraMixedStats returns the statistics of the mixed transonic-flow
// training set.
func TraMixedStats() Stats {
	return Stats{
		Mean: [6]float32{0.560642, -0.000129, 0.903352, 0.637941, 10000.000000, 0.700000},
		Std:  [6]float32{0.216987, 0.216987, 0.145391, 0.119944, 1, 0.118322},
	}
}

// DataTransforms standardizes samples to zero mean and unit deviation using
// dataset-wide statistics. It is stateless: Apply and Invert are pure
// mappings over a copy of the sample.
type DataTransforms struct {
	Fields []Field
	Params []Param
	Stats  Stats
}

// NewDataTransforms builds the transform matching the spec's active field
// and parameter subsets.
func NewDataTransforms(spec Spec, stats Stats) *DataTransforms {
	return &DataTransforms{Fields: spec.Fields(), Params: spec.Params(), Stats: stats}
}

// statIndices resolves the statistic index of every active data channel, in
// channel order. An index of -1 marks a channel without dataset statistics
// (the z-slice parameter), which is passed through unchanged.
func (t *DataTransforms) statIndices() []int {
	idx := []int{0, 1}
	for _, f := range t.Fields {
		switch f {
		case FieldDensity:
			idx = append(idx, 2)
		case FieldPressure:
			idx = append(idx, 3)
		}
	}
	for _, p := range t.Params {
		switch p {
		case ParamReynolds:
			idx = append(idx, 4)
		case ParamMach:
			idx = append(idx, 5)
		default:
			idx = append(idx, -1)
		}
	}
	return idx
}

// stats materializes mean/std vectors for the given statistic indices.
func (t *DataTransforms) stats(indices []int) (mean, std []float32) {
	mean = make([]float32, len(indices))
	std = make([]float32, len(indices))
	for i, s := range indices {
		if s < 0 {
			mean[i], std[i] = 0, 1
			continue
		}
		mean[i], std[i] = t.Stats.Mean[s], t.Stats.Std[s]
	}
	return mean, std
}

// dataStats returns the per-channel statistics covering the full sample
// channel layout: field channels followed by broadcast parameter channels.
func (t *DataTransforms) dataStats() (mean, std []float32) {
	return t.stats(t.statIndices())
}

// paramStats returns the statistics of the compact parameter tensor, the
// trailing entries of the data statistics.
func (t *DataTransforms) paramStats() (mean, std []float32) {
	idx := t.statIndices()
	return t.stats(idx[len(idx)-len(t.Params):])
}

// Apply standardizes a sample: (x - mean) / std per channel, broadcast over
// the time and spatial axes, with the statistic subset matching the active
// fields and parameters. The input sample is not modified.
func (t *DataTransforms) Apply(s Sample) (Sample, error) {
	mean, std := t.dataStats()
	if err := checkChannels(s.Data, len(mean)); err != nil {
		return Sample{}, err
	}
	out := s
	out.Data = s.Data.Clone()
	scaleGrid(out.Data, mean, std, false)

	if s.SimParameters != nil {
		pm, ps := t.paramStats()
		par := s.SimParameters.Clone()
		scaleGrid(par, pm, ps, false)
		out.SimParameters = &par
	}
	return out, nil
}

// Invert undoes Apply with the same statistics, restoring raw values up to
// floating-point rounding.
func (t *DataTransforms) Invert(s Sample) (Sample, error) {
	mean, std := t.dataStats()
	if err := checkChannels(s.Data, len(mean)); err != nil {
		return Sample{}, err
	}
	out := s
	out.Data = s.Data.Clone()
	scaleGrid(out.Data, mean, std, true)

	if s.SimParameters != nil {
		pm, ps := t.paramStats()
		par := s.SimParameters.Clone()
		scaleGrid(par, pm, ps, true)
		out.SimParameters = &par
	}
	return out, nil
}

func checkChannels(g Grid, want int) error {
	if g.Rank() < 2 {
		return fmt.Errorf("transform needs a (time, channel, ...) grid, got shape %v", g.Shape)
	}
	if g.Shape[1] != want {
		return fmt.Errorf("transform covers %d channels, sample has %d", want, g.Shape[1])
	}
	return nil
}

// scaleGrid applies the per-channel affine map in place; invert selects the
// direction.
func scaleGrid(g Grid, mean, std []float32, invert bool) {
	steps := g.Shape[0]
	channels := g.Shape[1]
	block := g.Size() / (steps * channels)
	pos := 0
	for t := 0; t < steps; t++ {
		for c := 0; c < channels; c++ {
			m, s := mean[c], std[c]
			for k := 0; k < block; k++ {
				if invert {
					g.Data[pos] = g.Data[pos]*s + m
				} else {
					g.Data[pos] = (g.Data[pos] - m) / s
				}
				pos++
			}
		}
	}
}
