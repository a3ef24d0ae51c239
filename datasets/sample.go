package datasets

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Grid is a dense row-major float32 array with an explicit shape. It is the
// in-memory representation used throughout the package; converting to the
// execution tensor type is an explicit final step (see Tensor).
type Grid struct {
	Data  []float32
	Shape []int
}

// Rank returns the number of dimensions.
func (g Grid) Rank() int { return len(g.Shape) }

// Size returns the total number of elements.
func (g Grid) Size() int {
	n := 1
	for _, d := range g.Shape {
		n *= d
	}
	return n
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	return Grid{
		Data:  append([]float32(nil), g.Data...),
		Shape: append([]int(nil), g.Shape...),
	}
}

// Tensor converts the grid into a gomlx tensor of the same shape.
func (g Grid) Tensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(g.Data, g.Shape...)
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// Sample is one training sequence, recomputed from disk on every access.
type Sample struct {
	// Data has shape (seqLen, channels, H, W) or (seqLen, channels, H, W, D).
	// Channel order is fixed: velocity components first, then density, then
	// pressure, then any broadcast simulation parameters.
	Data Grid

	// SimParameters has shape (seqLen, numParams); nil when no parameters
	// were selected.
	SimParameters *Grid

	// AllParameters holds every recognized parameter's per-step values,
	// regardless of selection. Absent parameters are zero-filled.
	AllParameters map[Param][]float32

	// Path is a human-readable provenance string describing the field set,
	// frame range and stride of the sequence.
	Path string

	// ObsMask is the simulation's obstacle mask, when one exists on disk.
	// It is shared across the whole sequence.
	ObsMask *Grid
}

// loadSample assembles the sample for one window. When rng is non-nil a
// uniform temporal offset in [-half, +half] of the window span is drawn;
// the unshifted window is kept when the shifted one would leave the
// simulation's frame range (see Spec.RandSeqOffset).
func loadSample(w Window, fields []Field, params []Param, rng *rand.Rand) (Sample, error) {
	if rng != nil {
		half := (w.End - w.Start) / 2
		offset := rng.Intn(2*half+1) - half
		if w.Start+offset >= w.MinFrame && w.End+offset < w.MaxFrame {
			w.Start += offset
			w.End += offset
		}
	}
	seqLen := w.SeqLen()

	all, err := loadParameters(w, seqLen)
	if err != nil {
		return Sample{}, err
	}
	simPar := selectParameters(all, params, seqLen)

	obsMask, err := loadObstacleMask(w.Dir)
	if err != nil {
		return Sample{}, err
	}

	data, err := loadFields(w, fields)
	if err != nil {
		return Sample{}, err
	}
	if simPar != nil {
		data, err = appendParamChannels(data, *simPar)
		if err != nil {
			return Sample{}, err
		}
	}

	return Sample{
		Data:          data,
		SimParameters: simPar,
		AllParameters: all,
		Path:          w.provenance(fields),
		ObsMask:       obsMask,
	}, nil
}

// loadParameters reads src/description.json once and produces a per-step
// array for every recognized parameter: zero-filled when absent, broadcast
// when scalar, sliced by [start:end:stride] when stored as a sequence.
func loadParameters(w Window, seqLen int) (map[Param][]float32, error) {
	path := filepath.Join(w.Dir, "src", "description.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulation description: %w", err)
	}
	var desc map[string]any
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	out := make(map[Param][]float32, len(allParams))
	for _, p := range allParams {
		vals := make([]float32, seqLen)
		if v, ok := desc[p.Key()]; ok {
			switch t := v.(type) {
			case float64:
				for i := range vals {
					vals[i] = float32(t)
				}
			case []any:
				for i := 0; i < seqLen; i++ {
					frame := w.Start + i*w.Stride
					if frame < 0 || frame >= len(t) {
						return nil, fmt.Errorf("%s: parameter %q has %d entries, frame %d requested", path, p.Key(), len(t), frame)
					}
					num, ok := t[frame].(float64)
					if !ok {
						return nil, fmt.Errorf("%s: parameter %q has a non-numeric entry at %d", path, p.Key(), frame)
					}
					vals[i] = float32(num)
				}
			default:
				return nil, fmt.Errorf("%s: parameter %q must be a number or a sequence, got %T", path, p.Key(), v)
			}
		}
		out[p] = vals
	}
	return out, nil
}

// selectParameters composes the requested parameter subset into a compact
// (seqLen, numParams) grid; nil when nothing was requested.
func selectParameters(all map[Param][]float32, params []Param, seqLen int) *Grid {
	if len(params) == 0 {
		return nil
	}
	g := Grid{
		Data:  make([]float32, seqLen*len(params)),
		Shape: []int{seqLen, len(params)},
	}
	for t := 0; t < seqLen; t++ {
		for j, p := range params {
			g.Data[t*len(params)+j] = all[p][t]
		}
	}
	return &g
}

// loadObstacleMask loads the whole-sequence obstacle mask next to the
// simulation directory; absence is not an error.
func loadObstacleMask(dir string) (*Grid, error) {
	path := filepath.Join(dir, "obstacle_mask.npz")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking obstacle mask: %w", err)
	}
	g, err := ReadNPZ(path)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// loadFields reads every retained frame of every active field and lays them
// out as one (seqLen, channels, spatial...) grid, with the channel blocks of
// each field contiguous per timestep in the fixed field order.
func loadFields(w Window, fields []Field) (Grid, error) {
	seqLen := w.SeqLen()
	perField := make([][]Grid, len(fields))
	for fi := range perField {
		perField[fi] = make([]Grid, 0, seqLen)
	}
	for frame := w.Start; frame < w.End; frame += w.Stride {
		for fi, field := range fields {
			g, err := ReadNPZ(filepath.Join(w.Dir, field.FileName(frame)))
			if err != nil {
				return Grid{}, err
			}
			if g.Rank() != 3 && g.Rank() != 4 {
				return Grid{}, fmt.Errorf("%s frame %d: want a (channels, spatial...) array of rank 3 or 4, got rank %d", field, frame, g.Rank())
			}
			if len(perField[fi]) > 0 && !sameShape(g.Shape, perField[fi][0].Shape) {
				return Grid{}, fmt.Errorf("%s frame %d: shape %v differs from first frame %v", field, frame, g.Shape, perField[fi][0].Shape)
			}
			perField[fi] = append(perField[fi], g)
		}
	}

	spatial := perField[0][0].Shape[1:]
	channels := 0
	for fi, field := range fields {
		if !sameShape(perField[fi][0].Shape[1:], spatial) {
			return Grid{}, fmt.Errorf("%s: spatial shape %v differs from velocity's %v", field, perField[fi][0].Shape[1:], spatial)
		}
		channels += perField[fi][0].Shape[0]
	}

	out := Grid{
		Data:  make([]float32, seqLen*channels*prod(spatial)),
		Shape: append([]int{seqLen, channels}, spatial...),
	}
	pos := 0
	for t := 0; t < seqLen; t++ {
		for fi := range fields {
			pos += copy(out.Data[pos:], perField[fi][t].Data)
		}
	}
	return out, nil
}

// appendParamChannels broadcasts the (seqLen, numParams) parameter grid
// across the spatial dimensions of the field grid and concatenates it onto
// the channel axis after the field channels.
func appendParamChannels(data Grid, par Grid) (Grid, error) {
	if data.Rank() != 4 && data.Rank() != 5 {
		return Grid{}, fmt.Errorf("cannot broadcast parameters over rank-%d sample", data.Rank())
	}
	seqLen, channels := data.Shape[0], data.Shape[1]
	spatial := data.Shape[2:]
	spatialSize := prod(spatial)
	nPar := par.Shape[1]

	out := Grid{
		Data:  make([]float32, seqLen*(channels+nPar)*spatialSize),
		Shape: append([]int{seqLen, channels + nPar}, spatial...),
	}
	pos := 0
	for t := 0; t < seqLen; t++ {
		pos += copy(out.Data[pos:], data.Data[t*channels*spatialSize:(t+1)*channels*spatialSize])
		for j := 0; j < nPar; j++ {
			v := par.Data[t*nPar+j]
			for k := 0; k < spatialSize; k++ {
				out.Data[pos] = v
				pos++
			}
		}
	}
	return out, nil
}
