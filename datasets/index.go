package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Window describes one addressable training sequence: a contiguous,
// fixed-stride span of frames inside a single simulation directory.
// (End - Start) is always an exact multiple of Stride, and every field file
// for every retained frame existed on disk when the window was built.
type Window struct {
	// Dir is the simulation directory holding the frame files.
	Dir string

	// Start and End delimit the raw frame span [Start, End); Stride is the
	// spacing between retained frames.
	Start  int
	End    int
	Stride int

	// MinFrame and MaxFrame are the resolved frame-range bounds of the
	// simulation's category, kept so randomized temporal offsets can be
	// validated against the correct per-category filter.
	MinFrame int
	MaxFrame int
}

// SeqLen returns the number of retained frames in the window.
func (w Window) SeqLen() int { return (w.End - w.Start) / w.Stride }

// provenance renders the human-readable sample path: the active fields, the
// first and last retained frame, and the stride.
func (w Window) provenance(fields []Field) string {
	return fmt.Sprintf("%s/%s_%06d-%06d(%03d).npz", w.Dir, fieldTag(fields), w.Start, w.End-w.Stride, w.Stride)
}

// fieldTag joins the active field names with dashes ("velocity-density").
func fieldTag(fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return strings.Join(names, "-")
}

// SimulationRecord is one kept simulation directory together with the
// category index used to resolve its per-category filters.
type SimulationRecord struct {
	Dir      string
	Category int
}

// Observer receives index-time diagnostics. Each message carries the
// verbosity level it belongs to; filtering is the observer's decision, so
// the index pass itself stays a pure function of the spec.
type Observer func(level Verbosity, msg string)

// BuildIndex walks the configured data directories and produces the ordered
// window list that defines the dataset's length and addressing. The pass
// runs once, eagerly validating that every frame file of every window
// exists; a missing file inside a declared-complete window is an error,
// while an incomplete trailing window is an expected stop condition.
func BuildIndex(spec Spec, obs Observer) ([]Window, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = func(Verbosity, string) {}
	}
	records, err := indexSimulations(spec, obs)
	if err != nil {
		return nil, err
	}
	var windows []Window
	for _, rec := range records {
		ws, err := windowSimulation(spec, rec, obs)
		if err != nil {
			return nil, err
		}
		windows = append(windows, ws...)
	}
	return windows, nil
}

// indexSimulations lists and filters the two directory levels below each
// data root: category folders, then simulation folders.
func indexSimulations(spec Spec, obs Observer) ([]SimulationRecord, error) {
	var records []SimulationRecord
	for _, dataDir := range spec.DataDirs {
		tops, err := os.ReadDir(dataDir)
		if err != nil {
			return nil, fmt.Errorf("listing data dir: %w", err)
		}
		for _, top := range tops {
			if !top.IsDir() {
				continue
			}
			name := top.Name()
			if len(spec.FilterTop) > 0 {
				// keep when substring match agrees with the requested polarity
				if containsAny(name, spec.FilterTop) == spec.ExcludeFilterTop {
					continue
				}
			}
			category := 0
			if spec.perCategory() {
				category = -1
				for i, f := range spec.FilterTop {
					if strings.Contains(name, f) {
						category = i
						break
					}
				}
				if category < 0 {
					return nil, fmt.Errorf("top folder %q matches no filter_top entry; cannot resolve per-category filters", name)
				}
			}
			catDir := filepath.Join(dataDir, name)
			obs(VerbosityTop, "Top folder loaded: "+name)

			sims, err := os.ReadDir(catDir)
			if err != nil {
				return nil, fmt.Errorf("listing category %s: %w", catDir, err)
			}
			for _, sim := range sims {
				if !sim.IsDir() {
					continue
				}
				dir := filepath.Join(catDir, sim.Name())
				if filter, ok := spec.simFilter(category); ok {
					num, err := simNumber(sim.Name())
					if err != nil {
						return nil, fmt.Errorf("category %s: %w", catDir, err)
					}
					if filter.Contains(num) == spec.ExcludeFilterSim {
						continue
					}
				}
				obs(VerbositySim, "Sim loaded: "+filepath.Join(name, sim.Name()))
				records = append(records, SimulationRecord{Dir: dir, Category: category})
			}
		}
	}
	return records, nil
}

// windowSimulation enumerates the complete windows of one simulation in
// increasing, contiguous, non-overlapping order. Enumeration stops at the
// first window that would overrun the frame range; later starts cannot
// yield complete windows either.
func windowSimulation(spec Spec, rec SimulationRecord, obs Observer) ([]Window, error) {
	frame := spec.frameRange(rec.Category)
	seq := spec.seqSpec(rec.Category)
	fields := spec.Fields()
	span := seq.Span()

	var windows []Window
	for start := frame.Min; start < frame.Max; start += span {
		end := start + span
		if end > frame.Max {
			break
		}
		for f := start; f < end; f += seq.Stride {
			for _, field := range fields {
				path := filepath.Join(rec.Dir, field.FileName(f))
				if _, err := os.Stat(path); err != nil {
					return nil, fmt.Errorf("missing %s frame file %s: %w", field, path, err)
				}
			}
		}
		w := Window{
			Dir:      rec.Dir,
			Start:    start,
			End:      end,
			Stride:   seq.Stride,
			MinFrame: frame.Min,
			MaxFrame: frame.Max,
		}
		obs(VerbosityFull, "Frames loaded: "+w.provenance(fields))
		windows = append(windows, w)
	}
	return windows, nil
}

// simNumber extracts the numeric index from a simulation folder name such
// as "sim_000042".
func simNumber(name string) (int, error) {
	_, digits, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("simulation folder %q has no numeric suffix", name)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("simulation folder %q has no numeric suffix: %w", name, err)
	}
	return n, nil
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
