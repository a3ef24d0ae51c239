package datasets

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field identifies one of the per-frame simulation fields stored on disk.
// Velocity is always part of a dataset; density and pressure are optional.
type Field int

const (
	FieldVelocity Field = iota
	FieldDensity
	FieldPressure
)

func (f Field) String() string {
	switch f {
	case FieldVelocity:
		return "velocity"
	case FieldDensity:
		return "density"
	case FieldPressure:
		return "pressure"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// FileName returns the on-disk file name of this field at the given frame,
// e.g. "velocity_000042.npz".
func (f Field) FileName(frame int) string {
	return fmt.Sprintf("%s_%06d.npz", f, frame)
}

// UnmarshalYAML accepts both the short names used in experiment configs
// ("dens", "pres") and the full field names.
func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "vel", "velocity":
		*f = FieldVelocity
	case "dens", "density":
		*f = FieldDensity
	case "pres", "pressure":
		*f = FieldPressure
	default:
		return fmt.Errorf("unknown simulation field %q", s)
	}
	return nil
}

// Param identifies one of the five recognized scalar simulation parameters.
type Param int

const (
	ParamReynolds Param = iota
	ParamMach
	ParamDrag
	ParamLift
	ParamZSlice
)

// allParams lists every recognized parameter in schema order.
var allParams = [...]Param{ParamReynolds, ParamMach, ParamDrag, ParamLift, ParamZSlice}

// Key returns the key under which this parameter is stored in a simulation's
// src/description.json.
func (p Param) Key() string {
	switch p {
	case ParamReynolds:
		return "Reynolds Number"
	case ParamMach:
		return "Mach Number"
	case ParamDrag:
		return "Drag Coefficient"
	case ParamLift:
		return "Lift Coefficient"
	case ParamZSlice:
		return "Z Slice"
	}
	return fmt.Sprintf("Param(%d)", int(p))
}

func (p Param) String() string {
	switch p {
	case ParamReynolds:
		return "rey"
	case ParamMach:
		return "mach"
	case ParamDrag:
		return "drag"
	case ParamLift:
		return "lift"
	case ParamZSlice:
		return "zslice"
	}
	return fmt.Sprintf("Param(%d)", int(p))
}

// UnmarshalYAML accepts the short parameter names used in experiment configs.
func (p *Param) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	for _, known := range allParams {
		if s == known.String() {
			*p = known
			return nil
		}
	}
	return fmt.Errorf("unknown simulation parameter %q", s)
}

// Verbosity controls how much of the dataset's contents is reported while
// the index is built.
type Verbosity int

const (
	VerbosityNone Verbosity = iota
	VerbosityTop
	VerbositySim
	VerbosityFull
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityNone:
		return "none"
	case VerbosityTop:
		return "top"
	case VerbositySim:
		return "sim"
	case VerbosityFull:
		return "full"
	}
	return fmt.Sprintf("Verbosity(%d)", int(v))
}

// UnmarshalYAML accepts "none", "top", "sim" or "full".
func (v *Verbosity) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	for _, known := range []Verbosity{VerbosityNone, VerbosityTop, VerbositySim, VerbosityFull} {
		if s == known.String() {
			*v = known
			return nil
		}
	}
	return fmt.Errorf("unknown verbosity %q", s)
}

// FrameRange is a half-open frame interval [Min, Max).
type FrameRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether n lies inside the range.
func (r FrameRange) Contains(n int) bool {
	return n >= r.Min && n < r.Max
}

// SimFilter selects simulation indices either by half-open range or by
// explicit membership. Exactly one form is set; the choice is made when the
// configuration is parsed, never at filter-evaluation time.
type SimFilter struct {
	Range *FrameRange
	Set   []int
}

// Contains reports whether the simulation index n passes the filter.
func (f SimFilter) Contains(n int) bool {
	if f.Range != nil {
		return f.Range.Contains(n)
	}
	for _, v := range f.Set {
		if v == n {
			return true
		}
	}
	return false
}

// UnmarshalYAML decodes either {min: a, max: b} or {set: [..]}.
func (f *SimFilter) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Min *int  `yaml:"min"`
		Max *int  `yaml:"max"`
		Set []int `yaml:"set"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	hasRange := aux.Min != nil || aux.Max != nil
	if hasRange == (aux.Set != nil) {
		return fmt.Errorf("sim filter must set either min/max or set")
	}
	if hasRange {
		if aux.Min == nil || aux.Max == nil {
			return fmt.Errorf("sim filter range needs both min and max")
		}
		f.Range = &FrameRange{Min: *aux.Min, Max: *aux.Max}
		f.Set = nil
		return nil
	}
	f.Range = nil
	f.Set = aux.Set
	return nil
}

// SeqSpec is the (sequence length, stride) pair of one category: Length
// frames are retained per window, Stride frames apart.
type SeqSpec struct {
	Length int `yaml:"length"`
	Stride int `yaml:"stride"`
}

// Span returns the number of raw frames covered by one window.
func (s SeqSpec) Span() int { return s.Length * s.Stride }

// Spec is the immutable configuration of a turbulence dataset.
//
// FilterTop, FilterSim, FilterFrame and Sequence address categories in one
// of two modes: a single entry applies to every category, while lists longer
// than one are indexed per category, resolved by substring-matching the
// category folder name against FilterTop. Mixing is allowed per list but the
// ordering must stay consistent with FilterTop.
type Spec struct {
	// Name of the dataset, used in diagnostics.
	Name string `yaml:"name"`

	// DataDirs are the dataset root directories.
	DataDirs []string `yaml:"data_dirs"`

	// FilterTop filters top-level category folders by substring;
	// ExcludeFilterTop flips the polarity from include to exclude.
	FilterTop        []string `yaml:"filter_top"`
	ExcludeFilterTop bool     `yaml:"exclude_filter_top"`

	// FilterSim filters simulations by their numeric index;
	// ExcludeFilterSim flips the polarity.
	FilterSim        []SimFilter `yaml:"filter_sim"`
	ExcludeFilterSim bool        `yaml:"exclude_filter_sim"`

	// FilterFrame restricts the usable frames per category. Mandatory.
	FilterFrame []FrameRange `yaml:"filter_frame"`

	// Sequence holds the per-category window length and stride. Mandatory.
	Sequence []SeqSpec `yaml:"sequence"`

	// RandSeqOffset shifts each accessed window by a uniform random offset.
	// When the shifted window would leave the category's frame range the
	// unshifted window is used instead. The silent fallback is deliberate:
	// it keeps every index addressable under any offset draw, at the cost
	// of boundary windows receiving less temporal jitter.
	RandSeqOffset bool `yaml:"rand_seq_offset"`

	// SimFields selects optional fields beyond velocity.
	SimFields []Field `yaml:"sim_fields"`

	// SimParams selects the scalar parameters joined onto each sample.
	// Supported subsets: {rey, mach}, {rey}, {mach}, {zslice} or none.
	SimParams []Param `yaml:"sim_params"`

	// Verbosity of index-time diagnostics.
	Verbosity Verbosity `yaml:"verbosity"`
}

// Fields returns the active fields in their fixed channel order: velocity
// first, then density, then pressure.
func (s Spec) Fields() []Field {
	fields := []Field{FieldVelocity}
	for _, opt := range []Field{FieldDensity, FieldPressure} {
		for _, f := range s.SimFields {
			if f == opt {
				fields = append(fields, opt)
				break
			}
		}
	}
	return fields
}

// Params returns the selected parameters in their fixed channel order:
// Reynolds number, Mach number, z-slice.
func (s Spec) Params() []Param {
	var params []Param
	for _, fixed := range []Param{ParamReynolds, ParamMach, ParamZSlice} {
		for _, p := range s.SimParams {
			if p == fixed {
				params = append(params, fixed)
				break
			}
		}
	}
	return params
}

// perCategory reports whether filters must be resolved per category rather
// than shared across all of them.
func (s Spec) perCategory() bool {
	return len(s.FilterSim) > 1 || len(s.FilterFrame) > 1 || len(s.Sequence) > 1
}

// frameRange resolves the frame filter for the given category index.
func (s Spec) frameRange(category int) FrameRange {
	if len(s.FilterFrame) == 1 {
		return s.FilterFrame[0]
	}
	return s.FilterFrame[category]
}

// seqSpec resolves the sequence windowing for the given category index.
func (s Spec) seqSpec(category int) SeqSpec {
	if len(s.Sequence) == 1 {
		return s.Sequence[0]
	}
	return s.Sequence[category]
}

// simFilter resolves the simulation filter for the given category index;
// ok is false when no simulation filter is configured.
func (s Spec) simFilter(category int) (f SimFilter, ok bool) {
	if len(s.FilterSim) == 0 {
		return SimFilter{}, false
	}
	if len(s.FilterSim) == 1 {
		return s.FilterSim[0], true
	}
	return s.FilterSim[category], true
}

// Validate checks the configuration for the errors that would otherwise
// surface mid-indexing: missing mandatory filters, per-category lists whose
// length does not match FilterTop, and unsupported parameter subsets.
func (s Spec) Validate() error {
	if len(s.DataDirs) == 0 {
		return fmt.Errorf("dataset %s: no data directories configured", s.Name)
	}
	if len(s.FilterFrame) == 0 {
		return fmt.Errorf("dataset %s: frame filter is mandatory", s.Name)
	}
	if len(s.Sequence) == 0 {
		return fmt.Errorf("dataset %s: sequence length/stride is mandatory", s.Name)
	}
	for i, seq := range s.Sequence {
		if seq.Length < 1 || seq.Stride < 1 {
			return fmt.Errorf("dataset %s: sequence entry %d must have positive length and stride", s.Name, i)
		}
	}
	for i, fr := range s.FilterFrame {
		if fr.Max <= fr.Min {
			return fmt.Errorf("dataset %s: frame filter entry %d is empty: [%d, %d)", s.Name, i, fr.Min, fr.Max)
		}
	}
	if s.perCategory() {
		for _, n := range []struct {
			name string
			len  int
		}{
			{"filter_sim", len(s.FilterSim)},
			{"filter_frame", len(s.FilterFrame)},
			{"sequence", len(s.Sequence)},
		} {
			if n.len > 1 && n.len != len(s.FilterTop) {
				return fmt.Errorf("dataset %s: %s has %d entries but filter_top has %d categories",
					s.Name, n.name, n.len, len(s.FilterTop))
			}
		}
	}
	return validParamSubset(s.SimParams, s.Name)
}

// validParamSubset enforces the supported parameter presets: empty, {rey},
// {mach}, {rey, mach} or {zslice}.
func validParamSubset(params []Param, name string) error {
	var rey, mach, zslice bool
	for _, p := range params {
		switch p {
		case ParamReynolds:
			rey = true
		case ParamMach:
			mach = true
		case ParamZSlice:
			zslice = true
		default:
			return fmt.Errorf("dataset %s: parameter %s cannot be selected as a sample channel", name, p)
		}
	}
	if zslice && (rey || mach) {
		return fmt.Errorf("dataset %s: zslice cannot be combined with other parameters", name)
	}
	return nil
}

// FilterInfo returns a human-readable summary of the configured filters.
func (s Spec) FilterInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - Data Filter Setup:\n", s.Name)
	fmt.Fprintf(&b, "\tdataDirs: %v\n", s.DataDirs)
	fmt.Fprintf(&b, "\tfilterTop: %v  exclude: %v\n", s.FilterTop, s.ExcludeFilterTop)
	fmt.Fprintf(&b, "\tfilterSim: %s  exclude: %v\n", simFilterInfo(s.FilterSim), s.ExcludeFilterSim)
	fmt.Fprintf(&b, "\tfilterFrame: %v\n", s.FilterFrame)
	fmt.Fprintf(&b, "\tsequence: %v\n", s.Sequence)
	return b.String()
}

func simFilterInfo(filters []SimFilter) string {
	if len(filters) == 0 {
		return "[]"
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		if f.Range != nil {
			parts[i] = fmt.Sprintf("[%d, %d)", f.Range.Min, f.Range.Max)
		} else {
			parts[i] = fmt.Sprintf("%v", f.Set)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
