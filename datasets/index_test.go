package datasets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildIndexWindowCount(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 100})

	windows, err := BuildIndex(baseSpec(root), nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(windows) != 10 {
		t.Fatalf("got %d windows, want 10", len(windows))
	}
	for i, w := range windows {
		if w.Start != i*10 || w.End != (i+1)*10 {
			t.Fatalf("window %d covers [%d, %d), want [%d, %d)", i, w.Start, w.End, i*10, (i+1)*10)
		}
		if w.SeqLen() != 10 {
			t.Fatalf("window %d has %d retained frames, want 10", i, w.SeqLen())
		}
	}
}

func TestBuildIndexDiscardsTrailingPartial(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 95})

	spec := baseSpec(root)
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 95}}
	windows, err := BuildIndex(spec, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(windows) != 9 {
		t.Fatalf("got %d windows, want 9: the 5 trailing frames cannot fill a window", len(windows))
	}
	last := windows[len(windows)-1]
	if last.End != 90 {
		t.Fatalf("last window ends at %d, want 90", last.End)
	}
}

func TestBuildIndexStride(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 100})

	spec := baseSpec(root)
	spec.Sequence = []SeqSpec{{Length: 5, Stride: 2}}
	windows, err := BuildIndex(spec, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(windows) != 10 {
		t.Fatalf("got %d windows, want 10", len(windows))
	}
	for i, w := range windows {
		if w.End-w.Start != 10 || w.Stride != 2 || w.SeqLen() != 5 {
			t.Fatalf("window %d: span %d stride %d seqLen %d, want 10/2/5", i, w.End-w.Start, w.Stride, w.SeqLen())
		}
	}
}

func TestBuildIndexTopFilter(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 10})
	writeSimDir(t, root, simConfig{category: "inc_ext", index: 1, frames: 10})

	spec := baseSpec(root)
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 10}}

	windows, err := BuildIndex(spec, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(windows) != 1 || !strings.Contains(windows[0].Dir, "tra_ext") {
		t.Fatalf("include filter kept %v, want only tra_ext", windows)
	}

	spec.ExcludeFilterTop = true
	windows, err = BuildIndex(spec, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(windows) != 1 || !strings.Contains(windows[0].Dir, "inc_ext") {
		t.Fatalf("exclude filter kept %v, want only inc_ext", windows)
	}
}

func TestBuildIndexPerCategoryFilters(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 40})
	writeSimDir(t, root, simConfig{category: "inc_ext", index: 1, frames: 20})

	spec := baseSpec(root)
	spec.FilterTop = []string{"tra", "inc"}
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 40}, {Min: 0, Max: 20}}
	spec.Sequence = []SeqSpec{{Length: 10, Stride: 1}, {Length: 5, Stride: 1}}

	windows, err := BuildIndex(spec, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	var tra, inc int
	for _, w := range windows {
		switch {
		case strings.Contains(w.Dir, "tra_ext"):
			tra++
			if w.SeqLen() != 10 || w.MaxFrame != 40 {
				t.Fatalf("tra window got seqLen %d max %d, want 10/40", w.SeqLen(), w.MaxFrame)
			}
		case strings.Contains(w.Dir, "inc_ext"):
			inc++
			if w.SeqLen() != 5 || w.MaxFrame != 20 {
				t.Fatalf("inc window got seqLen %d max %d, want 5/20", w.SeqLen(), w.MaxFrame)
			}
		}
	}
	if tra != 4 || inc != 4 {
		t.Fatalf("got %d tra and %d inc windows, want 4 and 4", tra, inc)
	}
}

func TestBuildIndexUnresolvableCategory(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "other_ext", index: 0, frames: 10})

	// exclude mode keeps folders that match no filter_top entry, which
	// cannot be resolved to a per-category filter index
	spec := baseSpec(root)
	spec.FilterTop = []string{"tra", "inc"}
	spec.ExcludeFilterTop = true
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 10}, {Min: 0, Max: 10}}

	_, err := BuildIndex(spec, nil)
	if err == nil || !strings.Contains(err.Error(), "matches no filter_top entry") {
		t.Fatalf("got %v, want unresolvable-category error", err)
	}
}

func TestBuildIndexSimFilter(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		writeSimDir(t, root, simConfig{category: "tra_ext", index: i, frames: 10})
	}
	spec := baseSpec(root)
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 10}}

	cases := []struct {
		name    string
		filter  SimFilter
		exclude bool
		want    []int
	}{
		{"range", SimFilter{Range: &FrameRange{Min: 0, Max: 2}}, false, []int{0, 1}},
		{"set", SimFilter{Set: []int{2}}, false, []int{2}},
		{"exclude set", SimFilter{Set: []int{1}}, true, []int{0, 2}},
	}
	for _, tc := range cases {
		spec.FilterSim = []SimFilter{tc.filter}
		spec.ExcludeFilterSim = tc.exclude
		windows, err := BuildIndex(spec, nil)
		if err != nil {
			t.Fatalf("%s: BuildIndex: %v", tc.name, err)
		}
		if len(windows) != len(tc.want) {
			t.Fatalf("%s: got %d windows, want %d", tc.name, len(windows), len(tc.want))
		}
		for i, w := range windows {
			num, err := simNumber(filepath.Base(w.Dir))
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			if num != tc.want[i] {
				t.Fatalf("%s: window %d from sim %d, want %d", tc.name, i, num, tc.want[i])
			}
		}
	}
}

func TestBuildIndexMissingFrameFile(t *testing.T) {
	root := t.TempDir()
	dir := writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 10})
	if err := os.Remove(filepath.Join(dir, FieldVelocity.FileName(5))); err != nil {
		t.Fatalf("removing frame: %v", err)
	}

	spec := baseSpec(root)
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 10}}
	_, err := BuildIndex(spec, nil)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("got %v, want missing-frame error", err)
	}
}

func TestBuildIndexSkipsPlainFiles(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 10})
	for _, p := range []string{
		filepath.Join(root, "notes.txt"),
		filepath.Join(root, "tra_ext", "README"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}

	spec := baseSpec(root)
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 10}}
	windows, err := BuildIndex(spec, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
}

func TestBuildIndexObserver(t *testing.T) {
	root := t.TempDir()
	writeSimDir(t, root, simConfig{category: "tra_ext", index: 0, frames: 20})

	spec := baseSpec(root)
	spec.FilterFrame = []FrameRange{{Min: 0, Max: 20}}

	counts := map[Verbosity]int{}
	_, err := BuildIndex(spec, func(level Verbosity, msg string) { counts[level]++ })
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if counts[VerbosityTop] != 1 || counts[VerbositySim] != 1 || counts[VerbosityFull] != 2 {
		t.Fatalf("got observer counts %v, want 1 top, 1 sim, 2 full", counts)
	}
}

func TestSpecValidate(t *testing.T) {
	valid := baseSpec(t.TempDir())
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"no data dirs", func(s *Spec) { s.DataDirs = nil }},
		{"no frame filter", func(s *Spec) { s.FilterFrame = nil }},
		{"no sequence", func(s *Spec) { s.Sequence = nil }},
		{"zero-length sequence", func(s *Spec) { s.Sequence = []SeqSpec{{Length: 0, Stride: 1}} }},
		{"zero stride", func(s *Spec) { s.Sequence = []SeqSpec{{Length: 5, Stride: 0}} }},
		{"empty frame range", func(s *Spec) { s.FilterFrame = []FrameRange{{Min: 10, Max: 10}} }},
		{"per-category length mismatch", func(s *Spec) {
			s.FilterFrame = []FrameRange{{Min: 0, Max: 10}, {Min: 0, Max: 10}}
		}},
		{"drag as channel", func(s *Spec) { s.SimParams = []Param{ParamDrag} }},
		{"zslice mixed with rey", func(s *Spec) { s.SimParams = []Param{ParamZSlice, ParamReynolds} }},
	}
	for _, tc := range cases {
		spec := valid
		tc.mutate(&spec)
		if err := spec.Validate(); err == nil {
			t.Fatalf("%s: validation passed, want error", tc.name)
		}
	}
}

func TestWindowProvenance(t *testing.T) {
	w := Window{Dir: "data/tra_ext/sim_000000", Start: 30, End: 60, Stride: 3}
	got := w.provenance([]Field{FieldVelocity, FieldDensity})
	want := "data/tra_ext/sim_000000/velocity-density_000030-000057(003).npz"
	if got != want {
		t.Fatalf("provenance = %q, want %q", got, want)
	}
}
