package datasets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// simConfig describes one synthetic simulation directory written for tests.
type simConfig struct {
	category string
	index    int
	frames   int
	fields   []Field
	desc     map[string]any
	mask     bool
	depth    int // 0 writes planar 2x2 frames, >0 volumetric 2x2xdepth
}

// writeSimDir builds <root>/<category>/sim_<index>/ with frame files,
// src/description.json and optionally an obstacle mask. Returns the
// simulation directory.
func writeSimDir(t *testing.T, root string, cfg simConfig) string {
	t.Helper()
	dir := filepath.Join(root, cfg.category, fmt.Sprintf("sim_%06d", cfg.index))
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("creating sim dir: %v", err)
	}

	desc := cfg.desc
	if desc == nil {
		desc = map[string]any{"Reynolds Number": 10000.0, "Mach Number": 0.7}
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("marshaling description: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "description.json"), raw, 0o644); err != nil {
		t.Fatalf("writing description: %v", err)
	}

	fields := cfg.fields
	if fields == nil {
		fields = []Field{FieldVelocity}
	}
	for frame := 0; frame < cfg.frames; frame++ {
		for _, field := range fields {
			path := filepath.Join(dir, field.FileName(frame))
			if err := WriteNPZ(path, testFrame(field, frame, cfg.depth)); err != nil {
				t.Fatalf("writing %s: %v", path, err)
			}
		}
	}

	if cfg.mask {
		mask := Grid{Data: []float32{1, 0, 0, 1}, Shape: []int{1, 2, 2}}
		if err := WriteNPZ(filepath.Join(dir, "obstacle_mask.npz"), mask); err != nil {
			t.Fatalf("writing obstacle mask: %v", err)
		}
	}
	return dir
}

// testFrame builds a tiny 2x2 frame (2x2xdepth when depth > 0) whose values
// encode frame, field, channel and spatial position, so layout mistakes show
// up as wrong values. Velocity has two channels, density and pressure one.
func testFrame(field Field, frame, depth int) Grid {
	channels := 1
	if field == FieldVelocity {
		channels = 2
	}
	shape := []int{channels, 2, 2}
	size := 4
	if depth > 0 {
		shape = append(shape, depth)
		size *= depth
	}
	g := Grid{
		Data:  make([]float32, channels*size),
		Shape: shape,
	}
	for c := 0; c < channels; c++ {
		for k := 0; k < size; k++ {
			g.Data[c*size+k] = frameValue(field, frame, c, k)
		}
	}
	return g
}

// frameValue is the expected value of spatial position k of channel c of a
// field at a frame.
func frameValue(field Field, frame, c, k int) float32 {
	return float32(1000*frame + 100*int(field) + 10*c + k)
}

// frameOf recovers the frame number a value was generated for.
func frameOf(v float32) int { return int(v) / 1000 }

// baseSpec is a minimal valid spec over root: one category prefix, frames
// [0, 100), windows of 10 frames at stride 1, velocity only.
func baseSpec(root string) Spec {
	return Spec{
		Name:        "test",
		DataDirs:    []string{root},
		FilterTop:   []string{"tra"},
		FilterFrame: []FrameRange{{Min: 0, Max: 100}},
		Sequence:    []SeqSpec{{Length: 10, Stride: 1}},
	}
}
