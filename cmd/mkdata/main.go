// Command mkdata writes a small synthetic turbulence dataset in the on-disk
// layout the datasets package expects: category-prefixed simulation
// directories with per-frame npz files, a src/description.json holding the
// simulation parameters, and an optional obstacle mask.
//
// The fields are smooth trigonometric patterns that advance with the frame
// number, so rollouts over the generated data remain visually interpretable.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Noofbiz/kolFlow/datasets"
)

func main() {
	var (
		outDir     = flag.String("out", "data", "output directory")
		categories = flag.String("categories", "tra", "comma separated category prefixes")
		sims       = flag.Int("sims", 2, "simulations per category")
		frames     = flag.Int("frames", 100, "frames per simulation")
		height     = flag.Int("height", 32, "grid height")
		width      = flag.Int("width", 32, "grid width")
		scalars    = flag.String("fields", "dens,pres", "scalar fields to write in addition to velocity")
		mask       = flag.Bool("mask", false, "write an obstacle mask per simulation")
	)
	flag.Parse()

	fields := []datasets.Field{datasets.FieldVelocity}
	for _, name := range strings.Split(*scalars, ",") {
		switch strings.TrimSpace(name) {
		case "dens":
			fields = append(fields, datasets.FieldDensity)
		case "pres":
			fields = append(fields, datasets.FieldPressure)
		case "":
		default:
			log.Fatalf("unknown field %q", name)
		}
	}

	var cats []string
	for _, category := range strings.Split(*categories, ",") {
		if category = strings.TrimSpace(category); category != "" {
			cats = append(cats, category)
		}
	}
	if err := generate(*outDir, cats, *sims, *frames, *height, *width, fields, *mask); err != nil {
		log.Fatal(err)
	}
}

// generate writes <out>/<category>/sim_NNNNNN/ trees, the layout the
// datasets package indexes.
func generate(outDir string, categories []string, sims, frames, h, w int, fields []datasets.Field, mask bool) error {
	for _, category := range categories {
		for s := 0; s < sims; s++ {
			dir := filepath.Join(outDir, category, fmt.Sprintf("sim_%06d", s))
			if err := writeSim(dir, s, frames, h, w, fields, mask); err != nil {
				return fmt.Errorf("writing %s: %w", dir, err)
			}
			log.Printf("wrote %s (%d frames)", dir, frames)
		}
	}
	return nil
}

func writeSim(dir string, sim, frames, h, w int, fields []datasets.Field, mask bool) error {
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		return err
	}

	desc := map[string]any{
		"Reynolds Number": 10000.0,
		"Mach Number":     0.5 + 0.1*float64(sim%3),
	}
	raw, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "description.json"), raw, 0o644); err != nil {
		return err
	}

	for frame := 0; frame < frames; frame++ {
		for _, field := range fields {
			g := frameGrid(field, sim, frame, h, w)
			path := filepath.Join(dir, field.FileName(frame))
			if err := datasets.WriteNPZ(path, g); err != nil {
				return err
			}
		}
	}

	if mask {
		m := obstacleMask(h, w)
		if err := datasets.WriteNPZ(filepath.Join(dir, "obstacle_mask.npz"), m); err != nil {
			return err
		}
	}
	return nil
}

// frameGrid builds one frame of a field as a phase-shifted standing wave.
// The simulation index perturbs the phase so different sims are not
// identical, and the frame number advances the pattern in time.
func frameGrid(field datasets.Field, sim, frame, h, w int) datasets.Grid {
	channels := 1
	if field == datasets.FieldVelocity {
		channels = 2
	}
	g := datasets.Grid{
		Data:  make([]float32, channels*h*w),
		Shape: []int{channels, h, w},
	}
	phase := 0.3*float64(sim) + 0.05*float64(frame)
	for c := 0; c < channels; c++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				fx := 2 * math.Pi * float64(x) / float64(w)
				fy := 2 * math.Pi * float64(y) / float64(h)
				var v float64
				switch {
				case field == datasets.FieldVelocity && c == 0:
					v = math.Sin(fx + phase)
				case field == datasets.FieldVelocity:
					v = math.Cos(fy - phase)
				case field == datasets.FieldDensity:
					v = 1 + 0.1*math.Sin(fx+fy+phase)
				default: // pressure
					v = 0.7 + 0.2*math.Cos(fx-fy+phase)
				}
				g.Data[(c*h+y)*w+x] = float32(v)
			}
		}
	}
	return g
}

// obstacleMask marks a centered disc covering a quarter of the domain.
func obstacleMask(h, w int) datasets.Grid {
	g := datasets.Grid{
		Data:  make([]float32, h*w),
		Shape: []int{1, h, w},
	}
	cy, cx := float64(h)/2, float64(w)/2
	r := float64(min(h, w)) / 4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if math.Hypot(float64(y)-cy, float64(x)-cx) <= r {
				g.Data[y*w+x] = 1
			}
		}
	}
	return g
}
