// Command validate runs autoregressive rollout validation over a turbulence
// dataset: it seeds the prediction buffer with ground-truth warm-up steps,
// rolls the model out over each requested sequence, and reports per-timestep
// and aggregate MSE/MAE alongside diagnostic plots.
//
// Usage:
//
//	validate -config config.yaml [-checkpoint model.ckpt] [-out output]
//
// Without an external model binding the persistence baseline is used, which
// exercises the full pipeline (dataset, normalization, rollout, metrics,
// plots) end to end.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/kolFlow/checkpoint"
	"github.com/Noofbiz/kolFlow/datasets"
	"github.com/Noofbiz/kolFlow/rollout"
)

type rolloutConfig struct {
	InputSteps int `yaml:"input_steps"`
	Sequences  int `yaml:"sequences"`
	Channel    int `yaml:"channel"`
}

type config struct {
	Dataset datasets.Spec `yaml:"dataset"`

	// Normalization selects the dataset statistics: "tra-mixed" or "raw".
	Normalization string `yaml:"normalization"`

	Rollout rolloutConfig `yaml:"rollout"`
}

func loadConfig(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Normalization == "" {
		cfg.Normalization = "tra-mixed"
	}
	if cfg.Rollout.InputSteps == 0 {
		cfg.Rollout.InputSteps = 2
	}
	if cfg.Rollout.Sequences == 0 {
		cfg.Rollout.Sequences = 1
	}
	return &cfg, nil
}

func main() {
	var (
		configPath     = flag.String("config", "config.yaml", "path to the YAML validation config")
		checkpointPath = flag.String("checkpoint", "", "optional model checkpoint to load")
		outDir         = flag.String("out", "output", "directory for plots")
		sequences      = flag.Int("sequences", 0, "number of sequences to validate (overrides config)")
		inputSteps     = flag.Int("input-steps", 0, "warm-up steps copied from ground truth (overrides config)")
		channel        = flag.Int("channel", -1, "channel used for metrics and plots (overrides config)")
		plots          = flag.Bool("plots", true, "write diagnostic plots")
		workers        = flag.Int("workers", 0, "prefetch workers (0 = NumCPU)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *sequences > 0 {
		cfg.Rollout.Sequences = *sequences
	}
	if *inputSteps > 0 {
		cfg.Rollout.InputSteps = *inputSteps
	}
	if *channel >= 0 {
		cfg.Rollout.Channel = *channel
	}

	var (
		transform *datasets.DataTransforms
		opts      []datasets.Option
	)
	switch cfg.Normalization {
	case "tra-mixed":
		transform = datasets.NewDataTransforms(cfg.Dataset, datasets.TraMixedStats())
		opts = append(opts, datasets.WithTransform(transform))
	case "raw":
		opts = append(opts, datasets.WithRawSamples())
	default:
		log.Fatalf("config: unknown normalization %q", cfg.Normalization)
	}

	ds, err := datasets.NewTurbulenceDataset(cfg.Dataset, opts...)
	if err != nil {
		log.Fatalf("dataset: %v", err)
	}
	fmt.Print(cfg.Dataset.FilterInfo())
	fmt.Printf("Dataset Length: %d\n", ds.Len())
	if ds.Len() == 0 {
		log.Fatal("dataset is empty; nothing to validate")
	}

	if *checkpointPath != "" {
		ck, err := checkpoint.Load(*checkpointPath)
		if err != nil {
			log.Fatalf("checkpoint: %v", err)
		}
		log.Printf("checkpoint loaded: %d named tensors, decoder state present", len(ck.Tensors))
	}

	driver := &rollout.Driver{Model: rollout.Persistence{}, InputSteps: cfg.Rollout.InputSteps}

	n := cfg.Rollout.Sequences
	if n > ds.Len() {
		n = ds.Len()
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	log.Printf("starting rollout over %d sequences (input steps: %d)", n, cfg.Rollout.InputSteps)

	var (
		sumMSE, sumMAE []float64
		firstGT        datasets.Grid
		firstPred      datasets.Grid
	)
	for item := range datasets.Prefetch(ds, indices, *workers) {
		if item.Err != nil {
			log.Fatalf("loading sequence %d: %v", item.Index, item.Err)
		}
		sample := item.Sample

		pred, err := driver.Rollout(sample.Data)
		if err != nil {
			log.Fatalf("sequence %d: %v", item.Index, err)
		}

		gtGrid := sample.Data
		predGrid := pred
		if transform != nil {
			// score in physical units
			gtRaw, err := transform.Invert(sample)
			if err != nil {
				log.Fatalf("sequence %d: undoing normalization: %v", item.Index, err)
			}
			predRaw, err := transform.Invert(datasets.Sample{Data: pred})
			if err != nil {
				log.Fatalf("sequence %d: undoing normalization: %v", item.Index, err)
			}
			gtGrid, predGrid = gtRaw.Data, predRaw.Data
		}

		mse, mae, err := rollout.TimestepErrors(gtGrid, predGrid, cfg.Rollout.Channel)
		if err != nil {
			log.Fatalf("sequence %d: %v", item.Index, err)
		}
		if sumMSE == nil {
			sumMSE = make([]float64, len(mse))
			sumMAE = make([]float64, len(mae))
			firstGT, firstPred = gtGrid, predGrid
		}
		for t := range mse {
			sumMSE[t] += mse[t]
			sumMAE[t] += mae[t]
		}
		log.Printf("sequence %d finished (%s)", item.Index, sample.Path)
	}

	for t := range sumMSE {
		sumMSE[t] /= float64(n)
		sumMAE[t] /= float64(n)
		fmt.Printf("t=%03d  mse=%.6e  mae=%.6e\n", t, sumMSE[t], sumMAE[t])
	}
	aggMSE, aggMAE := rollout.AggregateErrors(sumMSE, sumMAE)
	fmt.Printf("rollout  mse=%.6e  mae=%.6e\n", aggMSE, aggMAE)

	if !*plots {
		return
	}
	if err := writePlots(*outDir, firstGT, firstPred, sumMSE, sumMAE, cfg.Rollout.Channel); err != nil {
		log.Fatalf("plots: %v", err)
	}
	log.Printf("plots written to %s", *outDir)
}

// writePlots emits the error curves, the spectrum overlay of the final
// timestep, and ground-truth/prediction heat maps at the start, middle and
// end of the first validated sequence.
func writePlots(dir string, gt, pred datasets.Grid, mse, mae []float64, channel int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := rollout.PlotErrorCurves(mse, mae, filepath.Join(dir, "errors.png")); err != nil {
		return err
	}

	if gt.Rank() != 4 {
		// spectrum and heat maps are 2-D diagnostics
		return nil
	}
	last := gt.Shape[0] - 1
	gtSpec, err := rollout.FrameSpectrum(gt, last, channel)
	if err != nil {
		return err
	}
	predSpec, err := rollout.FrameSpectrum(pred, last, channel)
	if err != nil {
		return err
	}
	if err := rollout.PlotSpectra(gtSpec, predSpec, filepath.Join(dir, "spectrum.png")); err != nil {
		return err
	}

	for _, t := range []int{0, last / 2, last} {
		name := fmt.Sprintf("gt_t%03d.png", t)
		if err := rollout.PlotFieldHeatMap(gt, t, channel, fmt.Sprintf("ground truth, t=%d", t), filepath.Join(dir, name)); err != nil {
			return err
		}
		name = fmt.Sprintf("pred_t%03d.png", t)
		if err := rollout.PlotFieldHeatMap(pred, t, channel, fmt.Sprintf("prediction, t=%d", t), filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
