package datasets

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// TurbulenceDataset indexes nested simulation directories once at
// construction time and loads samples lazily from disk on every access.
// The window list built by the constructor is immutable and defines the
// dataset's length and addressing; accesses share no mutable state beyond
// the shuffle order, so disjoint indices may be read concurrently.
type TurbulenceDataset struct {
	// BatchSize used by Yield.
	BatchSize int

	spec      Spec
	transform *DataTransforms
	raw       bool
	obs       Observer
	seed      int64

	windows   []Window
	order     []int
	rng       *rand.Rand
	offsetSeq atomic.Int64
	cursor    int
}

// Option configures a TurbulenceDataset at construction.
type Option func(*TurbulenceDataset)

// WithTransform sets the normalization transform applied to every sample.
func WithTransform(t *DataTransforms) Option {
	return func(d *TurbulenceDataset) { d.transform = t }
}

// WithRawSamples opts out of normalization explicitly. Construction fails
// when neither this nor WithTransform is given: forgetting normalization is
// an easy silent mistake, so its absence has to be a stated decision.
func WithRawSamples() Option {
	return func(d *TurbulenceDataset) { d.raw = true }
}

// WithObserver routes index-time diagnostics to obs instead of the standard
// logger. Messages arrive tagged with their verbosity level regardless of
// the spec's verbosity setting; filtering is the observer's call.
func WithObserver(obs Observer) Option {
	return func(d *TurbulenceDataset) { d.obs = obs }
}

// WithSeed fixes the random source used for shuffling and randomized
// temporal offsets.
func WithSeed(seed int64) Option {
	return func(d *TurbulenceDataset) { d.seed = seed }
}

// NewTurbulenceDataset validates the spec, runs the index pass and returns
// a dataset addressing the resulting windows in order.
func NewTurbulenceDataset(spec Spec, opts ...Option) (*TurbulenceDataset, error) {
	d := &TurbulenceDataset{BatchSize: 1, spec: spec}
	for _, o := range opts {
		o(d)
	}
	if d.transform != nil && d.raw {
		return nil, fmt.Errorf("dataset %s: WithTransform and WithRawSamples are mutually exclusive", spec.Name)
	}
	if d.transform == nil && !d.raw {
		return nil, fmt.Errorf("dataset %s: no normalization transform configured; pass WithTransform or opt out with WithRawSamples", spec.Name)
	}
	if d.raw {
		log.Printf("WARNING: dataset %s serves raw, un-normalized samples", spec.Name)
	}

	obs := d.obs
	if obs == nil {
		obs = func(level Verbosity, msg string) {
			if level <= spec.Verbosity {
				log.Print(msg)
			}
		}
	}
	windows, err := BuildIndex(spec, obs)
	if err != nil {
		return nil, err
	}
	d.windows = windows
	d.order = make([]int, len(windows))
	for i := range d.order {
		d.order[i] = i
	}
	if d.seed == 0 {
		d.seed = time.Now().UnixNano()
	}
	d.rng = rand.New(rand.NewSource(d.seed))
	return d, nil
}

// Name returns the dataset name from its spec.
func (d *TurbulenceDataset) Name() string { return d.spec.Name }

// Len returns the number of addressable sequences.
func (d *TurbulenceDataset) Len() int { return len(d.windows) }

// Windows returns a copy of the immutable window list.
func (d *TurbulenceDataset) Windows() []Window {
	return append([]Window(nil), d.windows...)
}

// Get loads, assembles and (unless raw samples were requested) normalizes
// the sample at index i. Samples are recomputed from disk on every call;
// nothing is cached across accesses.
func (d *TurbulenceDataset) Get(i int) (Sample, error) {
	if i < 0 || i >= len(d.order) {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", i, len(d.order))
	}
	w := d.windows[d.order[i]]
	var rng *rand.Rand
	if d.spec.RandSeqOffset {
		// each access draws from its own source, derived from the base seed
		// and an atomic counter, so concurrent loads never share rand state
		rng = rand.New(rand.NewSource(d.seed + d.offsetSeq.Add(1)))
	}
	s, err := loadSample(w, d.spec.Fields(), d.spec.Params(), rng)
	if err != nil {
		return Sample{}, err
	}
	if d.transform != nil {
		return d.transform.Apply(s)
	}
	return s, nil
}

// Shuffle reorders the addressable indices.
func (d *TurbulenceDataset) Shuffle(seed int64) {
	d.rng.Seed(seed)
	d.rng.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
}

// Yield returns the next BatchSize sequences as a single
// (batch, time, channel, spatial...) tensor, for the gomlx Dataset
// interface. Ground truth serves as both input and label. Returns io.EOF
// once the dataset is exhausted; call Restart for a new epoch.
func (d *TurbulenceDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= len(d.order) {
		return nil, nil, nil, io.EOF
	}
	n := d.BatchSize
	if n <= 0 {
		n = 1
	}

	var (
		batch []float32
		shape []int
		count int
	)
	for ; count < n && d.cursor < len(d.order); count++ {
		s, err := d.Get(d.cursor)
		if err != nil {
			return nil, nil, nil, err
		}
		if shape == nil {
			shape = s.Data.Shape
		} else if !sameShape(shape, s.Data.Shape) {
			return nil, nil, nil, fmt.Errorf("inconsistent sample shapes in batch: %v vs %v", shape, s.Data.Shape)
		}
		batch = append(batch, s.Data.Data...)
		d.cursor++
	}
	dims := append([]int{count}, shape...)
	t := tensors.FromFlatDataAndDimensions(batch, dims...)
	return nil, []*tensors.Tensor{t}, []*tensors.Tensor{t}, nil
}

// Restart resets the batch cursor for a new epoch.
func (d *TurbulenceDataset) Restart() error {
	d.cursor = 0
	return nil
}
