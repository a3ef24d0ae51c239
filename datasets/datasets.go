// Package datasets loads spatio-temporal turbulence simulation data from
// nested directory trees and assembles it into fixed-length training
// sequences.
//
// The on-disk layout consumed here is
//
//	<dataDir>/<category>/<sim_NNNNNN>/<field>_<FFFFFF>.npz
//	<dataDir>/<category>/<sim_NNNNNN>/obstacle_mask.npz      (optional)
//	<dataDir>/<category>/<sim_NNNNNN>/src/description.json
//
// Datasets use lazy loading: the directory tree is walked and validated
// once at construction, producing an immutable ordered list of frame
// windows that defines the dataset's length and addressing; the arrays
// themselves are only read when a sample is accessed, and are recomputed
// from disk on every access.
//
// Notes on gomlx tensors:
//   - Samples carry contiguous float32 buffers along with shape metadata
//     (Grid). Conversion into gomlx tensors is a small, well-defined final
//     step (Grid.Tensor, or Yield for whole batches), keeping the loading
//     and normalization paths independent of the tensor backend.
package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Dataset is the access contract shared by training loops and the rollout
// driver.
type Dataset interface {
	Len() int
	Get(i int) (Sample, error)
	Shuffle(seed int64)

	// To implement gomlx's train.Dataset interface
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
}
