// Package checkpoint reads and writes named-tensor checkpoint files.
//
// A checkpoint is a versioned gob file holding a mapping from tensor names
// to shaped float32 buffers. Loading a model state requires at least the
// decoder entry (DecoderStateKey); everything else is opaque to this
// package.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// formatVersion is incremented when the on-disk layout changes.
const formatVersion = 1

// DecoderStateKey names the mandatory decoder entry of a model checkpoint.
const DecoderStateKey = "stateDictDecoder"

// Entry is one named tensor: a shape and the flat row-major values filling
// it.
type Entry struct {
	Dims []int
	Data []float32
}

// File is a decoded checkpoint.
type File struct {
	Version int
	Tensors map[string]Entry
}

// Save writes the named tensors to path.
func Save(path string, entries map[string]Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating checkpoint %s: %w", path, err)
	}
	if err := gob.NewEncoder(f).Encode(File{Version: formatVersion, Tensors: entries}); err != nil {
		f.Close()
		return fmt.Errorf("encoding checkpoint %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a checkpoint and verifies its format version and the presence
// of the decoder state.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint %s: %w", path, err)
	}
	defer f.Close()

	var ck File
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}
	if ck.Version != formatVersion {
		return nil, fmt.Errorf("checkpoint %s: format version %d, want %d", path, ck.Version, formatVersion)
	}
	if _, ok := ck.Tensors[DecoderStateKey]; !ok {
		return nil, fmt.Errorf("checkpoint %s: missing %q entry", path, DecoderStateKey)
	}
	return &ck, nil
}

// Tensor converts the named entry into a gomlx tensor.
func (f *File) Tensor(name string) (*tensors.Tensor, error) {
	e, ok := f.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("checkpoint has no tensor %q", name)
	}
	n := 1
	for _, d := range e.Dims {
		n *= d
	}
	if n != len(e.Data) {
		return nil, fmt.Errorf("tensor %q: %d values do not fill shape %v", name, len(e.Data), e.Dims)
	}
	return tensors.FromFlatDataAndDimensions(e.Data, e.Dims...), nil
}
