// Package rollout drives an autoregressive generative model over full
// turbulence sequences and scores the result against ground truth.
//
// A rollout starts teacher-forced: the first InputSteps frames of the
// prediction buffer are copied from ground truth and the model is never
// invoked for them. Every later frame is predicted from a sliding window of
// the driver's own prior outputs, one model invocation per timestep. The
// time dependency is hard: step i cannot begin before step i-1's prediction
// is committed to the buffer.
package rollout

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/kolFlow/datasets"
)

// Model is the single-step generative model boundary. Conditioning stacks
// the most recent InputSteps prediction frames along the channel axis,
// shape (InputSteps*C, spatial...); data is the immediately preceding
// prediction frame, shape (C, spatial...). The result must be one predicted
// frame of the same shape as data.
type Model interface {
	Predict(conditioning, data *tensors.Tensor) (*tensors.Tensor, error)
}

// Driver rolls a model out over full sequences.
type Driver struct {
	Model      Model
	InputSteps int
}

// Rollout runs the driver over one ground-truth sequence of shape
// (time, channel, spatial...). The returned prediction buffer has the same
// shape; positions before InputSteps are bit-identical ground truth, later
// positions are produced purely from the buffer's own prior entries.
func (d *Driver) Rollout(seq datasets.Grid) (datasets.Grid, error) {
	if d.Model == nil {
		return datasets.Grid{}, fmt.Errorf("rollout: no model configured")
	}
	if seq.Rank() < 3 {
		return datasets.Grid{}, fmt.Errorf("rollout: sequence must be (time, channel, spatial...), got shape %v", seq.Shape)
	}
	steps := seq.Shape[0]
	if d.InputSteps < 1 || d.InputSteps > steps {
		return datasets.Grid{}, fmt.Errorf("rollout: input steps %d outside [1, %d]", d.InputSteps, steps)
	}

	frameShape := seq.Shape[1:]
	frame := seq.Size() / steps
	pred := datasets.Grid{
		Data:  make([]float32, len(seq.Data)),
		Shape: append([]int(nil), seq.Shape...),
	}

	// warm-up: teacher-forced copies
	copy(pred.Data[:d.InputSteps*frame], seq.Data[:d.InputSteps*frame])

	condShape := append([]int{d.InputSteps * frameShape[0]}, frameShape[1:]...)
	for i := d.InputSteps; i < steps; i++ {
		cond := make([]float32, 0, d.InputSteps*frame)
		for j := d.InputSteps; j > 0; j-- {
			cond = append(cond, pred.Data[(i-j)*frame:(i-j+1)*frame]...)
		}
		condT := tensors.FromFlatDataAndDimensions(cond, condShape...)
		prevT := tensors.FromFlatDataAndDimensions(pred.Data[(i-1)*frame:i*frame], frameShape...)

		next, err := d.Model.Predict(condT, prevT)
		if err != nil {
			return datasets.Grid{}, fmt.Errorf("rollout step %d: %w", i, err)
		}
		got := tensors.CopyFlatData[float32](next)
		if len(got) != frame {
			return datasets.Grid{}, fmt.Errorf("rollout step %d: model returned %d values, want %d", i, len(got), frame)
		}
		copy(pred.Data[i*frame:], got)
	}
	return pred, nil
}

// Persistence is a trivial baseline model that repeats the previous frame.
// It lets the validation pipeline run end to end without an external
// generative model attached.
type Persistence struct{}

// Predict returns data unchanged.
func (Persistence) Predict(_, data *tensors.Tensor) (*tensors.Tensor, error) {
	return data, nil
}
