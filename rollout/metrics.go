package rollout

import (
	"fmt"
	"math"

	"github.com/Noofbiz/kolFlow/datasets"
)

// TimestepErrors computes per-timestep MSE and MAE between ground truth and
// prediction over a single channel of a (time, channel, spatial...)
// sequence pair.
func TimestepErrors(gt, pred datasets.Grid, channel int) (mse, mae []float64, err error) {
	if !shapesEqual(gt.Shape, pred.Shape) {
		return nil, nil, fmt.Errorf("shape mismatch: ground truth %v vs prediction %v", gt.Shape, pred.Shape)
	}
	if gt.Rank() < 3 {
		return nil, nil, fmt.Errorf("sequences must be (time, channel, spatial...), got shape %v", gt.Shape)
	}
	steps, channels := gt.Shape[0], gt.Shape[1]
	if channel < 0 || channel >= channels {
		return nil, nil, fmt.Errorf("channel %d out of range [0, %d)", channel, channels)
	}
	block := gt.Size() / (steps * channels)

	mse = make([]float64, steps)
	mae = make([]float64, steps)
	for t := 0; t < steps; t++ {
		base := (t*channels + channel) * block
		var sumSq, sumAbs float64
		for k := 0; k < block; k++ {
			d := float64(pred.Data[base+k]) - float64(gt.Data[base+k])
			sumSq += d * d
			sumAbs += math.Abs(d)
		}
		mse[t] = sumSq / float64(block)
		mae[t] = sumAbs / float64(block)
	}
	return mse, mae, nil
}

// AggregateErrors averages per-timestep errors over the whole sequence.
func AggregateErrors(mse, mae []float64) (float64, float64) {
	if len(mse) == 0 {
		return 0, 0
	}
	var sumSq, sumAbs float64
	for i := range mse {
		sumSq += mse[i]
		sumAbs += mae[i]
	}
	return sumSq / float64(len(mse)), sumAbs / float64(len(mae))
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
