package datasets

import "runtime"

// IndexedSample pairs a loaded sample with the index it was loaded for.
type IndexedSample struct {
	Index  int
	Sample Sample
	Err    error
}

// Prefetch loads the given indices with a pool of workers and delivers them
// on the returned channel in index order. The dataset itself stays
// sequential; every access is independently idempotent (samples are
// recomputed from disk), so disjoint indices can load concurrently without
// coordination. workers <= 0 uses one worker per CPU.
func Prefetch(ds Dataset, indices []int, workers int) <-chan IndexedSample {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(indices) {
		workers = len(indices)
	}

	// one buffered slot per position keeps delivery ordered while workers
	// finish out of order
	slots := make([]chan IndexedSample, len(indices))
	for i := range slots {
		slots[i] = make(chan IndexedSample, 1)
	}

	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		go func() {
			for pos := range jobs {
				s, err := ds.Get(indices[pos])
				slots[pos] <- IndexedSample{Index: indices[pos], Sample: s, Err: err}
			}
		}()
	}
	go func() {
		for pos := range slots {
			jobs <- pos
		}
		close(jobs)
	}()

	out := make(chan IndexedSample)
	go func() {
		defer close(out)
		for _, slot := range slots {
			out <- <-slot
		}
	}()
	return out
}
