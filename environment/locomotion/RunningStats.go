package locomotion

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RunningAveragedWindow keeps a windowed mean over the last windowSize
// vector samples fed to Update. It is the accumulator behind the mean
// ground-reaction-force observation channel: SimulationPostStep feeds
// it once per environment step, and the next observation read consumes
// the mean.
type RunningAveragedWindow struct {
	dim        int
	windowSize int

	samples [][]float64
	next    int
	count   int
}

// NewRunningAveragedWindow returns a windowed mean over vectors of
// length dim with a window of windowSize samples
func NewRunningAveragedWindow(dim, windowSize int) *RunningAveragedWindow {
	if windowSize < 1 {
		panic(fmt.Sprintf("newRunningAveragedWindow: window size must be "+
			"positive, got %v", windowSize))
	}
	return &RunningAveragedWindow{
		dim:        dim,
		windowSize: windowSize,
		samples:    make([][]float64, windowSize),
	}
}

// Update feeds one sample into the window, evicting the oldest sample
// once the window is full
func (w *RunningAveragedWindow) Update(sample []float64) {
	if len(sample) != w.dim {
		panic(fmt.Sprintf("update: invalid sample length \n\thave(%v) "+
			"\n\twant(%v)", len(sample), w.dim))
	}
	w.samples[w.next] = append([]float64(nil), sample...)
	w.next = (w.next + 1) % w.windowSize
	if w.count < w.windowSize {
		w.count++
	}
}

// Mean returns the mean of the samples currently in the window. Before
// the first Update the mean is the zero vector.
func (w *RunningAveragedWindow) Mean() *mat.VecDense {
	mean := make([]float64, w.dim)
	if w.count == 0 {
		return mat.NewVecDense(w.dim, mean)
	}
	for _, s := range w.samples {
		if s == nil {
			continue
		}
		for i, v := range s {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(w.count)
	}
	return mat.NewVecDense(w.dim, mean)
}

// Reset empties the window
func (w *RunningAveragedWindow) Reset() {
	for i := range w.samples {
		w.samples[i] = nil
	}
	w.next = 0
	w.count = 0
}
