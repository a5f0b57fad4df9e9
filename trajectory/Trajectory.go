// Package trajectory implements storage and playback of reference
// locomotion trajectories. A trajectory store holds one or more
// trajectories of full state samples, resampled to the control
// frequency of the environment that owns the store, and materializes
// imitation datasets from them.
package trajectory

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/kiwi-sherbet/loco-mujoco/utils/floatutils"
	"github.com/kiwi-sherbet/loco-mujoco/utils/tensorutils"
)

// MapFunc transforms per-trajectory channel data (one row per state
// dimension, one column per sample) into a space where linear
// interpolation is valid, e.g. mapping rotation matrices to angles.
// RemapFunc is the corresponding backwards transformation.
type MapFunc func(channels [][]float64) [][]float64

// RemapFunc is the inverse of a MapFunc
type RemapFunc func(channels [][]float64) [][]float64

// Config bundles the parameters needed to construct a trajectory store
type Config struct {
	// Path to a gob file holding trajectory data, laid out as
	// trajectories x samples x state dimension. Ignored when Data is
	// set.
	Path string

	// Data holds in-memory trajectory data, trajectories x samples x
	// state dimension
	Data [][][]float64

	// Keys names each state dimension, in sample order
	Keys []string

	// Low and High bound each state dimension; samples are clipped to
	// these bounds on load
	Low, High mat.Vector

	// JointPosIdx lists the sample indices holding joint positions
	JointPosIdx []int

	// TrajectoryDT is the sampling period of the stored data and
	// ControlDT the control period of the owning environment. When
	// they differ, trajectories are linearly resampled to the control
	// period on load. Zero values disable resampling.
	TrajectoryDT, ControlDT float64

	// InterpolateMap and InterpolateRemap wrap the resampling step;
	// nil means identity
	InterpolateMap   MapFunc
	InterpolateRemap RemapFunc
}

// Trajectory is a store of reference trajectories with a playback
// cursor. It is not safe for concurrent use.
type Trajectory struct {
	data *tensor.Dense // trajectories x samples x dim

	keys        []string
	keyIdx      map[string]int
	jointPosIdx []int

	nTraj, length, dim int

	// playback cursor
	traj, step int
}

// New constructs a trajectory store from a Config
func New(c Config) (*Trajectory, error) {
	raw := c.Data
	if raw == nil {
		if c.Path == "" {
			return nil, fmt.Errorf("newTrajectory: no trajectory data: " +
				"set Path or Data")
		}
		loaded, err := LoadData(c.Path)
		if err != nil {
			return nil, fmt.Errorf("newTrajectory: %v", err)
		}
		raw = loaded
	}

	nTraj := len(raw)
	if nTraj == 0 || len(raw[0]) == 0 {
		return nil, fmt.Errorf("newTrajectory: empty trajectory data")
	}
	length := len(raw[0])
	dim := len(raw[0][0])
	for i := range raw {
		if len(raw[i]) != length {
			return nil, fmt.Errorf("newTrajectory: trajectory %v has %v "+
				"samples, want %v", i, len(raw[i]), length)
		}
	}
	if len(c.Keys) != dim {
		return nil, fmt.Errorf("newTrajectory: %v keys for state "+
			"dimension %v", len(c.Keys), dim)
	}

	if c.TrajectoryDT > 0 && c.ControlDT > 0 &&
		c.TrajectoryDT != c.ControlDT {
		raw = resample(raw, c.TrajectoryDT/c.ControlDT, c.InterpolateMap,
			c.InterpolateRemap)
		length = len(raw[0])
	}

	backing := make([]float64, 0, nTraj*length*dim)
	for i := range raw {
		for j := range raw[i] {
			sample := raw[i][j]
			if len(sample) != dim {
				return nil, fmt.Errorf("newTrajectory: ragged sample at "+
					"(%v, %v)", i, j)
			}
			for d, v := range sample {
				if c.Low != nil && c.High != nil {
					v = floatutils.Clip(v, c.Low.AtVec(d), c.High.AtVec(d))
				}
				backing = append(backing, v)
			}
		}
	}

	keyIdx := make(map[string]int, len(c.Keys))
	for i, k := range c.Keys {
		keyIdx[k] = i
	}

	return &Trajectory{
		data: tensor.New(tensor.WithShape(nTraj, length, dim),
			tensor.WithBacking(backing)),
		keys:        append([]string(nil), c.Keys...),
		keyIdx:      keyIdx,
		jointPosIdx: append([]int(nil), c.JointPosIdx...),
		nTraj:       nTraj,
		length:      length,
		dim:         dim,
	}, nil
}

// resample linearly interpolates every trajectory to factor times its
// original length, routing channel data through the map/remap hooks
func resample(raw [][][]float64, factor float64, mapFn MapFunc,
	remapFn RemapFunc) [][][]float64 {
	out := make([][][]float64, len(raw))
	for i, traj := range raw {
		n := len(traj)
		dim := len(traj[0])
		newN := int(float64(n) * factor)
		if newN < 2 {
			newN = 2
		}

		// transpose to channel-major for the hooks and fitting
		channels := make([][]float64, dim)
		for d := range channels {
			channels[d] = make([]float64, n)
			for j := 0; j < n; j++ {
				channels[d][j] = traj[j][d]
			}
		}
		if mapFn != nil {
			channels = mapFn(channels)
		}

		xs := make([]float64, n)
		for j := range xs {
			xs[j] = float64(j)
		}

		resampled := make([][]float64, len(channels))
		for d, channel := range channels {
			var pl interp.PiecewiseLinear
			if err := pl.Fit(xs, channel); err != nil {
				panic(fmt.Sprintf("resample: could not fit channel %v: %v",
					d, err))
			}
			resampled[d] = make([]float64, newN)
			for j := 0; j < newN; j++ {
				x := float64(j) * float64(n-1) / float64(newN-1)
				resampled[d][j] = pl.Predict(x)
			}
		}
		if remapFn != nil {
			resampled = remapFn(resampled)
		}

		// transpose back to sample-major
		out[i] = make([][]float64, newN)
		for j := 0; j < newN; j++ {
			sample := make([]float64, len(resampled))
			for d := range resampled {
				sample[d] = resampled[d][j]
			}
			out[i][j] = sample
		}
	}
	return out
}

// Length returns the number of samples per trajectory
func (t *Trajectory) Length() int {
	return t.length
}

// NumTrajectories returns the number of trajectories in the store
func (t *Trajectory) NumTrajectories() int {
	return t.nTraj
}

// Keys returns the state dimension names in sample order
func (t *Trajectory) Keys() []string {
	return append([]string(nil), t.keys...)
}

// JointPosIdx returns the sample indices holding joint positions
func (t *Trajectory) JointPosIdx() []int {
	return append([]int(nil), t.jointPosIdx...)
}

// sample reads one state sample out of the backing tensor
func (t *Trajectory) sample(traj, step int) []float64 {
	view, err := t.data.Slice(tensorutils.NewSlice(traj, traj+1, 1),
		tensorutils.NewSlice(step, step+1, 1), nil)
	if err != nil {
		panic(fmt.Sprintf("sample: could not slice trajectory data: %v",
			err))
	}
	backing := view.Materialize().Data().([]float64)
	return append([]float64(nil), backing...)
}

// ResetTrajectory moves the playback cursor to a specific sample of a
// specific trajectory and returns that sample
func (t *Trajectory) ResetTrajectory(step, traj int) ([]float64, error) {
	if traj < 0 || traj >= t.nTraj {
		return nil, fmt.Errorf("resetTrajectory: trajectory %v out of "+
			"range [0, %v)", traj, t.nTraj)
	}
	if step < 0 || step >= t.length {
		return nil, fmt.Errorf("resetTrajectory: sample %v out of range "+
			"[0, %v)", step, t.length)
	}
	t.traj, t.step = traj, step
	return t.sample(traj, step), nil
}

// ResetRandom moves the playback cursor to a uniformly random sample
// of a uniformly random trajectory and returns that sample
func (t *Trajectory) ResetRandom(rng *rand.Rand) []float64 {
	traj := rng.Intn(t.nTraj)
	step := rng.Intn(t.length)
	t.traj, t.step = traj, step
	return t.sample(traj, step)
}

// NextSample advances the playback cursor and returns the sample
// there. At the end of a trajectory playback moves to the start of the
// next trajectory, wrapping after the last one.
func (t *Trajectory) NextSample() []float64 {
	t.step++
	if t.step >= t.length {
		t.step = 0
		t.traj = (t.traj + 1) % t.nTraj
	}
	return t.sample(t.traj, t.step)
}
