package locomotion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/kiwi-sherbet/loco-mujoco/sim"
)

// ObservationType denotes the kind of simulator quantity one entry of
// an observation specification reads and writes
type ObservationType int

const (
	ObservationJointPos ObservationType = iota
	ObservationJointVel
	ObservationSiteRot
)

func (t ObservationType) String() string {
	switch t {
	case ObservationJointPos:
		return "JointPos"
	case ObservationJointVel:
		return "JointVel"
	case ObservationSiteRot:
		return "SiteRot"
	default:
		return fmt.Sprintf("ObservationType(%d)", int(t))
	}
}

// Len returns the number of flat sample values an entry of this type
// occupies. Rotations are stored as row-major 3x3 matrices.
func (t ObservationType) Len() int {
	if t == ObservationSiteRot {
		return 9
	}
	return 1
}

// ObsEntry is one entry of an observation specification: a key used to
// retrieve the value later, the name of the simulator entity it reads,
// and the kind of quantity read. Entry order defines the raw state
// layout, and the first two entries are always the x and y position of
// the model's root.
type ObsEntry struct {
	Key  string
	Name string
	Type ObservationType
}

// resolvedEntry is an ObsEntry with its simulator handle and flat
// index range resolved
type resolvedEntry struct {
	ObsEntry
	handle int
	start  int
}

// ObsHelper resolves an observation specification against a simulator
// once, at construction time, and afterwards moves state between the
// simulator and flat raw samples through integer handles only.
type ObsHelper struct {
	entries   []resolvedEntry
	byKey     map[string]int
	sampleLen int
}

// NewObsHelper resolves every entry of spec against s. Resolution
// fails on unknown entity names, duplicate keys, and unrecognized
// observation kinds: a specification that cannot be resolved
// exhaustively is a construction error, not a runtime surprise.
func NewObsHelper(spec []ObsEntry, s sim.Simulator) (*ObsHelper, error) {
	if len(spec) < 2 {
		return nil, fmt.Errorf("newObsHelper: observation spec needs at "+
			"least the x and y position entries, got %v entries", len(spec))
	}

	h := &ObsHelper{byKey: make(map[string]int, len(spec))}
	for _, e := range spec {
		if _, ok := h.byKey[e.Key]; ok {
			return nil, fmt.Errorf("newObsHelper: duplicate observation "+
				"key %q", e.Key)
		}

		var handle int
		var err error
		switch e.Type {
		case ObservationJointPos, ObservationJointVel:
			handle, err = s.JointHandle(e.Name)
		case ObservationSiteRot:
			handle, err = s.SiteHandle(e.Name)
		default:
			return nil, fmt.Errorf("newObsHelper: unrecognized "+
				"observation type %v for key %q", e.Type, e.Key)
		}
		if err != nil {
			return nil, fmt.Errorf("newObsHelper: could not resolve "+
				"entry %q: %v", e.Key, err)
		}

		h.byKey[e.Key] = len(h.entries)
		h.entries = append(h.entries, resolvedEntry{
			ObsEntry: e,
			handle:   handle,
			start:    h.sampleLen,
		})
		h.sampleLen += e.Type.Len()
	}
	return h, nil
}

// SampleLen returns the flat length of a raw state sample
func (h *ObsHelper) SampleLen() int {
	return h.sampleLen
}

// NumEntries returns the number of entries in the specification
func (h *ObsHelper) NumEntries() int {
	return len(h.entries)
}

// Keys returns the observation keys in specification order
func (h *ObsHelper) Keys() []string {
	keys := make([]string, len(h.entries))
	for i, e := range h.entries {
		keys[i] = e.Key
	}
	return keys
}

// SampleKeys returns one key per flat sample dimension. Entries wider
// than one value get indexed keys.
func (h *ObsHelper) SampleKeys() []string {
	keys := make([]string, 0, h.sampleLen)
	for _, e := range h.entries {
		n := e.Type.Len()
		if n == 1 {
			keys = append(keys, e.Key)
			continue
		}
		for i := 0; i < n; i++ {
			keys = append(keys, fmt.Sprintf("%v_%v", e.Key, i))
		}
	}
	return keys
}

// entry returns the resolved specification entry for a key
func (h *ObsHelper) entry(key string) (resolvedEntry, bool) {
	i, ok := h.byKey[key]
	if !ok {
		return resolvedEntry{}, false
	}
	return h.entries[i], true
}

// ObsIdx returns the flat raw-sample indices of a key
func (h *ObsHelper) ObsIdx(key string) ([]int, error) {
	i, ok := h.byKey[key]
	if !ok {
		return nil, fmt.Errorf("obsIdx: no observation key %q", key)
	}
	e := h.entries[i]
	idx := make([]int, e.Type.Len())
	for j := range idx {
		idx[j] = e.start + j
	}
	return idx, nil
}

// BuildObs reads the current simulator state into a flat raw sample
func (h *ObsHelper) BuildObs(s sim.Simulator) []float64 {
	sample := make([]float64, h.sampleLen)
	for _, e := range h.entries {
		switch e.Type {
		case ObservationJointPos:
			sample[e.start] = s.JointPos(e.handle)
		case ObservationJointVel:
			sample[e.start] = s.JointVel(e.handle)
		case ObservationSiteRot:
			rot := s.SiteRot(e.handle)
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					sample[e.start+3*r+c] = rot.At(r, c)
				}
			}
		}
	}
	return sample
}

// SetState writes a flat raw sample into the simulator through the
// resolved handles. The caller is responsible for a Forward call
// afterwards.
func (h *ObsHelper) SetState(s sim.Simulator, sample []float64) error {
	if len(sample) != h.sampleLen {
		panic(fmt.Sprintf("setState: invalid sample length \n\t"+
			"have(%v) \n\twant(%v)", len(sample), h.sampleLen))
	}

	for _, e := range h.entries {
		switch e.Type {
		case ObservationJointPos:
			s.SetJointPos(e.handle, sample[e.start])
		case ObservationJointVel:
			s.SetJointVel(e.handle, sample[e.start])
		case ObservationSiteRot:
			rot := mat.NewDense(3, 3, sample[e.start:e.start+9])
			if err := s.SetSiteRot(e.handle, rot); err != nil {
				return fmt.Errorf("setState: %v", err)
			}
		default:
			return fmt.Errorf("setState: unrecognized observation type "+
				"%v for key %q", e.Type, e.Key)
		}
	}
	return nil
}

// Bounds returns per-dimension lower and upper bounds of the raw
// state layout. Joint positions take their limits from the simulator
// when the joint is limited; velocities are unbounded; rotation matrix
// entries lie in [-1, 1].
func (h *ObsHelper) Bounds(s sim.Simulator) (low, high []float64) {
	low = make([]float64, h.sampleLen)
	high = make([]float64, h.sampleLen)
	for _, e := range h.entries {
		switch e.Type {
		case ObservationJointPos:
			limits, limited := s.JointLimits(e.handle)
			if !limited {
				limits = r1.Interval{Min: math.Inf(-1), Max: math.Inf(1)}
			}
			low[e.start] = limits.Min
			high[e.start] = limits.Max
		case ObservationJointVel:
			low[e.start] = math.Inf(-1)
			high[e.start] = math.Inf(1)
		case ObservationSiteRot:
			for i := 0; i < 9; i++ {
				low[e.start+i] = -1.0
				high[e.start+i] = 1.0
			}
		}
	}
	return low, high
}

// JointPosIdx returns the flat indices of all joint position entries
func (h *ObsHelper) JointPosIdx() []int {
	var idx []int
	for _, e := range h.entries {
		if e.Type == ObservationJointPos {
			idx = append(idx, e.start)
		}
	}
	return idx
}

// JointVelIdx returns the flat indices of all joint velocity entries
func (h *ObsHelper) JointVelIdx() []int {
	var idx []int
	for _, e := range h.entries {
		if e.Type == ObservationJointVel {
			idx = append(idx, e.start)
		}
	}
	return idx
}
