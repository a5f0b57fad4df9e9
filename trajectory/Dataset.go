package trajectory

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Dataset holds transition arrays materialized from a trajectory
// store. States and NextStates have one row per stored sample and one
// column per retained state dimension; Absorbing flags rows whose
// state ends an episode.
type Dataset struct {
	States     *mat.Dense
	NextStates *mat.Dense
	Absorbing  []bool
	Keys       []string
}

// CreateDataset materializes (states, next states, absorbing) arrays
// from the store. Dimensions named in ignoreKeys are dropped from the
// columns; the row count is always NumTrajectories * Length. The next
// state of the final sample of a trajectory is that sample itself.
func (t *Trajectory) CreateDataset(ignoreKeys []string) (*Dataset, error) {
	ignored := make(map[string]bool, len(ignoreKeys))
	for _, k := range ignoreKeys {
		if _, ok := t.keyIdx[k]; !ok {
			return nil, fmt.Errorf("createDataset: no such key %q", k)
		}
		ignored[k] = true
	}

	var cols []int
	var keys []string
	for i, k := range t.keys {
		if !ignored[k] {
			cols = append(cols, i)
			keys = append(keys, k)
		}
	}

	rows := t.nTraj * t.length
	states := mat.NewDense(rows, len(cols), nil)
	nextStates := mat.NewDense(rows, len(cols), nil)
	absorbing := make([]bool, rows)

	row := 0
	for traj := 0; traj < t.nTraj; traj++ {
		for step := 0; step < t.length; step++ {
			s := t.sample(traj, step)
			next := s
			if step+1 < t.length {
				next = t.sample(traj, step+1)
			}
			for c, d := range cols {
				states.Set(row, c, s[d])
				nextStates.Set(row, c, next[d])
			}
			row++
		}
	}

	return &Dataset{
		States:     states,
		NextStates: nextStates,
		Absorbing:  absorbing,
		Keys:       keys,
	}, nil
}

// LoadData loads trajectory data saved by SaveData
func LoadData(path string) ([][][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data [][][]float64
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %v", err)
	}
	return data, nil
}

// SaveData saves trajectory data to path, laid out as trajectories x
// samples x state dimension
func SaveData(path string, data [][][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saveData: could not create data file: %v", err)
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("saveData: could not encode data: %v", err)
	}
	return nil
}

// Save writes a materialized dataset to path with gob encoding
func (d *Dataset) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: could not create dataset file: %v", err)
	}
	defer file.Close()

	rows, cols := d.States.Dims()
	flat := flatDataset{
		Rows:       rows,
		Cols:       cols,
		States:     append([]float64(nil), d.States.RawMatrix().Data...),
		NextStates: append([]float64(nil), d.NextStates.RawMatrix().Data...),
		Absorbing:  d.Absorbing,
		Keys:       d.Keys,
	}

	enc := gob.NewEncoder(file)
	if err := enc.Encode(flat); err != nil {
		return fmt.Errorf("save: could not encode dataset: %v", err)
	}
	return nil
}

// LoadDataset reads a dataset written by Save
func LoadDataset(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadDataset: could not open dataset "+
			"file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var flat flatDataset
	if err := dec.Decode(&flat); err != nil {
		return nil, fmt.Errorf("loadDataset: could not decode dataset: %v",
			err)
	}

	return &Dataset{
		States:     mat.NewDense(flat.Rows, flat.Cols, flat.States),
		NextStates: mat.NewDense(flat.Rows, flat.Cols, flat.NextStates),
		Absorbing:  flat.Absorbing,
		Keys:       flat.Keys,
	}, nil
}

type flatDataset struct {
	Rows, Cols int
	States     []float64
	NextStates []float64
	Absorbing  []bool
	Keys       []string
}
