// Package matutils implements utility function for working with mat.Matrix
// structs
package matutils

import (
	"gonum.org/v1/gonum/mat"
)

// VecFilled returns a vector filled with a constant value
func VecFilled(length int, value float64) *mat.VecDense {
	backing := make([]float64, length)
	for i := range backing {
		backing[i] = value
	}
	return mat.NewVecDense(length, backing)
}
