package features

import "math"

// Vector is a sparse row of the document-term matrix. Indices are strictly
// increasing column numbers; Values holds the weight for each.
type Vector struct {
	Indices []int
	Values  []float64
}

// Len is the number of non-zero entries.
func (v Vector) Len() int { return len(v.Indices) }

// Dot returns the inner product of v with a dense row.
func (v Vector) Dot(dense []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		sum += v.Values[i] * dense[idx]
	}
	return sum
}

// AddScaledTo adds alpha*v into dense.
func (v Vector) AddScaledTo(dense []float64, alpha float64) {
	for i, idx := range v.Indices {
		dense[idx] += alpha * v.Values[i]
	}
}

// Norm is the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// MaxIndex returns the largest column referenced, or -1 for the zero vector.
func (v Vector) MaxIndex() int {
	if len(v.Indices) == 0 {
		return -1
	}
	return v.Indices[len(v.Indices)-1]
}
