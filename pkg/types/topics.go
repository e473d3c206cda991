package types

import (
	"gonum.org/v1/gonum/floats"
)

// Cosine returns the cosine similarity between v and o. Vectors of
// different lengths or zero magnitude score 0.
func (v TopicVector) Cosine(o TopicVector) float64 {
	if len(v) == 0 || len(v) != len(o) {
		return 0
	}
	nv := floats.Norm(v, 2)
	no := floats.Norm(o, 2)
	if nv == 0 || no == 0 {
		return 0
	}
	return floats.Dot(v, o) / (nv * no)
}

// OneHot returns a vector of length dim with a single 1 at index i.
func OneHot(dim, i int) TopicVector {
	v := make(TopicVector, dim)
	if i >= 0 && i < dim {
		v[i] = 1
	}
	return v
}
