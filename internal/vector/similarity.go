package vector

import "math"

// normEpsilon keeps CosineSimilarity finite for zero vectors.
const normEpsilon = 1e-9

// CosineSimilarity returns dot(a,b) / ((|a|+eps)(|b|+eps)). Vectors of different length are
// compared over the shorter prefix; an empty input yields 0.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / ((math.Sqrt(na) + normEpsilon) * (math.Sqrt(nb) + normEpsilon))
}

// Mean returns the element-wise arithmetic mean of vs and the number of vectors that
// contributed. Vectors whose length differs from the first one are skipped.
func Mean(vs [][]float32) ([]float32, int) {
	if len(vs) == 0 {
		return nil, 0
	}
	dim := len(vs[0])
	acc := make([]float64, dim)
	n := 0
	for _, v := range vs {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			acc[i] += float64(x)
		}
		n++
	}
	out := make([]float32, dim)
	if n == 0 {
		return out, 0
	}
	for i := range acc {
		out[i] = float32(acc[i] / float64(n))
	}
	return out, n
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
