package circuit

import (
	"math/cmplx"
	"math/rand"
)

// Probabilities returns the joint outcome distribution over all 2^n basis states.
func Probabilities(s *State) []float64 {
	probs := make([]float64, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		probs[i] = real(a * cmplx.Conj(a))
	}
	return probs
}

// Expectations returns <Z_i> per wire: +1 for a certain 0, -1 for a certain 1.
func Expectations(s *State) []float64 {
	out := make([]float64, s.NumWires)
	for i, a := range s.Amplitudes {
		p := real(a * cmplx.Conj(a))
		if p == 0 {
			continue
		}
		for q := 0; q < s.NumWires; q++ {
			if i&(1<<q) == 0 {
				out[q] += p
			} else {
				out[q] -= p
			}
		}
	}
	return out
}

// Sample draws one joint outcome from the state's distribution.
func Sample(s *State, rng *rand.Rand) []int {
	return indexBits(sampleIndex(Probabilities(s), rng), s.NumWires)
}

// SampleShots draws shots independent joint outcomes under the same state.
func SampleShots(s *State, shots int, rng *rand.Rand) [][]int {
	if shots <= 0 {
		return [][]int{}
	}
	probs := Probabilities(s)
	out := make([][]int, shots)
	for k := range out {
		out[k] = indexBits(sampleIndex(probs, rng), s.NumWires)
	}
	return out
}

func sampleIndex(probs []float64, rng *rand.Rand) int {
	u := rng.Float64()
	acc := 0.0
	last := 0
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		acc += p
		last = i
		if u < acc {
			return i
		}
	}
	// Rounding can leave acc just below 1.
	return last
}

func indexBits(index, n int) []int {
	bits := make([]int, n)
	for q := 0; q < n; q++ {
		if index&(1<<q) != 0 {
			bits[q] = 1
		}
	}
	return bits
}
