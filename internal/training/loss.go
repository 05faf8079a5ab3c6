package training

import "math"

// lossEpsilon guards both logarithms when an expectation saturates at ±1.
const lossEpsilon = 1e-8

// BCE is the mean binary cross-entropy between expectations in [-1, 1] and
// 0/1 targets. q = (e+1)/2 is the probability of reading 0, so the loss
// scores 1-q against t.
func BCE(expectations, targets []float64) float64 {
	if len(expectations) == 0 {
		return 0
	}
	sum := 0.0
	for i, e := range expectations {
		q := (e + 1) / 2
		t := targets[i]
		sum += -t*math.Log(1-q+lossEpsilon) - (1-t)*math.Log(q+lossEpsilon)
	}
	return sum / float64(len(expectations))
}

// BCEGrad is dBCE/de_i.
func BCEGrad(expectations, targets []float64) []float64 {
	grad := make([]float64, len(expectations))
	if len(expectations) == 0 {
		return grad
	}
	n := float64(len(expectations))
	for i, e := range expectations {
		q := (e + 1) / 2
		t := targets[i]
		dq := t/(1-q+lossEpsilon) - (1-t)/(q+lossEpsilon)
		grad[i] = dq / 2 / n
	}
	return grad
}
