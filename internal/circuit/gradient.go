package circuit

import "math"

const shiftAngle = math.Pi / 2

// ExpectationJacobian returns <Z_i> and d<Z_i>/dθ_k computed with the
// two-term parameter-shift rule, which is exact for RX, RY and RZ.
// jac[i][k] is the derivative of wire i with respect to parameter k.
func ExpectationJacobian(p Program, bits []int, params []float64) ([]float64, [][]float64, error) {
	base, err := Simulate(p, bits, params)
	if err != nil {
		return nil, nil, err
	}
	prepared, err := Prepare(bits)
	if err != nil {
		return nil, nil, err
	}
	expectations := Expectations(base)

	jac := make([][]float64, p.NumWires)
	for i := range jac {
		jac[i] = make([]float64, p.NumParams)
	}
	for k, op := range p.Ops {
		if op.Param < 0 {
			continue
		}
		plus := prepared.Clone()
		run(p, plus, params, k, shiftAngle)
		minus := prepared.Clone()
		run(p, minus, params, k, -shiftAngle)
		ePlus := Expectations(plus)
		eMinus := Expectations(minus)
		for i := range jac {
			jac[i][op.Param] += (ePlus[i] - eMinus[i]) / 2
		}
	}
	return expectations, jac, nil
}

// ExpectationValues is the differentiable forward pass used by training.
func ExpectationValues(p Program, bits []int, params []float64) ([]float64, error) {
	state, err := Simulate(p, bits, params)
	if err != nil {
		return nil, err
	}
	return Expectations(state), nil
}
