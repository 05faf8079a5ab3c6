// Package circuit simulates small registers of qubits as explicit state vectors.
//
// Wire i of a register corresponds to bit 1<<i of a basis index. All
// functions are pure: gates mutate only the State they are given and
// randomness always comes from a caller-supplied *rand.Rand.
package circuit

import (
	"fmt"
	"math"
	"math/cmplx"

	"qusic/internal/model"
)

type State struct {
	Amplitudes []complex128
	NumWires   int
}

// Prepare returns the computational basis state selected by bits.
func Prepare(bits []int) (*State, error) {
	n := len(bits)
	if n == 0 || n > model.MaxWires {
		return nil, fmt.Errorf("%w: %d basis bits", model.ErrInvalidShape, n)
	}
	index := 0
	for i, bit := range bits {
		switch bit {
		case 0:
		case 1:
			index |= 1 << i
		default:
			return nil, fmt.Errorf("%w: basis bit %d is %d", model.ErrInvalidShape, i, bit)
		}
	}
	amps := make([]complex128, 1<<n)
	amps[index] = 1
	return &State{Amplitudes: amps, NumWires: n}, nil
}

func (s *State) Clone() *State {
	amps := make([]complex128, len(s.Amplitudes))
	copy(amps, s.Amplitudes)
	return &State{Amplitudes: amps, NumWires: s.NumWires}
}

func (s *State) Norm() float64 {
	total := 0.0
	for _, a := range s.Amplitudes {
		total += real(a * cmplx.Conj(a))
	}
	return math.Sqrt(total)
}

func (s *State) applyX(q int) {
	bit := 1 << q
	for i := range s.Amplitudes {
		if i&bit == 0 {
			j := i | bit
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

func (s *State) applyRX(q int, theta float64) {
	bit := 1 << q
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	for i := range s.Amplitudes {
		if i&bit == 0 {
			j := i | bit
			a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
			s.Amplitudes[i] = c*a0 + js*a1
			s.Amplitudes[j] = js*a0 + c*a1
		}
	}
}

func (s *State) applyRY(q int, theta float64) {
	bit := 1 << q
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)
	for i := range s.Amplitudes {
		if i&bit == 0 {
			j := i | bit
			a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
			s.Amplitudes[i] = c*a0 - sn*a1
			s.Amplitudes[j] = sn*a0 + c*a1
		}
	}
}

func (s *State) applyRZ(q int, theta float64) {
	bit := 1 << q
	phase := cmplx.Exp(complex(0, theta/2))
	conj := cmplx.Conj(phase)
	for i := range s.Amplitudes {
		if i&bit != 0 {
			s.Amplitudes[i] *= phase
		} else {
			s.Amplitudes[i] *= conj
		}
	}
}

func (s *State) applyCNOT(control, target int) {
	cBit := 1 << control
	tBit := 1 << target
	for i := range s.Amplitudes {
		if i&cBit != 0 && i&tBit == 0 {
			j := i | tBit
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

func (s *State) applyCZ(control, target int) {
	cBit := 1 << control
	tBit := 1 << target
	for i := range s.Amplitudes {
		if i&cBit != 0 && i&tBit != 0 {
			s.Amplitudes[i] = -s.Amplitudes[i]
		}
	}
}
