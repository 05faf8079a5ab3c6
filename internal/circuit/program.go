package circuit

import (
	"fmt"

	"qusic/internal/model"
)

type Gate int

const (
	GateX Gate = iota
	GateRX
	GateRY
	GateRZ
	GateCNOT
	GateCZ
)

func (g Gate) String() string {
	switch g {
	case GateX:
		return "X"
	case GateRX:
		return "RX"
	case GateRY:
		return "RY"
	case GateRZ:
		return "RZ"
	case GateCNOT:
		return "CNOT"
	case GateCZ:
		return "CZ"
	default:
		return fmt.Sprintf("Gate(%d)", int(g))
	}
}

func (g Gate) Arity() int {
	switch g {
	case GateCNOT, GateCZ:
		return 2
	default:
		return 1
	}
}

// Parametric reports whether the gate takes a rotation angle.
func (g Gate) Parametric() bool {
	switch g {
	case GateRX, GateRY, GateRZ:
		return true
	default:
		return false
	}
}

// NoParam marks an op whose angle does not come from the parameter tensor.
const NoParam = -1

// Op is one gate application. Param indexes the flat parameter tensor.
type Op struct {
	Gate  Gate
	Wires []int
	Param int
}

// Program is a compiled, immutable gate sequence over NumWires wires.
type Program struct {
	NumWires  int
	NumParams int
	Ops       []Op
}

func (p Program) Validate() error {
	if p.NumWires <= 0 || p.NumWires > model.MaxWires {
		return fmt.Errorf("%w: program over %d wires", model.ErrInvalidConfig, p.NumWires)
	}
	for k, op := range p.Ops {
		if len(op.Wires) != op.Gate.Arity() {
			return fmt.Errorf("%w: op %d %s expects %d wires, got %d", model.ErrInvalidConfig, k, op.Gate, op.Gate.Arity(), len(op.Wires))
		}
		for _, w := range op.Wires {
			if w < 0 || w >= p.NumWires {
				return fmt.Errorf("%w: op %d wire %d outside register", model.ErrInvalidWire, k, w)
			}
		}
		if op.Gate.Arity() == 2 && op.Wires[0] == op.Wires[1] {
			return fmt.Errorf("%w: op %d uses wire %d twice", model.ErrInvalidConfig, k, op.Wires[0])
		}
		if op.Gate.Parametric() {
			if op.Param < 0 || op.Param >= p.NumParams {
				return fmt.Errorf("%w: op %d parameter %d outside %d", model.ErrInvalidShape, k, op.Param, p.NumParams)
			}
		} else if op.Param != NoParam {
			return fmt.Errorf("%w: op %d %s takes no parameter", model.ErrInvalidConfig, k, op.Gate)
		}
	}
	return nil
}

// Simulate prepares bits, applies the program with params and returns the
// final state.
func Simulate(p Program, bits []int, params []float64) (*State, error) {
	if len(bits) != p.NumWires {
		return nil, fmt.Errorf("%w: %d basis bits for %d wires", model.ErrInvalidShape, len(bits), p.NumWires)
	}
	if len(params) != p.NumParams {
		return nil, fmt.Errorf("%w: got %d parameters, program needs %d", model.ErrInvalidShape, len(params), p.NumParams)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	state, err := Prepare(bits)
	if err != nil {
		return nil, err
	}
	run(p, state, params, -1, 0)
	return state, nil
}

// run applies every op; op number shiftOp gets shift added to its angle.
func run(p Program, s *State, params []float64, shiftOp int, shift float64) {
	for k, op := range p.Ops {
		angle := 0.0
		if op.Param >= 0 {
			angle = params[op.Param]
		}
		if k == shiftOp {
			angle += shift
		}
		apply(s, op, angle)
	}
}

func apply(s *State, op Op, angle float64) {
	switch op.Gate {
	case GateX:
		s.applyX(op.Wires[0])
	case GateRX:
		s.applyRX(op.Wires[0], angle)
	case GateRY:
		s.applyRY(op.Wires[0], angle)
	case GateRZ:
		s.applyRZ(op.Wires[0], angle)
	case GateCNOT:
		s.applyCNOT(op.Wires[0], op.Wires[1])
	case GateCZ:
		s.applyCZ(op.Wires[0], op.Wires[1])
	}
}
