package circuit

import (
	"fmt"
	"strconv"
	"strings"
)

// Summary mirrors the resource counts reported by `qusicctl inspect`.
type Summary struct {
	Wires      int            `json:"wires"`
	Ops        int            `json:"ops"`
	Params     int            `json:"params"`
	Depth      int            `json:"depth"`
	GateCounts map[string]int `json:"gate_counts"`
}

func Summarize(p Program) Summary {
	counts := make(map[string]int)
	levels := make([]int, p.NumWires)
	depth := 0
	for _, op := range p.Ops {
		counts[op.Gate.String()]++
		level := 0
		for _, w := range op.Wires {
			if levels[w] > level {
				level = levels[w]
			}
		}
		level++
		for _, w := range op.Wires {
			levels[w] = level
		}
		if level > depth {
			depth = level
		}
	}
	return Summary{
		Wires:      p.NumWires,
		Ops:        len(p.Ops),
		Params:     p.NumParams,
		Depth:      depth,
		GateCounts: counts,
	}
}

// Draw renders one line per op using wire names. A nil params slice prints
// parameter references instead of bound angles.
func Draw(p Program, wires []string, params []float64) string {
	var b strings.Builder
	for k, op := range p.Ops {
		fmt.Fprintf(&b, "%3d  %s", k, op.Gate)
		if op.Param >= 0 {
			if params != nil && op.Param < len(params) {
				fmt.Fprintf(&b, "(%.4f)", params[op.Param])
			} else {
				fmt.Fprintf(&b, "(w[%d])", op.Param)
			}
		}
		names := make([]string, len(op.Wires))
		for i, w := range op.Wires {
			names[i] = wireLabel(wires, w)
		}
		b.WriteString(" ")
		b.WriteString(strings.Join(names, " -> "))
		b.WriteString("\n")
	}
	return b.String()
}

// QASM renders the program as OpenQASM 3 with parameters bound.
func QASM(p Program, bits []int, params []float64) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "OPENQASM 3.0;\ninclude \"stdgates.inc\";\nqubit[%d] q;\nbit[%d] c;\n\n", p.NumWires, p.NumWires)
	for i, bit := range bits {
		if bit == 1 {
			fmt.Fprintf(&b, "x q[%d];\n", i)
		}
	}
	for _, op := range p.Ops {
		b.WriteString(qasmGateName(op.Gate))
		if op.Param >= 0 {
			angle := 0.0
			if op.Param < len(params) {
				angle = params[op.Param]
			}
			b.WriteString("(" + strconv.FormatFloat(angle, 'f', 6, 64) + ")")
		}
		b.WriteString(" ")
		for i, w := range op.Wires {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "q[%d]", w)
		}
		b.WriteString(";\n")
	}
	b.WriteString("\nc = measure q;\n")
	return b.String(), nil
}

func qasmGateName(g Gate) string {
	switch g {
	case GateX:
		return "x"
	case GateRX:
		return "rx"
	case GateRY:
		return "ry"
	case GateRZ:
		return "rz"
	case GateCNOT:
		return "cx"
	case GateCZ:
		return "cz"
	default:
		return strings.ToLower(g.String())
	}
}

func wireLabel(wires []string, w int) string {
	if w >= 0 && w < len(wires) {
		return wires[w]
	}
	return "q" + strconv.Itoa(w)
}
