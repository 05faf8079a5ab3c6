// Package ansatz compiles the supported entangling layer patterns into
// circuit programs.
package ansatz

import (
	"fmt"
	"math/rand"
	"strings"

	"qusic/internal/circuit"
	"qusic/internal/model"
)

type Kind int

const (
	FixedChord Kind = iota
	BasicLayer
	StrongLayer
	RandomLayer
)

// imprimitiveRatio is the chance a random-layer draw places a CNOT instead of a rotation.
const imprimitiveRatio = 0.3

var kindNames = map[Kind]string{
	FixedChord:  "fixed-chord",
	BasicLayer:  "basic-layer",
	StrongLayer: "strong-layer",
	RandomLayer: "random-layer",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func Kinds() []Kind {
	return []Kind{FixedChord, BasicLayer, StrongLayer, RandomLayer}
}

func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fixed-chord", "chord", "fixed_chord":
		return FixedChord, nil
	case "basic-layer", "basic", "basicentanglerlayers":
		return BasicLayer, nil
	case "strong-layer", "strong", "stronglyentanglinglayers":
		return StrongLayer, nil
	case "random-layer", "random", "randomlayers":
		return RandomLayer, nil
	default:
		return 0, fmt.Errorf("%w: unknown ansatz %q", model.ErrInvalidConfig, name)
	}
}

// LayerConfig is the kind-specific layer layout. Width is the per-layer
// rotation count for random layers and must be 0 or the register size for
// basic and strong layers. Ranges optionally sets the CNOT range per strong layer.
type LayerConfig struct {
	Layers int
	Width  int
	Ranges []int
}

// Descriptor fully determines the compiled program for a register size.
// Chords holds (root, third, fifth) wire indices for FixedChord.
type Descriptor struct {
	Kind   Kind
	Layers LayerConfig
	Seed   int64
	Chords [][]int
}

// Shape is the parameter tensor shape for kind over n wires.
func Shape(kind Kind, cfg LayerConfig, n int) ([]int, error) {
	if n <= 0 || n > model.MaxWires {
		return nil, fmt.Errorf("%w: %d wires", model.ErrInvalidConfig, n)
	}
	switch kind {
	case FixedChord:
		return []int{}, nil
	case BasicLayer:
		if err := checkLayers(cfg, n); err != nil {
			return nil, err
		}
		return []int{cfg.Layers, n}, nil
	case StrongLayer:
		if err := checkLayers(cfg, n); err != nil {
			return nil, err
		}
		if _, err := strongRanges(cfg, n); err != nil {
			return nil, err
		}
		return []int{cfg.Layers, n, 3}, nil
	case RandomLayer:
		if cfg.Layers < 1 {
			return nil, fmt.Errorf("%w: random-layer needs at least one layer", model.ErrInvalidConfig)
		}
		if cfg.Width < 1 {
			return nil, fmt.Errorf("%w: random-layer needs at least one rotation per layer", model.ErrInvalidConfig)
		}
		return []int{cfg.Layers, cfg.Width}, nil
	default:
		return nil, fmt.Errorf("%w: unknown ansatz %s", model.ErrInvalidConfig, kind)
	}
}

func checkLayers(cfg LayerConfig, n int) error {
	if cfg.Layers < 1 {
		return fmt.Errorf("%w: need at least one layer, got %d", model.ErrInvalidConfig, cfg.Layers)
	}
	if cfg.Width != 0 && cfg.Width != n {
		return fmt.Errorf("%w: layer width %d does not match %d wires", model.ErrInvalidConfig, cfg.Width, n)
	}
	return nil
}

func strongRanges(cfg LayerConfig, n int) ([]int, error) {
	ranges := make([]int, cfg.Layers)
	if len(cfg.Ranges) == 0 {
		if n > 1 {
			for l := range ranges {
				ranges[l] = (l % (n - 1)) + 1
			}
		}
		return ranges, nil
	}
	if len(cfg.Ranges) != cfg.Layers {
		return nil, fmt.Errorf("%w: %d ranges for %d layers", model.ErrInvalidConfig, len(cfg.Ranges), cfg.Layers)
	}
	for l, r := range cfg.Ranges {
		if n > 1 && (r < 1 || r >= n) {
			return nil, fmt.Errorf("%w: range %d in layer %d outside [1,%d]", model.ErrInvalidConfig, r, l, n-1)
		}
		ranges[l] = r
	}
	return ranges, nil
}

// Build compiles the descriptor for n wires. The result depends only on
// its arguments; random layers reseed from desc.Seed on every call.
func Build(desc Descriptor, n int) (circuit.Program, error) {
	shape, err := Shape(desc.Kind, desc.Layers, n)
	if err != nil {
		return circuit.Program{}, err
	}
	p := circuit.Program{NumWires: n, NumParams: model.ShapeSize(shape)}
	switch desc.Kind {
	case FixedChord:
		p.Ops, err = chordOps(desc.Chords, n)
	case BasicLayer:
		p.Ops = basicOps(desc.Layers.Layers, n)
	case StrongLayer:
		ranges, _ := strongRanges(desc.Layers, n)
		p.Ops = strongOps(desc.Layers.Layers, n, ranges)
	case RandomLayer:
		p.Ops = randomOps(desc.Layers.Layers, desc.Layers.Width, n, desc.Seed)
	}
	if err != nil {
		return circuit.Program{}, err
	}
	if err := p.Validate(); err != nil {
		return circuit.Program{}, err
	}
	return p, nil
}

func chordOps(chords [][]int, n int) ([]circuit.Op, error) {
	ops := make([]circuit.Op, 0, 2*len(chords))
	for c, triplet := range chords {
		if len(triplet) != 3 {
			return nil, fmt.Errorf("%w: chord %d has %d notes, want 3", model.ErrInvalidConfig, c, len(triplet))
		}
		root, third, fifth := triplet[0], triplet[1], triplet[2]
		for _, w := range triplet {
			if w < 0 || w >= n {
				return nil, fmt.Errorf("%w: chord %d wire %d outside register", model.ErrInvalidWire, c, w)
			}
		}
		if root == third || root == fifth || third == fifth {
			return nil, fmt.Errorf("%w: chord %d repeats a wire", model.ErrInvalidConfig, c)
		}
		ops = append(ops,
			circuit.Op{Gate: circuit.GateCNOT, Wires: []int{root, third}, Param: circuit.NoParam},
			circuit.Op{Gate: circuit.GateCNOT, Wires: []int{root, fifth}, Param: circuit.NoParam},
		)
	}
	return ops, nil
}

func basicOps(layers, n int) []circuit.Op {
	var ops []circuit.Op
	for l := 0; l < layers; l++ {
		for i := 0; i < n; i++ {
			ops = append(ops, circuit.Op{Gate: circuit.GateRX, Wires: []int{i}, Param: l*n + i})
		}
		ops = append(ops, ring(n)...)
	}
	return ops
}

func strongOps(layers, n int, ranges []int) []circuit.Op {
	var ops []circuit.Op
	for l := 0; l < layers; l++ {
		for i := 0; i < n; i++ {
			base := (l*n + i) * 3
			// Rot(phi, theta, omega) = RZ(omega) RY(theta) RZ(phi)
			ops = append(ops,
				circuit.Op{Gate: circuit.GateRZ, Wires: []int{i}, Param: base},
				circuit.Op{Gate: circuit.GateRY, Wires: []int{i}, Param: base + 1},
				circuit.Op{Gate: circuit.GateRZ, Wires: []int{i}, Param: base + 2},
			)
		}
		if n > 1 {
			for i := 0; i < n; i++ {
				ops = append(ops, circuit.Op{Gate: circuit.GateCNOT, Wires: []int{i, (i + ranges[l]) % n}, Param: circuit.NoParam})
			}
		}
	}
	return ops
}

// ring entangles neighbours; two wires get a single CNOT rather than a 2-cycle.
func ring(n int) []circuit.Op {
	switch {
	case n < 2:
		return nil
	case n == 2:
		return []circuit.Op{{Gate: circuit.GateCNOT, Wires: []int{0, 1}, Param: circuit.NoParam}}
	}
	ops := make([]circuit.Op, 0, n)
	for i := 0; i < n; i++ {
		ops = append(ops, circuit.Op{Gate: circuit.GateCNOT, Wires: []int{i, (i + 1) % n}, Param: circuit.NoParam})
	}
	return ops
}

var randomRotations = []circuit.Gate{circuit.GateRX, circuit.GateRY, circuit.GateRZ}

func randomOps(layers, width, n int, seed int64) []circuit.Op {
	rng := rand.New(rand.NewSource(seed))
	var ops []circuit.Op
	for l := 0; l < layers; l++ {
		placed := 0
		for placed < width {
			if rng.Float64() > imprimitiveRatio {
				gate := randomRotations[rng.Intn(len(randomRotations))]
				wire := rng.Intn(n)
				ops = append(ops, circuit.Op{Gate: gate, Wires: []int{wire}, Param: l*width + placed})
				placed++
				continue
			}
			if n > 1 {
				control := rng.Intn(n)
				target := rng.Intn(n - 1)
				if target >= control {
					target++
				}
				ops = append(ops, circuit.Op{Gate: circuit.GateCNOT, Wires: []int{control, target}, Param: circuit.NoParam})
			}
		}
	}
	return ops
}
