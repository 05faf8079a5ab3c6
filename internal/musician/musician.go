// Package musician binds a wire register, an ansatz and its parameters into
// a playable model.
package musician

import (
	"fmt"
	"math/rand"
	"time"

	"qusic/internal/ansatz"
	"qusic/internal/basis"
	"qusic/internal/circuit"
	"qusic/internal/model"
)

const (
	ConfigSchemaVersion = 1
	ConfigCodecVersion  = 1
)

// Mode selects how the register is read out.
type Mode int

const (
	ModeExpectation Mode = iota
	ModeSample
)

func (m Mode) String() string {
	switch m {
	case ModeExpectation:
		return "expectation"
	case ModeSample:
		return "sample"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Output holds expectations in expectation mode and shots in sample mode.
type Output struct {
	Expectations []float64
	Samples      [][]int
}

type Musician struct {
	config  model.ModelConfig
	kind    ansatz.Kind
	codec   *basis.Codec
	program circuit.Program
	shape   []int
	params  model.Tensor
}

// New compiles cfg and draws initial weights from rng. A nil rng starts
// from zero weights.
func New(cfg model.ModelConfig, rng *rand.Rand) (*Musician, error) {
	cfg = cfg.Clone()
	codec, err := basis.NewCodec(cfg.Wires)
	if err != nil {
		return nil, err
	}
	kind, err := ansatz.ParseKind(cfg.Ansatz)
	if err != nil {
		return nil, err
	}
	cfg.Ansatz = kind.String()
	if cfg.Shots <= 0 {
		cfg.Shots = 1
	}
	if cfg.Shots > model.MaxShots {
		return nil, fmt.Errorf("%w: %d shots exceeds %d", model.ErrInvalidConfig, cfg.Shots, model.MaxShots)
	}
	if kind != ansatz.RandomLayer {
		cfg.Seed = 0
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = ConfigSchemaVersion
	}
	if cfg.CodecVersion == 0 {
		cfg.CodecVersion = ConfigCodecVersion
	}

	desc := ansatz.Descriptor{
		Kind:   kind,
		Layers: ansatz.LayerConfig{Layers: cfg.Layers, Width: cfg.Width, Ranges: cfg.Ranges},
		Seed:   cfg.Seed,
	}
	if kind == ansatz.FixedChord {
		desc.Chords, err = chordIndices(codec, cfg.Chords)
		if err != nil {
			return nil, err
		}
	}
	shape, err := ansatz.Shape(kind, desc.Layers, codec.Len())
	if err != nil {
		return nil, err
	}
	program, err := ansatz.Build(desc, codec.Len())
	if err != nil {
		return nil, err
	}

	params := model.ZeroTensor(shape)
	if rng != nil {
		params = model.RandomTensor(shape, rng)
	}
	return &Musician{
		config:  cfg,
		kind:    kind,
		codec:   codec,
		program: program,
		shape:   shape,
		params:  params,
	}, nil
}

func chordIndices(codec *basis.Codec, chords [][]string) ([][]int, error) {
	out := make([][]int, 0, len(chords))
	for _, chord := range chords {
		idx := make([]int, len(chord))
		for i, name := range chord {
			w, err := codec.Index(name)
			if err != nil {
				return nil, err
			}
			idx[i] = w
		}
		out = append(out, idx)
	}
	return out, nil
}

func (m *Musician) Config() model.ModelConfig {
	return m.config.Clone()
}

func (m *Musician) Kind() ansatz.Kind {
	return m.kind
}

func (m *Musician) Codec() *basis.Codec {
	return m.codec
}

func (m *Musician) Program() circuit.Program {
	return m.program
}

func (m *Musician) Shape() []int {
	return append([]int{}, m.shape...)
}

func (m *Musician) Weights() model.Tensor {
	return m.params.Clone()
}

// SetWeights replaces the parameters with a copy of t.
func (m *Musician) SetWeights(t model.Tensor) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if !model.SameShape(t.Shape, m.shape) {
		return fmt.Errorf("%w: weights shape %v, model needs %v", model.ErrInvalidShape, t.Shape, m.shape)
	}
	m.params = t.Clone()
	return nil
}

// Encode maps note names onto the register.
func (m *Musician) Encode(notes []string) []int {
	return m.codec.Encode(notes)
}

func (m *Musician) Decode(bits []int) ([]string, error) {
	return m.codec.Decode(bits)
}

// Expectation returns <Z_i> per wire for the basis input bits.
func (m *Musician) Expectation(bits []int) ([]float64, error) {
	return circuit.ExpectationValues(m.program, bits, m.params.Data)
}

// Play draws one joint sample of the register.
func (m *Musician) Play(bits []int, rng *rand.Rand) ([]int, error) {
	state, err := m.simulate(bits, rng)
	if err != nil {
		return nil, err
	}
	return circuit.Sample(state, rng), nil
}

// Shots draws the configured number of joint samples.
func (m *Musician) Shots(bits []int, rng *rand.Rand) ([][]int, error) {
	return m.Sample(bits, m.config.Shots, rng)
}

// Sample simulates once and draws shots joint samples from that state.
func (m *Musician) Sample(bits []int, shots int, rng *rand.Rand) ([][]int, error) {
	if shots <= 0 || shots > model.MaxShots {
		return nil, fmt.Errorf("%w: shots must be in [1, %d], got %d", model.ErrInvalidConfig, model.MaxShots, shots)
	}
	state, err := m.simulate(bits, rng)
	if err != nil {
		return nil, err
	}
	return circuit.SampleShots(state, shots, rng), nil
}

func (m *Musician) Forward(bits []int, mode Mode, rng *rand.Rand) (Output, error) {
	switch mode {
	case ModeExpectation:
		e, err := m.Expectation(bits)
		if err != nil {
			return Output{}, err
		}
		return Output{Expectations: e}, nil
	case ModeSample:
		shots, err := m.Shots(bits, rng)
		if err != nil {
			return Output{}, err
		}
		return Output{Samples: shots}, nil
	default:
		return Output{}, fmt.Errorf("%w: unknown measurement %s", model.ErrInvalidConfig, mode)
	}
}

func (m *Musician) simulate(bits []int, rng *rand.Rand) (*circuit.State, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: sampling needs a random source", model.ErrInvalidConfig)
	}
	return circuit.Simulate(m.program, bits, m.params.Data)
}

func (m *Musician) Draw() string {
	return circuit.Draw(m.program, m.codec.Wires(), m.params.Data)
}

func (m *Musician) Summary() circuit.Summary {
	return circuit.Summarize(m.program)
}

func (m *Musician) QASM(bits []int) (string, error) {
	if bits == nil {
		bits = make([]int, m.codec.Len())
	}
	return circuit.QASM(m.program, bits, m.params.Data)
}

// Record snapshots the model for storage.
func (m *Musician) Record(id string) model.ModelRecord {
	return model.ModelRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: ConfigSchemaVersion,
			CodecVersion:  ConfigCodecVersion,
		},
		ID:           id,
		Config:       m.config.Clone(),
		Params:       m.params.Clone(),
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}
}

// FromRecord rebuilds an independent model from a stored record.
func FromRecord(rec model.ModelRecord) (*Musician, error) {
	m, err := New(rec.Config, nil)
	if err != nil {
		return nil, err
	}
	if err := m.SetWeights(rec.Params); err != nil {
		return nil, err
	}
	return m, nil
}
