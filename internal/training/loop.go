// Package training fits circuit parameters to a melody-to-harmony schedule.
package training

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"qusic/internal/circuit"
	"qusic/internal/harmony"
	"qusic/internal/model"
	"qusic/internal/musician"
	"qusic/internal/optim"
)

type EpochReport struct {
	Epoch  int
	Melody string
	Loss   float64
}

type Config struct {
	Epochs      int
	Schedule    harmony.Schedule
	Rand        *rand.Rand
	Optimizer   optim.Optimizer
	Measurement musician.Mode
	OnEpoch     func(EpochReport)
	Logger      *zerolog.Logger
}

type Result struct {
	Params   model.Tensor
	Losses   []float64
	Melodies []string
}

func (c Config) validate(m *musician.Musician) error {
	if c.Measurement != musician.ModeExpectation {
		return fmt.Errorf("%w: training needs expectation readout, got %s", model.ErrNonDifferentiableLoss, c.Measurement)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("%w: negative epochs %d", model.ErrInvalidConfig, c.Epochs)
	}
	if c.Rand == nil {
		return fmt.Errorf("%w: nil random source", model.ErrInvalidConfig)
	}
	if c.Optimizer == nil {
		return fmt.Errorf("%w: nil optimizer", model.ErrInvalidConfig)
	}
	if m == nil {
		return fmt.Errorf("%w: nil model", model.ErrInvalidConfig)
	}
	return c.Schedule.Validate(m.Codec())
}

// Train runs exactly cfg.Epochs optimizer steps, each on one melody drawn
// uniformly from the scheduled wires plus the rest note, and leaves the
// final parameters on m.
func Train(m *musician.Musician, cfg Config) (Result, error) {
	if err := cfg.validate(m); err != nil {
		return Result{}, err
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "training").Logger()
	}

	melodies := cfg.Schedule.Melodies(m.Codec())
	params := m.Weights()
	result := Result{
		Losses:   make([]float64, 0, cfg.Epochs),
		Melodies: make([]string, 0, cfg.Epochs),
	}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		melody := melodies[cfg.Rand.Intn(len(melodies))]
		targets, _ := cfg.Schedule.Targets(melody)
		obj := NewObjective(m.Program(), m.Encode([]string{melody}), m.Encode(targets))

		next, loss, err := cfg.Optimizer.Step(obj, params)
		if err != nil {
			return Result{}, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		params = next
		result.Losses = append(result.Losses, loss)
		result.Melodies = append(result.Melodies, melody)

		log.Debug().Int("epoch", epoch).Str("melody", melody).Float64("loss", loss).Msg("epoch")
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(EpochReport{Epoch: epoch, Melody: melody, Loss: loss})
		}
	}

	if err := m.SetWeights(params); err != nil {
		return Result{}, err
	}
	result.Params = params.Clone()

	ev := log.Info().Int("epochs", cfg.Epochs).Str("optimizer", cfg.Optimizer.Name())
	if n := len(result.Losses); n > 0 {
		ev = ev.Float64("first_loss", result.Losses[0]).Float64("last_loss", result.Losses[n-1])
	}
	ev.Msg("training finished")
	return result, nil
}

// Objective is the loss of one training pair as a function of the flat
// parameter vector, with the gradient from the parameter-shift Jacobian.
type Objective struct {
	program circuit.Program
	input   []int
	target  []float64
}

func NewObjective(p circuit.Program, input, target []int) *Objective {
	t := make([]float64, len(target))
	for i, bit := range target {
		t[i] = float64(bit)
	}
	return &Objective{program: p, input: append([]int(nil), input...), target: t}
}

func (o *Objective) Evaluate(params []float64) (float64, []float64, error) {
	e, jac, err := circuit.ExpectationJacobian(o.program, o.input, params)
	if err != nil {
		return 0, nil, err
	}
	dLdE := BCEGrad(e, o.target)
	grad := make([]float64, len(params))
	for i, row := range jac {
		for k, d := range row {
			grad[k] += dLdE[i] * d
		}
	}
	return BCE(e, o.target), grad, nil
}

// Loss evaluates the objective without its gradient.
func (o *Objective) Loss(params []float64) (float64, error) {
	e, err := circuit.ExpectationValues(o.program, o.input, params)
	if err != nil {
		return 0, err
	}
	return BCE(e, o.target), nil
}

// ScheduleLoss averages the loss of m over every drawable melody.
func ScheduleLoss(m *musician.Musician, s harmony.Schedule) (float64, error) {
	melodies := s.Melodies(m.Codec())
	if len(melodies) == 0 {
		return 0, nil
	}
	params := m.Weights().Data
	total := 0.0
	for _, melody := range melodies {
		targets, _ := s.Targets(melody)
		loss, err := NewObjective(m.Program(), m.Encode([]string{melody}), m.Encode(targets)).Loss(params)
		if err != nil {
			return 0, err
		}
		total += loss
	}
	return total / float64(len(melodies)), nil
}
