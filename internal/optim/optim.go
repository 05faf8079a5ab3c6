// Package optim implements the first-order optimizers used to train circuit
// parameters. Every optimizer owns its accumulator state; use one instance
// per training run.
package optim

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"qusic/internal/model"
)

type Kind int

const (
	GradientDescent Kind = iota
	Momentum
	Nesterov
	Adagrad
	RMSProp
	Adam
)

const (
	momentumBeta = 0.9
	rmsDecay     = 0.9
	adamBeta1    = 0.9
	adamBeta2    = 0.99
	epsilon      = 1e-8
)

func (k Kind) String() string {
	switch k {
	case GradientDescent:
		return "gd"
	case Momentum:
		return "momentum"
	case Nesterov:
		return "nesterov"
	case Adagrad:
		return "adagrad"
	case RMSProp:
		return "rmsprop"
	case Adam:
		return "adam"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func Kinds() []Kind {
	return []Kind{GradientDescent, Momentum, Nesterov, Adagrad, RMSProp, Adam}
}

func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gd", "sgd", "gradientdescent", "gradientdescentoptimizer":
		return GradientDescent, nil
	case "momentum", "momentumoptimizer":
		return Momentum, nil
	case "nesterov", "nesterovmomentum", "nesterovmomentumoptimizer":
		return Nesterov, nil
	case "adagrad", "adagradoptimizer":
		return Adagrad, nil
	case "rmsprop", "rmspropoptimizer":
		return RMSProp, nil
	case "adam", "adamoptimizer":
		return Adam, nil
	default:
		return 0, fmt.Errorf("%w: unknown optimizer %q", model.ErrInvalidConfig, name)
	}
}

// Objective evaluates the loss and its gradient at a flat parameter vector.
type Objective interface {
	Evaluate(params []float64) (loss float64, grad []float64, err error)
}

// ObjectiveFunc adapts a plain function to Objective.
type ObjectiveFunc func(params []float64) (float64, []float64, error)

func (f ObjectiveFunc) Evaluate(params []float64) (float64, []float64, error) {
	return f(params)
}

type Optimizer interface {
	Name() string
	// Step returns the updated parameters and the loss at the input
	// parameters. The input tensor is not modified.
	Step(obj Objective, params model.Tensor) (model.Tensor, float64, error)
	Reset()
}

func New(kind Kind, stepsize float64) (Optimizer, error) {
	if !(stepsize > 0) || math.IsInf(stepsize, 0) {
		return nil, fmt.Errorf("%w: stepsize must be positive, got %v", model.ErrInvalidConfig, stepsize)
	}
	switch kind {
	case GradientDescent, Momentum, Nesterov, Adagrad, RMSProp, Adam:
		return &rule{kind: kind, stepsize: stepsize}, nil
	default:
		return nil, fmt.Errorf("%w: unknown optimizer %s", model.ErrInvalidConfig, kind)
	}
}

type rule struct {
	kind     Kind
	stepsize float64

	// velocity holds the momentum term, accum the squared-gradient history
	// and first/second the Adam moments.
	velocity []float64
	accum    []float64
	first    []float64
	second   []float64
	steps    int
}

func (r *rule) Name() string {
	return r.kind.String()
}

func (r *rule) Reset() {
	r.velocity = nil
	r.accum = nil
	r.first = nil
	r.second = nil
	r.steps = 0
}

func (r *rule) Step(obj Objective, params model.Tensor) (model.Tensor, float64, error) {
	if obj == nil {
		return model.Tensor{}, 0, fmt.Errorf("%w: nil objective", model.ErrInvalidConfig)
	}
	if err := params.Validate(); err != nil {
		return model.Tensor{}, 0, err
	}
	n := params.Len()
	if err := r.ensureState(n); err != nil {
		return model.Tensor{}, 0, err
	}

	x := params.Data
	loss, grad, err := r.evaluate(obj, x)
	if err != nil {
		return model.Tensor{}, 0, err
	}
	if r.kind == Nesterov && floats.Norm(r.velocity, 2) > 0 {
		lookahead := make([]float64, n)
		floats.AddScaledTo(lookahead, x, -momentumBeta, r.velocity)
		if _, grad, err = r.evaluate(obj, lookahead); err != nil {
			return model.Tensor{}, 0, err
		}
	}

	next := params.Clone()
	r.apply(next.Data, grad)
	return next, loss, nil
}

func (r *rule) evaluate(obj Objective, x []float64) (float64, []float64, error) {
	loss, grad, err := obj.Evaluate(append([]float64(nil), x...))
	if err != nil {
		return 0, nil, err
	}
	if len(grad) != len(x) {
		return 0, nil, fmt.Errorf("%w: gradient has %d entries for %d params", model.ErrInvalidShape, len(grad), len(x))
	}
	return loss, grad, nil
}

func (r *rule) ensureState(n int) error {
	if r.velocity == nil {
		r.velocity = make([]float64, n)
		r.accum = make([]float64, n)
		r.first = make([]float64, n)
		r.second = make([]float64, n)
		return nil
	}
	if len(r.velocity) != n {
		return fmt.Errorf("%w: optimizer state holds %d params, got %d", model.ErrInvalidShape, len(r.velocity), n)
	}
	return nil
}

// apply moves x against grad in place.
func (r *rule) apply(x, grad []float64) {
	switch r.kind {
	case GradientDescent:
		floats.AddScaled(x, -r.stepsize, grad)
	case Momentum, Nesterov:
		floats.Scale(momentumBeta, r.velocity)
		floats.AddScaled(r.velocity, r.stepsize, grad)
		floats.Sub(x, r.velocity)
	case Adagrad:
		for i, g := range grad {
			r.accum[i] += g * g
			x[i] -= r.stepsize * g / math.Sqrt(r.accum[i]+epsilon)
		}
	case RMSProp:
		for i, g := range grad {
			r.accum[i] = rmsDecay*r.accum[i] + (1-rmsDecay)*g*g
			x[i] -= r.stepsize * g / math.Sqrt(r.accum[i]+epsilon)
		}
	case Adam:
		r.steps++
		t := float64(r.steps)
		eta := r.stepsize * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))
		for i, g := range grad {
			r.first[i] = adamBeta1*r.first[i] + (1-adamBeta1)*g
			r.second[i] = adamBeta2*r.second[i] + (1-adamBeta2)*g*g
			x[i] -= eta * r.first[i] / (math.Sqrt(r.second[i]) + epsilon)
		}
	}
}
