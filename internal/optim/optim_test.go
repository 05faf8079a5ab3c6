package optim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"qusic/internal/model"
)

func quadratic(center []float64) ObjectiveFunc {
	return func(x []float64) (float64, []float64, error) {
		diff := make([]float64, len(x))
		floats.SubTo(diff, x, center)
		grad := make([]float64, len(x))
		floats.ScaleTo(grad, 2, diff)
		return floats.Dot(diff, diff), grad, nil
	}
}

func TestOptimizersConvergeOnQuadratic(t *testing.T) {
	center := []float64{1, -2, 0.5}
	stepsizes := map[Kind]float64{
		GradientDescent: 0.1,
		Momentum:        0.05,
		Nesterov:        0.05,
		Adagrad:         0.5,
		RMSProp:         0.01,
		Adam:            0.01,
	}
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			opt, err := New(kind, stepsizes[kind])
			require.NoError(t, err)
			assert.Equal(t, kind.String(), opt.Name())

			params := model.ZeroTensor([]int{3})
			obj := quadratic(center)
			first := 0.0
			last := 0.0
			for i := 0; i < 1000; i++ {
				params, last, err = opt.Step(obj, params)
				require.NoError(t, err)
				if i == 0 {
					first = last
				}
			}
			assert.InDelta(t, 5.25, first, 1e-12)
			assert.Less(t, last, 1e-2)
		})
	}
}

func TestStepReturnsLossAtInputAndKeepsInput(t *testing.T) {
	opt, err := New(GradientDescent, 0.1)
	require.NoError(t, err)

	params := model.Tensor{Shape: []int{1, 2}, Data: []float64{0, 0}}
	next, loss, err := opt.Step(quadratic([]float64{1, 2}), params)
	require.NoError(t, err)
	assert.InDelta(t, 5, loss, 1e-12)
	assert.Equal(t, []float64{0, 0}, params.Data)
	assert.Equal(t, []int{1, 2}, next.Shape)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, next.Data, 1e-12)
}

func TestMomentumAndNesterovDiffer(t *testing.T) {
	obj := quadratic([]float64{1})
	run := func(kind Kind) ([]float64, float64) {
		opt, err := New(kind, 0.1)
		require.NoError(t, err)
		params := model.ZeroTensor([]int{1})
		var loss float64
		for i := 0; i < 2; i++ {
			params, loss, err = opt.Step(obj, params)
			require.NoError(t, err)
		}
		return params.Data, loss
	}

	momentum, loss := run(Momentum)
	assert.InDelta(t, 0.54, momentum[0], 1e-12)
	assert.InDelta(t, 0.64, loss, 1e-12)

	nesterov, loss := run(Nesterov)
	assert.InDelta(t, 0.504, nesterov[0], 1e-12)
	assert.InDelta(t, 0.64, loss, 1e-12)
}

func TestAdamFirstStepMovesByStepsize(t *testing.T) {
	opt, err := New(Adam, 0.01)
	require.NoError(t, err)
	next, _, err := opt.Step(quadratic([]float64{3, -3}), model.ZeroTensor([]int{2}))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.01, -0.01}, next.Data, 1e-9)
}

func TestResetClearsAccumulators(t *testing.T) {
	opt, err := New(Momentum, 0.1)
	require.NoError(t, err)
	obj := quadratic([]float64{1})

	a, _, err := opt.Step(obj, model.ZeroTensor([]int{1}))
	require.NoError(t, err)
	_, _, err = opt.Step(obj, a)
	require.NoError(t, err)

	_, _, err = opt.Step(obj, model.ZeroTensor([]int{4}))
	assert.ErrorIs(t, err, model.ErrInvalidShape)

	opt.Reset()
	again, _, err := opt.Step(obj, model.ZeroTensor([]int{1}))
	require.NoError(t, err)
	assert.Equal(t, a.Data, again.Data)
}

func TestStepHandlesEmptyTensor(t *testing.T) {
	opt, err := New(Adam, 0.01)
	require.NoError(t, err)
	obj := ObjectiveFunc(func(x []float64) (float64, []float64, error) {
		return 0.7, []float64{}, nil
	})
	next, loss, err := opt.Step(obj, model.ZeroTensor([]int{}))
	require.NoError(t, err)
	assert.Equal(t, 0.7, loss)
	assert.Empty(t, next.Data)
}

func TestStepPropagatesObjectiveErrors(t *testing.T) {
	opt, err := New(RMSProp, 0.01)
	require.NoError(t, err)
	boom := errors.New("boom")
	_, _, err = opt.Step(ObjectiveFunc(func([]float64) (float64, []float64, error) {
		return 0, nil, boom
	}), model.ZeroTensor([]int{2}))
	assert.ErrorIs(t, err, boom)

	_, _, err = opt.Step(ObjectiveFunc(func([]float64) (float64, []float64, error) {
		return 0, []float64{1}, nil
	}), model.ZeroTensor([]int{2}))
	assert.ErrorIs(t, err, model.ErrInvalidShape)

	_, _, err = opt.Step(quadratic([]float64{0, 0}), model.Tensor{Shape: []int{3}, Data: []float64{1, 2}})
	assert.ErrorIs(t, err, model.ErrInvalidShape)
}

func TestNewAndParseKindValidate(t *testing.T) {
	_, err := New(Adam, 0)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	_, err = New(Adam, -1)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	_, err = New(Kind(99), 0.1)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	for name, want := range map[string]Kind{
		"AdamOptimizer":             Adam,
		"AdagradOptimizer":          Adagrad,
		"GradientDescentOptimizer":  GradientDescent,
		"MomentumOptimizer":         Momentum,
		"NesterovMomentumOptimizer": Nesterov,
		"RMSPropOptimizer":          RMSProp,
		"adam":                      Adam,
	} {
		got, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err = ParseKind("QNGOptimizer")
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}
