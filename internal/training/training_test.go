package training

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"qusic/internal/harmony"
	"qusic/internal/model"
	"qusic/internal/musician"
	"qusic/internal/optim"
	"qusic/internal/stats"
)

var naturals = []string{"C", "D", "E", "F", "G", "A", "B"}

func chordSchedule() harmony.Schedule {
	return harmony.Schedule{
		"C":            {"C", "E", "G"},
		"D":            {"D", "F", "A"},
		model.RestNote: {},
	}
}

func newModel(t *testing.T, cfg model.ModelConfig, seed int64) *musician.Musician {
	t.Helper()
	m, err := musician.New(cfg, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return m
}

func newConfig(t *testing.T, epochs int, seed int64, kind optim.Kind, lr float64, s harmony.Schedule) Config {
	t.Helper()
	opt, err := optim.New(kind, lr)
	require.NoError(t, err)
	logger := zerolog.Nop()
	return Config{
		Epochs:    epochs,
		Schedule:  s,
		Rand:      rand.New(rand.NewSource(seed)),
		Optimizer: opt,
		Logger:    &logger,
	}
}

func TestBCEStaysFiniteAtSaturation(t *testing.T) {
	for _, e := range []float64{-1, 1} {
		for _, target := range []float64{0, 1} {
			loss := BCE([]float64{e}, []float64{target})
			assert.False(t, math.IsInf(loss, 0) || math.IsNaN(loss), "e=%v t=%v", e, target)
			for _, g := range BCEGrad([]float64{e}, []float64{target}) {
				assert.False(t, math.IsInf(g, 0) || math.IsNaN(g), "grad e=%v t=%v", e, target)
			}
		}
	}
	// e=+1 reads 0 with certainty; a target of 0 costs nothing.
	assert.InDelta(t, 0, BCE([]float64{1}, []float64{0}), 1e-7)
	assert.InDelta(t, -math.Log(1e-8), BCE([]float64{1}, []float64{1}), 1e-6)
	assert.InDelta(t, math.Log(2), BCE([]float64{0, 0}, []float64{1, 0}), 1e-7)
	assert.Equal(t, 0.0, BCE(nil, nil))
}

func TestBCEGradMatchesFiniteDifferences(t *testing.T) {
	targets := []float64{1, 0, 1, 0}
	e := []float64{0.3, -0.6, 0.9, 0.1}
	numeric := fd.Gradient(nil, func(x []float64) float64 { return BCE(x, targets) }, e, &fd.Settings{Formula: fd.Central, Step: 1e-6})
	assert.InDeltaSlice(t, numeric, BCEGrad(e, targets), 1e-6)
}

func TestObjectiveGradientMatchesFiniteDifferences(t *testing.T) {
	m := newModel(t, model.ModelConfig{Wires: naturals, Ansatz: "strong-layer", Layers: 1}, 4)
	obj := NewObjective(m.Program(), m.Encode([]string{"C"}), m.Encode([]string{"C", "E", "G"}))
	params := m.Weights().Data

	loss, grad, err := obj.Evaluate(params)
	require.NoError(t, err)
	direct, err := obj.Loss(params)
	require.NoError(t, err)
	assert.InDelta(t, direct, loss, 1e-12)

	numeric := fd.Gradient(nil, func(x []float64) float64 {
		l, err := obj.Loss(x)
		require.NoError(t, err)
		return l
	}, params, &fd.Settings{Formula: fd.Central, Step: 1e-6})
	assert.InDeltaSlice(t, numeric, grad, 1e-5)
}

func TestTrainRejectsBadSetup(t *testing.T) {
	m := newModel(t, model.ModelConfig{Wires: naturals, Ansatz: "basic-layer", Layers: 1}, 1)

	cfg := newConfig(t, 10, 1, optim.Adam, 0.01, chordSchedule())
	cfg.Measurement = musician.ModeSample
	_, err := Train(m, cfg)
	assert.ErrorIs(t, err, model.ErrNonDifferentiableLoss)

	cfg = newConfig(t, -1, 1, optim.Adam, 0.01, chordSchedule())
	_, err = Train(m, cfg)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	cfg = newConfig(t, 10, 1, optim.Adam, 0.01, chordSchedule())
	cfg.Rand = nil
	_, err = Train(m, cfg)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	cfg = newConfig(t, 10, 1, optim.Adam, 0.01, harmony.Schedule{"C": {"C"}})
	_, err = Train(m, cfg)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	cfg = newConfig(t, 10, 1, optim.Adam, 0.01, harmony.Schedule{"C": {"X"}, model.RestNote: {}})
	_, err = Train(m, cfg)
	assert.ErrorIs(t, err, model.ErrInvalidWire)
}

func TestTrainIsDeterministicForFixedSeeds(t *testing.T) {
	cfg := model.ModelConfig{Wires: naturals, Ansatz: "random-layer", Layers: 2, Width: 7, Seed: 42}
	run := func() (Result, model.Tensor) {
		m := newModel(t, cfg, 1)
		res, err := Train(m, newConfig(t, 25, 7, optim.Adam, 0.01, chordSchedule()))
		require.NoError(t, err)
		return res, m.Weights()
	}

	first, firstWeights := run()
	second, secondWeights := run()
	assert.Equal(t, first.Losses, second.Losses)
	assert.Equal(t, first.Melodies, second.Melodies)
	assert.Equal(t, first.Params, second.Params)
	assert.Equal(t, first.Params, firstWeights)
	assert.Equal(t, firstWeights, secondWeights)
}

func TestTrainRunsExactlyEpochs(t *testing.T) {
	m := newModel(t, model.ModelConfig{Wires: naturals, Ansatz: "basic-layer", Layers: 1}, 1)
	cfg := newConfig(t, 12, 3, optim.GradientDescent, 0.1, chordSchedule())
	var seen []int
	cfg.OnEpoch = func(r EpochReport) { seen = append(seen, r.Epoch) }

	res, err := Train(m, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Losses, 12)
	assert.Len(t, res.Melodies, 12)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, seen)

	none, err := Train(m, newConfig(t, 0, 3, optim.GradientDescent, 0.1, chordSchedule()))
	require.NoError(t, err)
	assert.Empty(t, none.Losses)
	assert.Equal(t, m.Weights(), none.Params)
}

func TestTrainConvergesOnSingleWire(t *testing.T) {
	m := newModel(t, model.ModelConfig{Wires: []string{"C"}, Ansatz: "basic-layer", Layers: 1}, 1)
	require.NoError(t, m.SetWeights(model.Tensor{Shape: []int{1, 1}, Data: []float64{2}}))

	schedule := harmony.Schedule{"C": {"C"}, model.RestNote: {}}
	res, err := Train(m, newConfig(t, 300, 5, optim.Adam, 0.05, schedule))
	require.NoError(t, err)

	// theta=2 gives -2*log(cos(1))
	assert.InDelta(t, -2*math.Log(math.Cos(1)), res.Losses[0], 1e-6)
	avg := stats.MovingAverage(res.Losses, 20)
	assert.Less(t, avg[len(avg)-1], 0.01)
	assert.Less(t, avg[len(avg)-1], avg[19])

	on, err := m.Expectation(m.Encode([]string{"C"}))
	require.NoError(t, err)
	off, err := m.Expectation(m.Encode(nil))
	require.NoError(t, err)
	assert.Less(t, on[0], -0.9)
	assert.Greater(t, off[0], 0.9)
}

// One basic-layer layer makes every <Z_i> a parity product of per-wire
// cosines, so C, E, G cannot all rise strictly above D, F, A, B. Only the
// loss drop is asserted here.
func TestChordScheduleEndToEnd(t *testing.T) {
	m := newModel(t, model.ModelConfig{Wires: naturals, Ansatz: "basic-layer", Layers: 1}, 1)
	schedule := chordSchedule()
	before, err := ScheduleLoss(m, schedule)
	require.NoError(t, err)

	res, err := Train(m, newConfig(t, 300, 1, optim.Adam, 0.05, schedule))
	require.NoError(t, err)
	require.Len(t, res.Losses, 300)

	drawn := map[string]int{}
	for i, loss := range res.Losses {
		require.False(t, math.IsNaN(loss) || math.IsInf(loss, 0), "epoch %d", i)
		drawn[res.Melodies[i]]++
	}
	assert.Len(t, drawn, 3)
	for _, melody := range []string{"C", "D", model.RestNote} {
		assert.Positive(t, drawn[melody], melody)
	}

	after, err := ScheduleLoss(m, schedule)
	require.NoError(t, err)
	assert.Less(t, after, before)
}
