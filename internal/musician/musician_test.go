package musician

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qusic/internal/model"
)

var naturals = []string{"C", "D", "E", "F", "G", "A", "B"}

func basicConfig() model.ModelConfig {
	return model.ModelConfig{Wires: naturals, Ansatz: "BasicEntanglerLayers", Layers: 1}
}

func TestNewNormalizesConfig(t *testing.T) {
	m, err := New(basicConfig(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	cfg := m.Config()
	assert.Equal(t, "basic-layer", cfg.Ansatz)
	assert.Equal(t, 1, cfg.Shots)
	assert.Equal(t, ConfigSchemaVersion, cfg.SchemaVersion)
	assert.Equal(t, []int{1, 7}, m.Shape())
	assert.Equal(t, 7, m.Weights().Len())

	_, err = New(model.ModelConfig{Wires: []string{"C", "C"}, Ansatz: "basic", Layers: 1}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	_, err = New(model.ModelConfig{Wires: naturals, Ansatz: "QAOA", Layers: 1}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestInitialWeightsFollowSeed(t *testing.T) {
	a, err := New(basicConfig(), rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	b, err := New(basicConfig(), rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	assert.Equal(t, a.Weights(), b.Weights())

	zero, err := New(basicConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 7), zero.Weights().Data)
}

func TestSetWeightsValidatesAndCopies(t *testing.T) {
	m, err := New(basicConfig(), nil)
	require.NoError(t, err)

	err = m.SetWeights(model.ZeroTensor([]int{2, 7}))
	assert.ErrorIs(t, err, model.ErrInvalidShape)
	err = m.SetWeights(model.Tensor{Shape: []int{1, 7}, Data: []float64{1}})
	assert.ErrorIs(t, err, model.ErrInvalidShape)

	w := model.ZeroTensor([]int{1, 7})
	w.Data[0] = 0.25
	require.NoError(t, m.SetWeights(w))
	w.Data[0] = 9
	assert.Equal(t, 0.25, m.Weights().Data[0])

	out := m.Weights()
	out.Data[0] = 7
	assert.Equal(t, 0.25, m.Weights().Data[0])
}

func TestZeroWeightsKeepBasisState(t *testing.T) {
	m, err := New(model.ModelConfig{Wires: naturals, Ansatz: "strong-layer", Layers: 1}, nil)
	require.NoError(t, err)

	bits := m.Encode([]string{"C"})
	e, err := m.Expectation(bits)
	require.NoError(t, err)
	// zero rotations leave only the CNOT pattern acting on |C>
	for _, v := range e {
		assert.InDelta(t, 1, v*v, 1e-12)
	}
}

func TestFixedChordPlaysTriad(t *testing.T) {
	cfg := model.ModelConfig{
		Wires:  naturals,
		Ansatz: "fixed-chord",
		Chords: [][]string{{"C", "E", "G"}, {"D", "F", "A"}},
		Shots:  5,
	}
	m, err := New(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, m.Shape())

	rng := rand.New(rand.NewSource(3))
	shots, err := m.Shots(m.Encode([]string{"C"}), rng)
	require.NoError(t, err)
	require.Len(t, shots, 5)
	for _, shot := range shots {
		names, err := m.Decode(shot)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "E", "G"}, names)
	}

	out, err := m.Forward(m.Encode([]string{"D"}), ModeExpectation, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1, 1, -1, 1, -1, 1}, out.Expectations)

	cfg.Chords = [][]string{{"C", "E", "X"}}
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, model.ErrInvalidWire)
}

func TestSampleNeedsRandomSource(t *testing.T) {
	m, err := New(basicConfig(), nil)
	require.NoError(t, err)
	_, err = m.Play(m.Encode(nil), nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	_, err = m.Forward(m.Encode(nil), ModeSample, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	_, err = m.Forward(m.Encode(nil), Mode(5), nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestSampleBoundsShots(t *testing.T) {
	cfg := model.ModelConfig{Wires: naturals, Ansatz: "fixed-chord", Shots: model.MaxShots + 1}
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	cfg.Shots = 3
	m, err := New(cfg, nil)
	require.NoError(t, err)
	bits := m.Encode([]string{"C", "G"})
	rng := rand.New(rand.NewSource(1))

	samples, err := m.Sample(bits, 4, rng)
	require.NoError(t, err)
	assert.Equal(t, [][]int{bits, bits, bits, bits}, samples)

	shots, err := m.Shots(bits, rng)
	require.NoError(t, err)
	assert.Len(t, shots, 3)

	for _, n := range []int{0, -1, model.MaxShots + 1} {
		_, err := m.Sample(bits, n, rng)
		assert.ErrorIs(t, err, model.ErrInvalidConfig, n)
	}
}

func TestSingleShotSampleMatchesPlay(t *testing.T) {
	m, err := New(basicConfig(), rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	bits := m.Encode([]string{"D"})

	played, err := m.Play(bits, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	sampled, err := m.Sample(bits, 1, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Equal(t, [][]int{played}, sampled)
}

func TestRecordRoundTripBuildsIndependentModel(t *testing.T) {
	cfg := model.ModelConfig{Wires: naturals, Ansatz: "RandomLayers", Layers: 2, Width: 7, Seed: 42}
	m, err := New(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	rec := m.Record("m-1")
	assert.Equal(t, "m-1", rec.ID)
	assert.NotEmpty(t, rec.CreatedAtUTC)

	loaded, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, m.Weights(), loaded.Weights())
	assert.Equal(t, m.Program(), loaded.Program())

	bits := m.Encode([]string{"E"})
	want, err := m.Expectation(bits)
	require.NoError(t, err)
	got, err := loaded.Expectation(bits)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	rec.Params.Data[0] = 100
	assert.NotEqual(t, 100.0, loaded.Weights().Data[0])
}

func TestRenderings(t *testing.T) {
	m, err := New(basicConfig(), nil)
	require.NoError(t, err)
	assert.Contains(t, m.Draw(), "RX(0.0000) C")
	assert.Equal(t, 14, m.Summary().Ops)

	qasm, err := m.QASM(nil)
	require.NoError(t, err)
	assert.Contains(t, qasm, "qubit[7] q;")
}
