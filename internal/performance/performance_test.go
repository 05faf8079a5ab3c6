package performance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qusic/internal/basis"
	"qusic/internal/model"
	"qusic/internal/musician"
)

var naturals = []string{"C", "D", "E", "F", "G", "A", "B"}

func chordMusician(t *testing.T) *musician.Musician {
	t.Helper()
	m, err := musician.New(model.ModelConfig{
		Wires:  naturals,
		Ansatz: "fixed-chord",
		Chords: [][]string{{"C", "E", "G"}, {"D", "F", "A"}},
	}, nil)
	require.NoError(t, err)
	return m
}

func TestTwinkleScore(t *testing.T) {
	withOctave := TwinkleScore(true)
	require.Len(t, withOctave, 48)
	assert.Equal(t, []string{"c4", "c4", "g4", "g4", "a4", "a4", "g4", "g4"}, withOctave[:8])

	plain := TwinkleScore(false)
	require.Len(t, plain, 48)
	assert.Equal(t, []string{"C", "C", "G", "G", "A", "A", "G", "G"}, plain[:8])
	assert.Equal(t, "C", plain[47])
}

func TestStripOctave(t *testing.T) {
	assert.Equal(t, "C", StripOctave("c4"))
	assert.Equal(t, "F#", StripOctave("f#3"))
	assert.Equal(t, "Bb", StripOctave("bb-1"))
	assert.Equal(t, "G", StripOctave("G"))
	assert.Equal(t, model.RestNote, StripOctave(model.RestNote))
}

func TestMelodyEncodesScoreAndRests(t *testing.T) {
	codec, err := basis.NewCodec(naturals)
	require.NoError(t, err)

	rows, err := Melody(codec, []string{"c4", model.RestNote, "A"})
	require.NoError(t, err)
	assert.Equal(t, [][]int{
		{1, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 1, 0},
	}, rows)

	_, err = Melody(codec, []string{"C", "F#"})
	assert.ErrorIs(t, err, model.ErrInvalidWire)
}

func TestSampledPerformanceUsesCircuit(t *testing.T) {
	m := chordMusician(t)
	score := []string{"C", "D", model.RestNote}

	rec, err := Perform(m, score, Options{Mode: ModeSampled, Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "sampled", rec.Mode)
	assert.Equal(t, naturals, rec.Wires)
	assert.Equal(t, score, rec.Score)
	assert.Equal(t, [][]int{
		{1, 0, 1, 0, 1, 0, 0},
		{0, 1, 0, 1, 0, 1, 0},
		{0, 0, 0, 0, 0, 0, 0},
	}, rec.Harmony)

	lines, err := Lines(rec)
	require.NoError(t, err)
	assert.Equal(t, [2][]string{{"C"}, {"C", "E", "G"}}, lines[0])
	assert.Equal(t, [2][]string{{}, {}}, lines[2])

	_, err = Perform(m, score, Options{Mode: ModeSampled})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestSampledPerformanceKeepsEveryShot(t *testing.T) {
	m := chordMusician(t)
	score := []string{"C", "D"}

	rec, err := Perform(m, score, Options{Mode: ModeSampled, Shots: 3, Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)
	require.Len(t, rec.Takes, len(score))
	for i, take := range rec.Takes {
		require.Len(t, take, 3)
		for _, shot := range take {
			assert.Equal(t, rec.Harmony[i], shot)
		}
	}

	single, err := Perform(m, score, Options{Mode: ModeSampled, Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)
	assert.Nil(t, single.Takes)
	assert.Equal(t, rec.Harmony, single.Harmony)

	_, err = Perform(m, score, Options{Mode: ModeSampled, Shots: model.MaxShots + 1, Rand: rand.New(rand.NewSource(1))})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestScriptedPerformanceStacksTriads(t *testing.T) {
	m, err := musician.New(model.ModelConfig{Wires: naturals, Ansatz: "basic-layer", Layers: 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	rec, err := Perform(m, []string{"C", "G", model.RestNote}, Options{Mode: ModeScripted})
	require.NoError(t, err)
	assert.Equal(t, "scripted", rec.Mode)
	assert.Equal(t, [][]int{
		{1, 0, 1, 0, 1, 0, 0},
		{0, 1, 0, 0, 1, 0, 1},
		{0, 0, 0, 0, 0, 0, 0},
	}, rec.Harmony)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("Scripted")
	require.NoError(t, err)
	assert.Equal(t, ModeScripted, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSampled, mode)

	_, err = ParseMode("improvised")
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	_, err = Perform(nil, nil, Options{})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestLinesRejectsRaggedRecording(t *testing.T) {
	_, err := Lines(model.Recording{Melody: [][]int{{1}}, Harmony: nil})
	assert.ErrorIs(t, err, model.ErrInvalidShape)
}
