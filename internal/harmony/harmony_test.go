package harmony

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qusic/internal/basis"
	"qusic/internal/model"
)

func naturalCodec(t *testing.T, wires ...string) *basis.Codec {
	t.Helper()
	if len(wires) == 0 {
		wires = DefaultWires()
	}
	c, err := basis.NewCodec(wires)
	require.NoError(t, err)
	return c
}

func TestDiatonicChordsVoiceOnNaturalOctave(t *testing.T) {
	codec := naturalCodec(t)
	got, err := Triplets(DefaultChords(), codec)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"C", "E", "G"},
		{"D", "F", "A"},
		{"E", "G", "B"},
		{"F", "A", "C"},
		{"G", "B", "D"},
		{"A", "C", "E"},
		{"B", "D", "F"},
	}, got)
}

func TestParseChordQualities(t *testing.T) {
	cases := map[string][3]int{
		"C":     {0, 4, 7},
		"CM":    {0, 4, 7},
		"Am":    {9, 0, 4},
		"Bdm":   {11, 2, 5},
		"Bdim":  {11, 2, 5},
		"Caug":  {0, 4, 8},
		"Dsus4": {2, 7, 9},
		"Gsus2": {7, 9, 2},
		"F#m":   {6, 9, 1},
		"Bb":    {10, 2, 5},
		"Ebm":   {3, 6, 10},
	}
	for name, want := range cases {
		c, err := ParseChord(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, c.PitchClasses(), name)
	}

	for _, bad := range []string{"", "H", "Cmaj7", "Xm"} {
		_, err := ParseChord(bad)
		assert.ErrorIs(t, err, model.ErrInvalidConfig, bad)
	}
}

func TestVoiceUsesOctaveWires(t *testing.T) {
	codec := naturalCodec(t, "C4", "D4", "E4", "F4", "G4", "A4", "B4")
	c, err := ParseChord("GM")
	require.NoError(t, err)
	voiced, err := Voice(c, codec)
	require.NoError(t, err)
	assert.Equal(t, []string{"G4", "B4", "D4"}, voiced)

	sharp, err := ParseChord("DM")
	require.NoError(t, err)
	_, err = Voice(sharp, codec)
	assert.ErrorIs(t, err, model.ErrInvalidWire)
}

func TestNoteWireMatching(t *testing.T) {
	codec := naturalCodec(t, "C3", "E3", "C4", "G4")

	cases := map[string]string{
		"C4": "C4",
		"c4": "C4",
		"C":  "C3",
		"e4": "E3",
		"g":  "G4",
		"-":  "",
	}
	for note, want := range cases {
		got, err := NoteWire(codec, note)
		require.NoError(t, err, note)
		assert.Equal(t, want, got, note)
	}

	_, err := NoteWire(codec, "D4")
	assert.ErrorIs(t, err, model.ErrInvalidWire)
	_, err = NoteWire(codec, "Q")
	assert.ErrorIs(t, err, model.ErrInvalidWire)
}

func TestScheduleFromDefaults(t *testing.T) {
	codec := naturalCodec(t)
	s, err := NewSchedule(codec, DefaultChords())
	require.NoError(t, err)
	require.NoError(t, s.Validate(codec))
	assert.Len(t, s, 8)

	targets, ok := s.Targets("C")
	require.True(t, ok)
	assert.Equal(t, []string{"C", "E", "G"}, targets)

	rest, ok := s.Targets(model.RestNote)
	require.True(t, ok)
	assert.Empty(t, rest)

	targets[0] = "mutated"
	again, _ := s.Targets("C")
	assert.Equal(t, "C", again[0])

	_, ok = s.Targets("C#")
	assert.False(t, ok)
}

func TestScheduleValidation(t *testing.T) {
	codec := naturalCodec(t)
	_, err := NewSchedule(codec, []string{"CM", "Dm"})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	s, err := NewSchedule(codec, DefaultChords())
	require.NoError(t, err)

	noRest := Schedule{}
	for k, v := range s {
		if k != model.RestNote {
			noRest[k] = v
		}
	}
	assert.ErrorIs(t, noRest.Validate(codec), model.ErrInvalidConfig)

	partial := Schedule{model.RestNote: {}, "C": {"C", "E", "G"}, "D": {"D", "F", "A"}}
	require.NoError(t, partial.Validate(codec))
	assert.Equal(t, []string{"C", "D", model.RestNote}, partial.Melodies(codec))
	assert.Len(t, s.Melodies(codec), 8)

	unknown := Schedule{model.RestNote: {}, "H": {"C"}}
	assert.ErrorIs(t, unknown.Validate(codec), model.ErrInvalidWire)

	stray := Schedule{}
	for k, v := range s {
		stray[k] = v
	}
	stray["C"] = []string{"C", "Z"}
	assert.ErrorIs(t, stray.Validate(codec), model.ErrInvalidWire)
}
