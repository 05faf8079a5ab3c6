// Package harmony resolves chord names and score notes onto a wire register
// and builds the melody-to-chord training schedule.
package harmony

import (
	"fmt"
	"strconv"
	"strings"

	"qusic/internal/basis"
	"qusic/internal/model"
)

type Quality int

const (
	Major Quality = iota
	Minor
	Diminished
	Augmented
	Sus2
	Sus4
)

var qualityIntervals = map[Quality][3]int{
	Major:      {0, 4, 7},
	Minor:      {0, 3, 7},
	Diminished: {0, 3, 6},
	Augmented:  {0, 4, 8},
	Sus2:       {0, 2, 7},
	Sus4:       {0, 5, 7},
}

var letterPitch = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// DefaultWires is a single natural octave without accidentals.
func DefaultWires() []string {
	return []string{"C", "D", "E", "F", "G", "A", "B"}
}

// DefaultChords are the diatonic triads of C major, paired with DefaultWires by index.
func DefaultChords() []string {
	return []string{"CM", "Dm", "Em", "FM", "GM", "Am", "Bdm"}
}

// Note is a parsed note name such as "C", "F#3" or "bb4".
type Note struct {
	PitchClass int
	Octave     int
	HasOctave  bool
}

func ParseNote(name string) (Note, error) {
	pc, rest, err := parseRoot(name)
	if err != nil {
		return Note{}, err
	}
	if rest == "" {
		return Note{PitchClass: pc}, nil
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return Note{}, fmt.Errorf("%w: bad octave in note %q", model.ErrInvalidWire, name)
	}
	return Note{PitchClass: pc, Octave: octave, HasOctave: true}, nil
}

func parseRoot(name string) (int, string, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, "", fmt.Errorf("%w: empty note", model.ErrInvalidWire)
	}
	pc, ok := letterPitch[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, "", fmt.Errorf("%w: unknown note letter in %q", model.ErrInvalidWire, name)
	}
	s = s[1:]
	if len(s) > 0 {
		switch s[0] {
		case '#':
			pc++
			s = s[1:]
		case 'b':
			pc--
			s = s[1:]
		}
	}
	return (pc + 12) % 12, s, nil
}

type Chord struct {
	Name    string
	Root    int
	Quality Quality
}

// ParseChord accepts a root with optional accidental followed by a quality:
// "" or "M" (major), "m", "dm" or "dim", "aug" or "+", "sus2", "sus4".
func ParseChord(name string) (Chord, error) {
	root, suffix, err := parseRoot(name)
	if err != nil {
		return Chord{}, fmt.Errorf("%w: chord %q", model.ErrInvalidConfig, name)
	}
	var q Quality
	switch suffix {
	case "", "M", "maj":
		q = Major
	case "m", "min":
		q = Minor
	case "dm", "dim", "o":
		q = Diminished
	case "aug", "+":
		q = Augmented
	case "sus2":
		q = Sus2
	case "sus4", "sus":
		q = Sus4
	default:
		return Chord{}, fmt.Errorf("%w: unknown chord quality %q in %q", model.ErrInvalidConfig, suffix, name)
	}
	return Chord{Name: strings.TrimSpace(name), Root: root, Quality: q}, nil
}

// PitchClasses returns root, third and fifth.
func (c Chord) PitchClasses() [3]int {
	iv := qualityIntervals[c.Quality]
	var out [3]int
	for i, step := range iv {
		out[i] = (c.Root + step) % 12
	}
	return out
}

// Voice maps the chord onto register wires as (root, third, fifth). Each
// tone uses the first wire in register order with a matching pitch class.
func Voice(c Chord, codec *basis.Codec) ([]string, error) {
	out := make([]string, 0, 3)
	for _, pc := range c.PitchClasses() {
		wire, ok := wireForPitch(codec, pc)
		if !ok {
			return nil, fmt.Errorf("%w: chord %s needs pitch class %d which no wire carries", model.ErrInvalidWire, c.Name, pc)
		}
		out = append(out, wire)
	}
	return out, nil
}

// Triplets voices every named chord.
func Triplets(names []string, codec *basis.Codec) ([][]string, error) {
	out := make([][]string, 0, len(names))
	for _, name := range names {
		c, err := ParseChord(name)
		if err != nil {
			return nil, err
		}
		voiced, err := Voice(c, codec)
		if err != nil {
			return nil, err
		}
		out = append(out, voiced)
	}
	return out, nil
}

// NoteWire finds the wire playing a score note. A note without an octave
// matches by pitch class; with an octave it prefers an exact octave match.
func NoteWire(codec *basis.Codec, note string) (string, error) {
	if note == model.RestNote {
		return "", nil
	}
	if codec.Has(note) {
		return note, nil
	}
	want, err := ParseNote(note)
	if err != nil {
		return "", err
	}
	fallback := ""
	for _, wire := range codec.Wires() {
		got, err := ParseNote(wire)
		if err != nil || got.PitchClass != want.PitchClass {
			continue
		}
		if !want.HasOctave || !got.HasOctave || got.Octave == want.Octave {
			return wire, nil
		}
		if fallback == "" {
			fallback = wire
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: no wire plays %q", model.ErrInvalidWire, note)
}

func wireForPitch(codec *basis.Codec, pc int) (string, bool) {
	for _, wire := range codec.Wires() {
		n, err := ParseNote(wire)
		if err == nil && n.PitchClass == pc {
			return wire, true
		}
	}
	return "", false
}
