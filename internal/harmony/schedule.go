package harmony

import (
	"fmt"
	"sort"

	"qusic/internal/basis"
	"qusic/internal/model"
)

// Schedule maps each melody note, plus the rest sentinel, to its target harmony.
type Schedule map[string][]string

// NewSchedule pairs chords with register wires by index and adds an empty
// harmony for the rest note.
func NewSchedule(codec *basis.Codec, chords []string) (Schedule, error) {
	if len(chords) != codec.Len() {
		return nil, fmt.Errorf("%w: %d chords for %d wires", model.ErrInvalidConfig, len(chords), codec.Len())
	}
	voiced, err := Triplets(chords, codec)
	if err != nil {
		return nil, err
	}
	s := make(Schedule, codec.Len()+1)
	for i, wire := range codec.Wires() {
		s[wire] = voiced[i]
	}
	s[model.RestNote] = []string{}
	return s, nil
}

func (s Schedule) Targets(note string) ([]string, bool) {
	targets, ok := s[note]
	if !ok {
		return nil, false
	}
	return append([]string{}, targets...), true
}

// Validate checks for the rest entry and that every note and target is on
// the register. Wires without an entry are never drawn as melody.
func (s Schedule) Validate(codec *basis.Codec) error {
	rest, ok := s[model.RestNote]
	if !ok {
		return fmt.Errorf("%w: schedule has no rest entry", model.ErrInvalidConfig)
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: rest maps to %v, want no wires", model.ErrInvalidConfig, rest)
	}
	for _, note := range s.Notes() {
		if note != model.RestNote && !codec.Has(note) {
			return fmt.Errorf("%w: schedule note %q is not a wire", model.ErrInvalidWire, note)
		}
		for _, target := range s[note] {
			if !codec.Has(target) {
				return fmt.Errorf("%w: target %q for %q is not a wire", model.ErrInvalidWire, target, note)
			}
		}
	}
	return nil
}

// Melodies lists the drawable notes: scheduled wires in register order, then the rest note.
func (s Schedule) Melodies(codec *basis.Codec) []string {
	out := make([]string, 0, len(s))
	for _, wire := range codec.Wires() {
		if _, ok := s[wire]; ok {
			out = append(out, wire)
		}
	}
	if _, ok := s[model.RestNote]; ok {
		out = append(out, model.RestNote)
	}
	return out
}

// Notes lists schedule keys in sorted order.
func (s Schedule) Notes() []string {
	notes := make([]string, 0, len(s))
	for note := range s {
		notes = append(notes, note)
	}
	sort.Strings(notes)
	return notes
}
