package performance

import (
	"fmt"
	"strings"

	"qusic/internal/basis"
	"qusic/internal/harmony"
	"qusic/internal/model"
)

var twinkle = []string{
	"c4", "c4", "g4", "g4", "a4", "a4", "g4", "g4",
	"f4", "f4", "e4", "e4", "d4", "d4", "c4", "c4",
	"g4", "g4", "f4", "f4", "e4", "e4", "d4", "d4",
	"g4", "g4", "f4", "f4", "e4", "e4", "d4", "d4",
	"c4", "c4", "g4", "g4", "a4", "a4", "g4", "g4",
	"f4", "f4", "e4", "e4", "d4", "d4", "c4", "c4",
}

// TwinkleScore returns the Twinkle Twinkle Little Star melody. Without
// octaves every note is reduced to its upper-case letter name.
func TwinkleScore(withOctave bool) []string {
	out := make([]string, len(twinkle))
	for i, note := range twinkle {
		if withOctave {
			out[i] = note
			continue
		}
		out[i] = StripOctave(note)
	}
	return out
}

// StripOctave drops a trailing octave number and upper-cases the letter.
func StripOctave(note string) string {
	note = strings.TrimSpace(note)
	if note == "" || note == model.RestNote {
		return note
	}
	end := len(note)
	for end > 1 && note[end-1] >= '0' && note[end-1] <= '9' {
		end--
	}
	if end > 1 && note[end-1] == '-' {
		end--
	}
	return strings.ToUpper(note[:1]) + note[1:end]
}

// Melody turns a score into one basis vector per note. Rests become the
// all-zero vector.
func Melody(codec *basis.Codec, score []string) ([][]int, error) {
	rows := make([][]int, 0, len(score))
	for i, note := range score {
		wire, err := harmony.NoteWire(codec, note)
		if err != nil {
			return nil, fmt.Errorf("score note %d: %w", i, err)
		}
		if wire == "" {
			rows = append(rows, make([]int, codec.Len()))
			continue
		}
		rows = append(rows, codec.Encode([]string{wire}))
	}
	return rows, nil
}
