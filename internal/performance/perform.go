// Package performance plays a score through a trained musician and records
// the melody and harmony lines.
package performance

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"qusic/internal/model"
	"qusic/internal/musician"
)

type Mode int

const (
	// ModeSampled draws joint measurements of the circuit per note; the
	// first shot is the played harmony.
	ModeSampled Mode = iota
	// ModeScripted bypasses the circuit and plays the scale triad on every
	// melody note, so nothing is ever mis-fingered.
	ModeScripted
)

func (m Mode) String() string {
	switch m {
	case ModeSampled:
		return "sampled"
	case ModeScripted:
		return "scripted"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sampled", "sample":
		return ModeSampled, nil
	case "scripted", "script", "perfect":
		return ModeScripted, nil
	default:
		return 0, fmt.Errorf("%w: unknown performance mode %q", model.ErrInvalidConfig, name)
	}
}

// triadOffsets are the scale steps stacked on a melody note in scripted mode.
var triadOffsets = []int{0, 2, 4}

type Options struct {
	Mode Mode
	// Shots per note in sampled mode. Zero uses the model's configured shots.
	Shots  int
	Rand   *rand.Rand
	Logger *zerolog.Logger
}

// Perform plays score through m and returns the recording. The recording id
// is freshly generated; ModelID is left for the caller.
func Perform(m *musician.Musician, score []string, opts Options) (model.Recording, error) {
	if m == nil {
		return model.Recording{}, fmt.Errorf("%w: no musician", model.ErrInvalidConfig)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "performance").Str("mode", opts.Mode.String()).Logger()

	melody, err := Melody(m.Codec(), score)
	if err != nil {
		return model.Recording{}, err
	}

	var (
		played [][]int
		takes  [][][]int
	)
	switch opts.Mode {
	case ModeSampled:
		if opts.Rand == nil {
			return model.Recording{}, fmt.Errorf("%w: sampled performance needs a random source", model.ErrInvalidConfig)
		}
		shots := opts.Shots
		if shots <= 0 {
			shots = m.Config().Shots
		}
		played = make([][]int, 0, len(melody))
		if shots > 1 {
			takes = make([][][]int, 0, len(melody))
		}
		for _, bits := range melody {
			samples, err := m.Sample(bits, shots, opts.Rand)
			if err != nil {
				return model.Recording{}, err
			}
			played = append(played, samples[0])
			if shots > 1 {
				takes = append(takes, samples)
			}
		}
	case ModeScripted:
		played = Scripted(melody)
	default:
		return model.Recording{}, fmt.Errorf("%w: unknown performance mode %s", model.ErrInvalidConfig, opts.Mode)
	}

	logger.Debug().Int("notes", len(score)).Msg("performance finished")
	return model.Recording{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: musician.ConfigSchemaVersion,
			CodecVersion:  musician.ConfigCodecVersion,
		},
		ID:           uuid.NewString(),
		Mode:         opts.Mode.String(),
		Wires:        m.Codec().Wires(),
		Score:        append([]string(nil), score...),
		Melody:       melody,
		Harmony:      played,
		Takes:        takes,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Scripted stacks each active melody wire with the wires two and four steps
// above it, wrapping around the register.
func Scripted(melody [][]int) [][]int {
	out := make([][]int, len(melody))
	for i, row := range melody {
		n := len(row)
		harmony := make([]int, n)
		for k, bit := range row {
			if bit == 0 {
				continue
			}
			for _, step := range triadOffsets {
				harmony[(k+step)%n] = 1
			}
		}
		out[i] = harmony
	}
	return out
}

// Lines renders a recording as wire names per step, melody first.
func Lines(rec model.Recording) ([][2][]string, error) {
	if len(rec.Melody) != len(rec.Harmony) {
		return nil, fmt.Errorf("%w: %d melody rows, %d harmony rows", model.ErrInvalidShape, len(rec.Melody), len(rec.Harmony))
	}
	out := make([][2][]string, len(rec.Melody))
	for i := range rec.Melody {
		out[i] = [2][]string{names(rec.Wires, rec.Melody[i]), names(rec.Wires, rec.Harmony[i])}
	}
	return out, nil
}

func names(wires []string, bits []int) []string {
	out := []string{}
	for i, bit := range bits {
		if bit == 1 && i < len(wires) {
			out = append(out, wires[i])
		}
	}
	return out
}
