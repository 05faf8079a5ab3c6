package model

import (
	"fmt"
	"math/rand"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version" msgpack:"schema_version"`
	CodecVersion  int `json:"codec_version" msgpack:"codec_version"`
}

// RestNote is the melody sentinel for a break; it maps to no harmony wires.
const RestNote = "-"

// MaxWires bounds the register so the 2^n state vector stays small.
const MaxWires = 16

// MaxShots bounds the joint samples drawn from one simulated state.
const MaxShots = 1 << 16

// ModelConfig is everything needed to rebuild an equivalent simulator.
type ModelConfig struct {
	VersionedRecord
	Wires  []string   `json:"wires" msgpack:"wires"`
	Ansatz string     `json:"ansatz" msgpack:"ansatz"`
	Layers int        `json:"layers" msgpack:"layers"`
	Width  int        `json:"width" msgpack:"width"`
	Ranges []int      `json:"ranges,omitempty" msgpack:"ranges,omitempty"`
	Seed   int64      `json:"seed" msgpack:"seed"`
	Shots  int        `json:"shots" msgpack:"shots"`
	Chords [][]string `json:"chords,omitempty" msgpack:"chords,omitempty"`
}

func (c ModelConfig) Clone() ModelConfig {
	out := c
	out.Wires = append([]string(nil), c.Wires...)
	out.Ranges = append([]int(nil), c.Ranges...)
	if c.Chords != nil {
		out.Chords = make([][]string, len(c.Chords))
		for i, chord := range c.Chords {
			out.Chords[i] = append([]string(nil), chord...)
		}
	}
	return out
}

// Tensor is a dense row-major parameter tensor.
type Tensor struct {
	Shape []int     `json:"shape" msgpack:"shape"`
	Data  []float64 `json:"data" msgpack:"data"`
}

func ShapeSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

func ZeroTensor(shape []int) Tensor {
	return Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, ShapeSize(shape)),
	}
}

// RandomTensor draws standard normal entries from rng.
func RandomTensor(shape []int, rng *rand.Rand) Tensor {
	t := ZeroTensor(shape)
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64()
	}
	return t
}

func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

func (t Tensor) Len() int {
	return len(t.Data)
}

func (t Tensor) Validate() error {
	for _, dim := range t.Shape {
		if dim <= 0 {
			return fmt.Errorf("%w: non-positive dimension in %v", ErrInvalidShape, t.Shape)
		}
	}
	if want := ShapeSize(t.Shape); want != len(t.Data) {
		return fmt.Errorf("%w: shape %v holds %d values, got %d", ErrInvalidShape, t.Shape, want, len(t.Data))
	}
	return nil
}

func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type ModelRecord struct {
	VersionedRecord
	ID           string      `json:"id" msgpack:"id"`
	Config       ModelConfig `json:"config" msgpack:"config"`
	Params       Tensor      `json:"params" msgpack:"params"`
	CreatedAtUTC string      `json:"created_at_utc" msgpack:"created_at_utc"`
}

type ModelSummary struct {
	ID           string `json:"id"`
	Ansatz       string `json:"ansatz"`
	Wires        int    `json:"wires"`
	Params       int    `json:"params"`
	CreatedAtUTC string `json:"created_at_utc"`
}

type TrainingRecord struct {
	VersionedRecord
	RunID        string    `json:"run_id" msgpack:"run_id"`
	ModelID      string    `json:"model_id" msgpack:"model_id"`
	Optimizer    string    `json:"optimizer" msgpack:"optimizer"`
	StepSize     float64   `json:"step_size" msgpack:"step_size"`
	Epochs       int       `json:"epochs" msgpack:"epochs"`
	Seed         int64     `json:"seed" msgpack:"seed"`
	Losses       []float64 `json:"losses" msgpack:"losses"`
	Melodies     []string  `json:"melodies" msgpack:"melodies"`
	CreatedAtUTC string    `json:"created_at_utc" msgpack:"created_at_utc"`
}

// Recording pairs each melody basis vector with the harmony that was played.
// Takes keeps every shot per note when a performance drew more than one.
type Recording struct {
	VersionedRecord
	ID           string    `json:"id" msgpack:"id"`
	ModelID      string    `json:"model_id" msgpack:"model_id"`
	Mode         string    `json:"mode" msgpack:"mode"`
	Wires        []string  `json:"wires" msgpack:"wires"`
	Score        []string  `json:"score" msgpack:"score"`
	Melody       [][]int   `json:"melody" msgpack:"melody"`
	Harmony      [][]int   `json:"harmony" msgpack:"harmony"`
	Takes        [][][]int `json:"takes,omitempty" msgpack:"takes,omitempty"`
	CreatedAtUTC string    `json:"created_at_utc" msgpack:"created_at_utc"`
}
