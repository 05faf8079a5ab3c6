// Package basis maps note names onto wire bit-vectors and back.
package basis

import (
	"fmt"
	"strings"

	"qusic/internal/model"
)

// Codec is an ordered, immutable register of wire names.
type Codec struct {
	wires []string
	index map[string]int
}

func NewCodec(wires []string) (*Codec, error) {
	if len(wires) == 0 {
		return nil, fmt.Errorf("%w: empty wire register", model.ErrInvalidConfig)
	}
	if len(wires) > model.MaxWires {
		return nil, fmt.Errorf("%w: %d wires exceeds limit %d", model.ErrInvalidConfig, len(wires), model.MaxWires)
	}
	index := make(map[string]int, len(wires))
	for i, name := range wires {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty wire name at %d", model.ErrInvalidConfig, i)
		}
		if name == model.RestNote {
			return nil, fmt.Errorf("%w: %q is reserved for rests", model.ErrInvalidConfig, name)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate wire %q", model.ErrInvalidConfig, name)
		}
		index[name] = i
	}
	return &Codec{wires: append([]string(nil), wires...), index: index}, nil
}

func (c *Codec) Len() int {
	return len(c.wires)
}

func (c *Codec) Wires() []string {
	return append([]string(nil), c.wires...)
}

func (c *Codec) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

func (c *Codec) Index(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", model.ErrInvalidWire, name)
	}
	return i, nil
}

// Encode sets bit i iff wire i is named in names. Unknown names are ignored.
func (c *Codec) Encode(names []string) []int {
	bits := make([]int, len(c.wires))
	for _, name := range names {
		if i, ok := c.index[name]; ok {
			bits[i] = 1
		}
	}
	return bits
}

func (c *Codec) EncodeIndices(indices []int) ([]int, error) {
	bits := make([]int, len(c.wires))
	for _, i := range indices {
		if i < 0 || i >= len(c.wires) {
			return nil, fmt.Errorf("%w: index %d outside register of %d", model.ErrInvalidWire, i, len(c.wires))
		}
		bits[i] = 1
	}
	return bits, nil
}

// Decode returns the asserted wires in register order.
func (c *Codec) Decode(bits []int) ([]string, error) {
	if len(bits) != len(c.wires) {
		return nil, fmt.Errorf("%w: %d bits for %d wires", model.ErrInvalidShape, len(bits), len(c.wires))
	}
	names := make([]string, 0, len(bits))
	for i, bit := range bits {
		switch bit {
		case 0:
		case 1:
			names = append(names, c.wires[i])
		default:
			return nil, fmt.Errorf("%w: bit %d is %d", model.ErrInvalidShape, i, bit)
		}
	}
	return names, nil
}
