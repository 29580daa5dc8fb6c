package generator

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidSeed is returned for a seed buffer that cannot supply the
// requested number of bytes.
var ErrInvalidSeed = errors.New("generator: invalid seed")

// Generator produces initial inputs.
type Generator interface {
	// Generate returns a fresh input the caller owns.
	Generate() ([]byte, error)
	// GenerateDummy returns a zero-filled input of the generator's size.
	GenerateDummy() []byte
}

// Seed replays a caller-supplied buffer. The buffer is read on every
// Generate call and never retained in an output.
type Seed struct {
	buf  []byte
	size int
}

// NewSeed wraps the first size bytes of buf.
func NewSeed(buf []byte, size int) (*Seed, error) {
	if size < 0 || size > len(buf) {
		return nil, fmt.Errorf("%w: size %d with %d bytes available", ErrInvalidSeed, size, len(buf))
	}
	return &Seed{buf: buf, size: size}, nil
}

func (g *Seed) Generate() ([]byte, error) {
	out := make([]byte, g.size)
	copy(out, g.buf[:g.size])
	return out, nil
}

func (g *Seed) GenerateDummy() []byte {
	return make([]byte, g.size)
}

// RandomBytes generates uniformly random inputs of a fixed size.
type RandomBytes struct {
	size int
	rng  *rand.Rand
}

func NewRandomBytes(size int, rng *rand.Rand) *RandomBytes {
	return &RandomBytes{size: size, rng: rng}
}

func (g *RandomBytes) Generate() ([]byte, error) {
	out := make([]byte, g.size)
	for i := range out {
		out[i] = byte(g.rng.Intn(256))
	}
	return out, nil
}

func (g *RandomBytes) GenerateDummy() []byte {
	return make([]byte, g.size)
}

// Initial draws exactly n inputs from g, failing on the first error.
func Initial(g Generator, n int) ([][]byte, error) {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		in, err := g.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate initial input %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}
