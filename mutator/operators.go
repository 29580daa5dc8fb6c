package mutator

import (
	"encoding/binary"
	"math/rand"
)

// Operator is one of the fixed havoc mutations.
type Operator uint8

const (
	BitFlip Operator = iota
	ByteInc
	ByteDec
	ByteNeg
	ByteRand
	ByteAdd
	WordAdd
	DwordAdd
	QwordAdd
	ByteInteresting
	WordInteresting
	DwordInteresting

	numOperators
)

// Operators lists every operator in dispatch order.
var Operators = func() []Operator {
	ops := make([]Operator, numOperators)
	for i := range ops {
		ops[i] = Operator(i)
	}
	return ops
}()

var operatorNames = [...]string{
	BitFlip:          "bit-flip",
	ByteInc:          "byte-inc",
	ByteDec:          "byte-dec",
	ByteNeg:          "byte-neg",
	ByteRand:         "byte-rand",
	ByteAdd:          "byte-add",
	WordAdd:          "word-add",
	DwordAdd:         "dword-add",
	QwordAdd:         "qword-add",
	ByteInteresting:  "byte-interesting",
	WordInteresting:  "word-interesting",
	DwordInteresting: "dword-interesting",
}

func (op Operator) String() string {
	if op < numOperators {
		return operatorNames[op]
	}
	return "unknown"
}

// arithMax bounds the magnitude of arithmetic deltas.
const arithMax = 35

var (
	interesting8  = []int8{-128, -1, 0, 1, 16, 32, 64, 100, 127}
	interesting16 = []int16{-128, -1, 0, 1, 16, 32, 64, 100, 127,
		-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767}
	interesting32 = []int32{-128, -1, 0, 1, 16, 32, 64, 100, 127,
		-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767,
		-2147483648, -100663046, -32769, 32768, 65535, 65536, 100663045, 2147483647}
)

// Apply mutates data in place with op and reports whether anything was
// applied. Inputs too short for the operator's width are skipped.
func Apply(op Operator, data []byte, rng *rand.Rand) ([]byte, bool) {
	switch op {
	case BitFlip:
		if len(data) == 0 {
			return data, false
		}
		data[rng.Intn(len(data))] ^= 1 << uint(rng.Intn(8))
	case ByteInc:
		if len(data) == 0 {
			return data, false
		}
		data[rng.Intn(len(data))]++
	case ByteDec:
		if len(data) == 0 {
			return data, false
		}
		data[rng.Intn(len(data))]--
	case ByteNeg:
		if len(data) == 0 {
			return data, false
		}
		i := rng.Intn(len(data))
		data[i] = ^data[i]
	case ByteRand:
		if len(data) == 0 {
			return data, false
		}
		// XOR with a non-zero value so the byte always changes.
		data[rng.Intn(len(data))] ^= byte(1 + rng.Intn(255))
	case ByteAdd:
		if len(data) == 0 {
			return data, false
		}
		i := rng.Intn(len(data))
		d := byte(1 + rng.Intn(arithMax))
		if rng.Intn(2) == 0 {
			data[i] += d
		} else {
			data[i] -= d
		}
	case WordAdd:
		return addWidth(data, 2, rng)
	case DwordAdd:
		return addWidth(data, 4, rng)
	case QwordAdd:
		return addWidth(data, 8, rng)
	case ByteInteresting:
		if len(data) == 0 {
			return data, false
		}
		data[rng.Intn(len(data))] = byte(interesting8[rng.Intn(len(interesting8))])
	case WordInteresting:
		if len(data) < 2 {
			return data, false
		}
		i := rng.Intn(len(data) - 1)
		v := uint16(interesting16[rng.Intn(len(interesting16))])
		order(rng).PutUint16(data[i:], v)
	case DwordInteresting:
		if len(data) < 4 {
			return data, false
		}
		i := rng.Intn(len(data) - 3)
		v := uint32(interesting32[rng.Intn(len(interesting32))])
		order(rng).PutUint32(data[i:], v)
	default:
		return data, false
	}
	return data, true
}

func order(rng *rand.Rand) binary.ByteOrder {
	if rng.Intn(2) == 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// addWidth adds or subtracts a small delta to a little- or big-endian word
// of the given width.
func addWidth(data []byte, width int, rng *rand.Rand) ([]byte, bool) {
	if len(data) < width {
		return data, false
	}
	i := rng.Intn(len(data) - width + 1)
	bo := order(rng)
	d := uint64(1 + rng.Intn(arithMax))
	sub := rng.Intn(2) == 1
	w := data[i : i+width]
	switch width {
	case 2:
		v := uint64(bo.Uint16(w))
		bo.PutUint16(w, uint16(step(v, d, sub)))
	case 4:
		v := uint64(bo.Uint32(w))
		bo.PutUint32(w, uint32(step(v, d, sub)))
	case 8:
		bo.PutUint64(w, step(bo.Uint64(w), d, sub))
	}
	return data, true
}

func step(v, d uint64, sub bool) uint64 {
	if sub {
		return v - d
	}
	return v + d
}
