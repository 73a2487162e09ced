// Package waveform converts raw oscilloscope sample words into physical values.
//
// Samples are 16-bit signed little-endian words. A raw word r maps to
// r*(VoltsPerDiv/Divisor) + Offset.
package waveform

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/dazui0019/yokogawa/scpi"
)

// DefaultDivisor is the number of raw counts per division in WORD format.
const DefaultDivisor = 3200

// ErrOddLength is returned when a payload does not hold whole samples.
var ErrOddLength = fmt.Errorf("%w: odd waveform payload length", scpi.ErrInvariant)

// Scale holds the conversion parameters queried from the instrument.
type Scale struct {
	VoltsPerDiv float64 // :WAVeform:RANGe?
	Offset      float64 // :WAVeform:OFFSet?
	Divisor     float64 // counts per division, DefaultDivisor if zero
}

// NewScale returns a scale using the default divisor.
func NewScale(voltsPerDiv, offset float64) Scale {
	return Scale{VoltsPerDiv: voltsPerDiv, Offset: offset, Divisor: DefaultDivisor}
}

// Step returns the value of one raw count.
func (s Scale) Step() float64 {
	d := s.Divisor
	if d == 0 {
		d = DefaultDivisor
	}
	return s.VoltsPerDiv / d
}

// Value converts one raw sample.
func (s Scale) Value(raw int16) float64 {
	return float64(raw)*s.Step() + s.Offset
}

func sample(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

// Decode converts a complete payload into physical values.
func Decode(payload []byte, s Scale) ([]float64, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(payload))
	}
	out := make([]float64, 0, len(payload)/2)
	step := s.Step()
	for i := 0; i < len(payload); i += 2 {
		out = append(out, float64(sample(payload[i:]))*step+s.Offset)
	}
	return out, nil
}

// Samples returns a lazy sequence over the payload. The sequence may be
// ranged over more than once and does not modify the payload.
func Samples(payload []byte, s Scale) (iter.Seq[float64], error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(payload))
	}
	return func(yield func(float64) bool) {
		step := s.Step()
		for i := 0; i < len(payload); i += 2 {
			if !yield(float64(sample(payload[i:]))*step + s.Offset) {
				return
			}
		}
	}, nil
}
