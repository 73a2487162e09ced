package waveform

import (
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/dazui0019/yokogawa/scpi"
)

func words(values ...int16) []byte {
	b := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func near(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func TestDecode(t *testing.T) {
	s := NewScale(0.5, 0)
	tests := []struct {
		name    string
		payload []byte
		want    []float64
	}{
		{"empty", nil, []float64{}},
		{"zero", []byte{0x00, 0x00}, []float64{0}},
		{"one count", []byte{0x01, 0x00}, []float64{0.5 / 3200}},
		{"full scale", words(3200, -3200), []float64{0.5, -0.5}},
		{"most negative", []byte{0x00, 0x80}, []float64{-32768 * 0.5 / 3200}},
		{"most positive", []byte{0xff, 0x7f}, []float64{32767 * 0.5 / 3200}},
		{"minus one", []byte{0xff, 0xff}, []float64{-0.5 / 3200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.payload, s)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(got) != len(tt.payload)/2 {
				t.Fatalf("Decode() returned %d samples, want %d", len(got), len(tt.payload)/2)
			}
			if !near(got, tt.want) {
				t.Errorf("Decode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeOffset(t *testing.T) {
	s := Scale{VoltsPerDiv: 2, Offset: -1.5, Divisor: 3200}
	got, err := Decode(words(0, 1600), s)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []float64{-1.5, -0.5}
	if !near(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	s := NewScale(0.5, 0)
	raw := []int16{-32768, -1000, -1, 0, 1, 1234, 32767}
	got, err := Decode(words(raw...), s)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	for i, v := range got {
		back := int16(math.Round(v / (0.5 / 3200)))
		if back != raw[i] {
			t.Errorf("sample %d: %v decodes back to %d, want %d", i, v, back, raw[i])
		}
	}
}

func TestDecodeOddLength(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, NewScale(1, 0))
	if !errors.Is(err, ErrOddLength) || !errors.Is(err, scpi.ErrInvariant) {
		t.Errorf("Decode() error = %v, want %v", err, ErrOddLength)
	}
	_, err = Samples([]byte{1}, NewScale(1, 0))
	if !errors.Is(err, scpi.ErrInvariant) {
		t.Errorf("Samples() error = %v, want %v", err, scpi.ErrInvariant)
	}
}

func TestSamplesRestartable(t *testing.T) {
	payload := words(1, 2, 3, 4)
	seq, err := Samples(payload, NewScale(3200, 0))
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	want := []float64{1, 2, 3, 4}
	if !slices.Equal(first, want) || !slices.Equal(second, want) {
		t.Errorf("Samples() = %v then %v, want %v twice", first, second, want)
	}
	for v := range seq {
		if v != 1 {
			t.Errorf("first sample = %v, want 1", v)
		}
		break
	}
}

func TestScaleDefaultDivisor(t *testing.T) {
	s := Scale{VoltsPerDiv: 3200}
	if got := s.Value(5); got != 5 {
		t.Errorf("Value(5) = %v, want 5", got)
	}
}
