package waveform

import "fmt"

// Decoder converts samples as payload chunks arrive. It is an io.Writer so it
// can be handed to a block reader directly. A byte left over at the end of a
// chunk is kept and joined with the next one, so the result does not depend on
// how the payload was split.
type Decoder struct {
	scale   Scale
	emit    func(index int, v float64) error
	pending []byte
	n       int
}

// NewDecoder returns a decoder that calls emit for every sample in order.
// An emit error stops the write and is returned from it; the byte count then
// includes the sample that was handed to emit.
func NewDecoder(s Scale, emit func(index int, v float64) error) *Decoder {
	return &Decoder{scale: s, emit: emit}
}

func (d *Decoder) Write(p []byte) (int, error) {
	written := len(p)
	if len(d.pending) == 1 && len(p) > 0 {
		word := []byte{d.pending[0], p[0]}
		d.pending = d.pending[:0]
		p = p[1:]
		if err := d.put(word); err != nil {
			return 1, err
		}
	}
	for len(p) >= 2 {
		if err := d.put(p[:2]); err != nil {
			return written - len(p) + 2, err
		}
		p = p[2:]
	}
	if len(p) == 1 {
		d.pending = append(d.pending[:0], p[0])
	}
	return written, nil
}

func (d *Decoder) put(word []byte) error {
	v := d.scale.Value(sample(word))
	i := d.n
	d.n++
	return d.emit(i, v)
}

// Count returns the number of samples decoded so far.
func (d *Decoder) Count() int {
	return d.n
}

// Close reports ErrOddLength if the payload ended in the middle of a sample.
func (d *Decoder) Close() error {
	if len(d.pending) != 0 {
		return fmt.Errorf("%w: trailing byte after %d samples", ErrOddLength, d.n)
	}
	return nil
}
