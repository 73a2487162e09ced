package scpi

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// BlockMarker starts every definite-length block.
const BlockMarker = '#'

// Chunk sizes.
const (
	DefaultChunkSize = 4096 // raw byte transports
	DriverChunkSize  = 1000 // driver-assisted transports
)

// BlockHeader is a parsed "#<n><digits>" header.
type BlockHeader struct {
	Digits uint8  // number of length digits, 1..9
	Length uint64 // declared payload length
}

// Size returns the encoded header size in bytes.
func (h BlockHeader) Size() int {
	return 2 + int(h.Digits)
}

// ParseBlockHeader parses a block header at the start of b. It returns
// io.ErrUnexpectedEOF if b is too short to hold the whole header.
func ParseBlockHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if len(b) == 0 {
		return h, io.ErrUnexpectedEOF
	}
	if b[0] != BlockMarker {
		return h, fmt.Errorf("%w: expected '#', got 0x%02x", ErrMalformedHeader, b[0])
	}
	if len(b) < 2 {
		return h, io.ErrUnexpectedEOF
	}
	if b[1] < '1' || b[1] > '9' {
		return h, fmt.Errorf("%w: invalid digit count 0x%02x", ErrMalformedHeader, b[1])
	}
	h.Digits = b[1] - '0'
	if len(b) < h.Size() {
		return h, io.ErrUnexpectedEOF
	}
	for _, c := range b[2:h.Size()] {
		if c < '0' || c > '9' {
			return h, fmt.Errorf("%w: non-digit 0x%02x in length field", ErrMalformedHeader, c)
		}
		h.Length = h.Length*10 + uint64(c-'0')
	}
	return h, nil
}

// blockStrategy hides how the header and body are obtained.
type blockStrategy interface {
	// header returns the declared length and any payload bytes that were
	// received together with the header.
	header() (uint64, []byte, error)

	// body returns up to max bytes and whether the message has ended.
	body(max int) ([]byte, bool, error)
}

// driverStrategy uses the header/body primitives of a BlockTransport.
type driverStrategy struct {
	bt BlockTransport
}

func (s driverStrategy) header() (uint64, []byte, error) {
	length, err := s.bt.ReceiveBlockHeader()
	if err != nil {
		return 0, nil, transportError("receive block header", err)
	}
	return length, nil, nil
}

func (s driverStrategy) body(max int) ([]byte, bool, error) {
	chunk, last, err := s.bt.ReceiveBlockBody(max)
	if err != nil {
		return nil, false, transportError("receive block body", err)
	}
	return chunk, last, nil
}

// asciiStrategy parses the header itself from raw reads.
type asciiStrategy struct {
	t     Transport
	chunk int
	reads int
}

func (s *asciiStrategy) header() (uint64, []byte, error) {
	var buf []byte
	for {
		h, err := ParseBlockHeader(buf)
		if err == nil {
			return h.Length, buf[h.Size():], nil
		}
		if err != io.ErrUnexpectedEOF {
			return 0, nil, err
		}
		chunk, err := s.t.Receive(s.chunk)
		s.reads++
		if err != nil {
			return 0, nil, transportError("receive", err)
		}
		if len(chunk) == 0 {
			return 0, nil, fmt.Errorf("%w: no data while reading header", ErrShortBlock)
		}
		buf = append(buf, chunk...)
	}
}

func (s *asciiStrategy) body(max int) ([]byte, bool, error) {
	chunk, err := s.t.Receive(max)
	s.reads++
	if err != nil {
		return nil, false, transportError("receive", err)
	}
	return chunk, false, nil
}

// blockTransfer tracks one block in flight.
type blockTransfer struct {
	declared uint64
	received uint64
	chunks   int
}

func (x *blockTransfer) remaining() uint64 {
	return x.declared - x.received
}

func (x *blockTransfer) complete() bool {
	return x.received == x.declared
}

// accept appends at most the remaining payload bytes of chunk to w and
// returns the number of excess bytes that were discarded.
func (x *blockTransfer) accept(w io.Writer, chunk []byte) (int, error) {
	n := uint64(len(chunk))
	if n > x.remaining() {
		n = x.remaining()
	}
	if n > 0 {
		if _, err := w.Write(chunk[:n]); err != nil {
			return 0, err
		}
		x.received += n
		x.chunks++
	}
	return len(chunk) - int(n), nil
}

// BlockReader receives one definite-length block from a transport.
//
// If the transport implements BlockTransport its header and body primitives
// are used, otherwise the header is parsed from raw reads. Both paths share
// the same body rule: every request asks for min(ChunkSize, remaining+trailer)
// bytes, bytes past the declared length are discarded, and after the payload
// exactly Trailer bytes (the message terminator) are consumed.
type BlockReader struct {
	t Transport

	ChunkSize int // preferred request size
	Trailer   int // terminator bytes following the payload

	// Progress is called after every accepted chunk. Optional.
	Progress func(received, total uint64)
}

// NewBlockReader returns a reader with the chunk size suited to the
// transport and a one byte LF trailer.
func NewBlockReader(t Transport) *BlockReader {
	chunk := DefaultChunkSize
	if _, ok := t.(BlockTransport); ok {
		chunk = DriverChunkSize
	}
	return &BlockReader{
		t:         t,
		ChunkSize: chunk,
		Trailer:   1,
	}
}

func (r *BlockReader) strategy() blockStrategy {
	if bt, ok := r.t.(BlockTransport); ok {
		return driverStrategy{bt: bt}
	}
	return &asciiStrategy{t: r.t, chunk: r.chunkSize()}
}

func (r *BlockReader) chunkSize() int {
	if r.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return r.ChunkSize
}

// Read receives a block and writes exactly the declared number of payload
// bytes to w. It returns the payload length.
func (r *BlockReader) Read(w io.Writer) (uint64, error) {
	st := r.strategy()

	declared, pending, err := st.header()
	if err != nil {
		return 0, &BlockError{Phase: PhaseHeader, Err: err}
	}
	log.Debug().Uint64("length", declared).Int("chunk", r.chunkSize()).Msg("block header")

	x := &blockTransfer{declared: declared}
	trailer := r.Trailer
	if trailer < 0 {
		trailer = 0
	}

	// Payload bytes that arrived together with the header.
	if len(pending) > 0 {
		excess, err := x.accept(w, pending)
		if err != nil {
			return x.received, &BlockError{Phase: PhaseSink, Received: x.received, Declared: declared, Err: err}
		}
		trailer = max(trailer-excess, 0)
		if x.received > 0 {
			r.progress(x)
		}
	}

	for !x.complete() || trailer > 0 {
		want := uint64(r.chunkSize())
		if rest := x.remaining() + uint64(trailer); rest < want {
			want = rest
		}

		chunk, last, err := st.body(int(want))
		if err != nil {
			return x.received, &BlockError{Phase: PhaseBody, Received: x.received, Declared: declared, Err: err}
		}
		if len(chunk) == 0 && !last {
			return x.received, &BlockError{Phase: PhaseBody, Received: x.received, Declared: declared,
				Err: fmt.Errorf("%w: transport returned no data", ErrShortBlock)}
		}

		before := x.received
		excess, err := x.accept(w, chunk)
		if err != nil {
			return x.received, &BlockError{Phase: PhaseSink, Received: x.received, Declared: declared, Err: err}
		}
		trailer = max(trailer-excess, 0)
		if x.received != before {
			r.progress(x)
		}

		if last {
			if !x.complete() {
				return x.received, &BlockError{Phase: PhaseBody, Received: x.received, Declared: declared,
					Err: fmt.Errorf("%w: message ended early", ErrShortBlock)}
			}
			break
		}
	}

	log.Debug().Uint64("length", declared).Int("chunks", x.chunks).Msg("block complete")
	return x.received, nil
}

// ReadAll receives a block and returns exactly its payload.
func (r *BlockReader) ReadAll() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := r.Read(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *BlockReader) progress(x *blockTransfer) {
	if r.Progress != nil {
		r.Progress(x.received, x.declared)
	}
}
