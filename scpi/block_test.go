package scpi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"
)

func TestParseBlockHeader(t *testing.T) {
	tests := []struct {
		in      string
		want    BlockHeader
		wantErr error
	}{
		{"#15", BlockHeader{Digits: 1, Length: 5}, nil},
		{"#42500xyz", BlockHeader{Digits: 4, Length: 2500}, nil},
		{"#9123456789", BlockHeader{Digits: 9, Length: 123456789}, nil},
		{"#10", BlockHeader{Digits: 1, Length: 0}, nil},
		{"", BlockHeader{}, io.ErrUnexpectedEOF},
		{"#", BlockHeader{}, io.ErrUnexpectedEOF},
		{"#42", BlockHeader{Digits: 4}, io.ErrUnexpectedEOF},
		{"X15", BlockHeader{}, ErrMalformedHeader},
		{"#0", BlockHeader{}, ErrMalformedHeader},
		{"#A5", BlockHeader{}, ErrMalformedHeader},
		{"#31x0", BlockHeader{Digits: 3}, ErrMalformedHeader},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := ParseBlockHeader([]byte(tt.in))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ParseBlockHeader() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("ParseBlockHeader() = %+v, want %+v", got, tt.want)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseBlockHeader() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBlockReaderReassembly(t *testing.T) {
	for _, chunk := range []int{1000, 4096} {
		for _, length := range []int{0, 1, chunk - 1, chunk, chunk + 1, 10000} {
			for _, limit := range []int{0, 1, 7, chunk - 1, chunk, chunk + 1} {
				payload := pattern(length)
				name := fmt.Sprintf("C=%d/L=%d/limit=%d", chunk, length, limit)

				t.Run("ascii/"+name, func(t *testing.T) {
					f := &fakeLink{data: block(payload), limit: limit}
					r := NewBlockReader(f)
					r.ChunkSize = chunk
					checkReassembly(t, r, payload, &f.data)
					checkRequests(t, f.requests, chunk)
				})

				t.Run("driver/"+name, func(t *testing.T) {
					f := &fakeDriver{fakeLink: fakeLink{data: block(payload), limit: limit}}
					r := NewBlockReader(f)
					r.ChunkSize = chunk
					checkReassembly(t, r, payload, &f.data)
					checkRequests(t, f.bodyCalls, chunk)
					if f.headerCalls != 1 {
						t.Errorf("header calls = %d, want 1", f.headerCalls)
					}
					if len(f.requests) != 0 {
						t.Errorf("raw receive calls = %d, want 0", len(f.requests))
					}
				})
			}
		}
	}
}

func checkRequests(t *testing.T, requests []int, chunk int) {
	t.Helper()
	for i, n := range requests {
		if n <= 0 || n > chunk {
			t.Errorf("request %d asked for %d bytes, chunk size is %d", i, n, chunk)
		}
	}
}

func checkReassembly(t *testing.T, r *BlockReader, payload []byte, rest *[]byte) {
	t.Helper()
	var progress uint64
	r.Progress = func(received, total uint64) {
		if received <= progress {
			t.Errorf("progress went from %d to %d", progress, received)
		}
		if total != uint64(len(payload)) {
			t.Errorf("progress total = %d, want %d", total, len(payload))
		}
		progress = received
	}
	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadAll() returned %d bytes, want %d matching bytes", len(got), len(payload))
	}
	if progress != uint64(len(payload)) {
		t.Errorf("final progress = %d, want %d", progress, len(payload))
	}
	if len(*rest) != 0 {
		t.Errorf("%d bytes left unread after block, want terminator consumed", len(*rest))
	}
}

func TestBlockReaderRequestSizes(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		chunk     int
		wantRaw   []int
		wantBody  []int
		wantCalls int
	}{
		// Header arrives with the first raw chunk: 6 + 994, 1000, 506 + LF.
		{"2500 over 1000", 2500, 1000, []int{1000, 1000, 507}, []int{1000, 1000, 501}, 3},
		{"exact chunk", 1000, 1000, []int{1000, 7}, []int{1000, 1}, 2},
		{"empty", 0, 1000, []int{1000}, []int{1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := pattern(tt.length)

			raw := &fakeLink{data: block(payload)}
			r := NewBlockReader(raw)
			r.ChunkSize = tt.chunk
			got, err := r.ReadAll()
			if err != nil {
				t.Fatalf("ascii ReadAll() error = %v", err)
			}
			if len(got) != tt.length {
				t.Errorf("ascii payload length = %d, want %d", len(got), tt.length)
			}
			if !slices.Equal(raw.requests, tt.wantRaw) {
				t.Errorf("ascii receive sizes = %v, want %v", raw.requests, tt.wantRaw)
			}

			drv := &fakeDriver{fakeLink: fakeLink{data: block(payload)}}
			r = NewBlockReader(drv)
			r.ChunkSize = tt.chunk
			got, err = r.ReadAll()
			if err != nil {
				t.Fatalf("driver ReadAll() error = %v", err)
			}
			if len(got) != tt.length {
				t.Errorf("driver payload length = %d, want %d", len(got), tt.length)
			}
			if !slices.Equal(drv.bodyCalls, tt.wantBody) {
				t.Errorf("driver body sizes = %v, want %v", drv.bodyCalls, tt.wantBody)
			}
			if len(drv.bodyCalls) != tt.wantCalls {
				t.Errorf("driver body calls = %d, want %d", len(drv.bodyCalls), tt.wantCalls)
			}
		})
	}
}

func TestBlockReaderTerminatorNotInPayload(t *testing.T) {
	// Payload ends right before the LF; a reader that appends the
	// terminator would return one extra byte.
	payload := []byte("PNG\x00\x01")
	f := &fakeLink{data: block(payload)}
	got, err := NewBlockReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadAll() = %q, want %q", got, payload)
	}
}

func TestBlockReaderMalformedHeader(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no marker", "X4123412341234\n"},
		{"zero digits", "#0abc\n"},
		{"letter digit count", "#x12\n"},
		{"letter in length", "#2a5hello\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeLink{data: []byte(tt.data)}
			var sink bytes.Buffer
			n, err := NewBlockReader(f).Read(&sink)
			if !errors.Is(err, ErrMalformedHeader) {
				t.Fatalf("Read() error = %v, want %v", err, ErrMalformedHeader)
			}
			var be *BlockError
			if !errors.As(err, &be) || be.Phase != PhaseHeader {
				t.Errorf("Read() error = %#v, want header phase BlockError", err)
			}
			if n != 0 || sink.Len() != 0 {
				t.Errorf("Read() wrote %d bytes, want 0", sink.Len())
			}
			if len(f.requests) != 1 {
				t.Errorf("receive calls = %d, want 1 (no body reads)", len(f.requests))
			}
		})
	}
}

func TestBlockReaderMarkerCheckedOnFirstByte(t *testing.T) {
	f := &fakeLink{data: []byte("Z#15hello\n"), limit: 1}
	_, err := NewBlockReader(f).ReadAll()
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("ReadAll() error = %v, want %v", err, ErrMalformedHeader)
	}
	if len(f.requests) != 1 {
		t.Errorf("receive calls = %d, want 1", len(f.requests))
	}
}

func TestBlockReaderShortBlock(t *testing.T) {
	t.Run("ascii timeout", func(t *testing.T) {
		data := block(pattern(100))
		f := &fakeLink{data: data[:50]}
		var sink bytes.Buffer
		n, err := NewBlockReader(f).Read(&sink)
		if !errors.Is(err, ErrTransport) || !errors.Is(err, errFakeTimeout) {
			t.Fatalf("Read() error = %v, want transport timeout", err)
		}
		var be *BlockError
		if !errors.As(err, &be) || be.Phase != PhaseBody {
			t.Fatalf("Read() error = %#v, want body phase BlockError", err)
		}
		if be.Declared != 100 || be.Received != 45 || n != 45 {
			t.Errorf("BlockError = %+v, n = %d, want 45 of 100", be, n)
		}
		if sink.Len() != 45 {
			t.Errorf("sink holds %d bytes, want the 45 already received", sink.Len())
		}
	})

	t.Run("driver end of message", func(t *testing.T) {
		f := &fakeDriver{fakeLink: fakeLink{data: block(pattern(100))}, lastEarly: true}
		_, err := NewBlockReader(f).ReadAll()
		if !errors.Is(err, ErrShortBlock) {
			t.Fatalf("ReadAll() error = %v, want %v", err, ErrShortBlock)
		}
	})

	t.Run("header timeout", func(t *testing.T) {
		f := &fakeLink{}
		_, err := NewBlockReader(f).ReadAll()
		var be *BlockError
		if !errors.As(err, &be) || be.Phase != PhaseHeader || !errors.Is(err, ErrTransport) {
			t.Fatalf("ReadAll() error = %v, want header phase transport error", err)
		}
	})
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestBlockReaderSinkError(t *testing.T) {
	f := &fakeLink{data: block(pattern(3000))}
	r := NewBlockReader(f)
	r.ChunkSize = 1000
	_, err := r.Read(&failingWriter{after: 1})
	var be *BlockError
	if !errors.As(err, &be) || be.Phase != PhaseSink {
		t.Fatalf("Read() error = %v, want sink phase BlockError", err)
	}
	if be.Received != 994 {
		t.Errorf("Received = %d, want 994", be.Received)
	}
}

func TestBlockReaderChunkSizeByCapability(t *testing.T) {
	if got := NewBlockReader(&fakeLink{}).ChunkSize; got != DefaultChunkSize {
		t.Errorf("raw chunk size = %d, want %d", got, DefaultChunkSize)
	}
	if got := NewBlockReader(&fakeDriver{}).ChunkSize; got != DriverChunkSize {
		t.Errorf("driver chunk size = %d, want %d", got, DriverChunkSize)
	}
}
