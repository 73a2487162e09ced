package scpi

import (
	"errors"
	"strconv"
)

var errFakeTimeout = errors.New("fake timeout")

// fakeLink is a scripted Transport. Bytes queued in data are handed out by
// Receive, at most limit bytes per call when limit is positive. Commands with
// an entry in replies queue the next reply when sent.
type fakeLink struct {
	data    []byte
	limit   int
	replies map[string][]string

	sent     []string
	requests []int // max argument of every Receive call
	closed   bool
	sendErr  error
}

func (f *fakeLink) Send(cmd string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, cmd)
	if q := f.replies[cmd]; len(q) > 0 {
		f.data = append(f.data, q[0]...)
		f.replies[cmd] = q[1:]
	}
	return nil
}

func (f *fakeLink) Receive(max int) ([]byte, error) {
	f.requests = append(f.requests, max)
	if len(f.data) == 0 {
		return nil, errFakeTimeout
	}
	n := min(max, len(f.data))
	if f.limit > 0 {
		n = min(n, f.limit)
	}
	chunk := append([]byte(nil), f.data[:n]...)
	f.data = f.data[n:]
	return chunk, nil
}

func (f *fakeLink) Close() error {
	f.closed = true
	return nil
}

// fakeDriver adds driver block primitives to a fakeLink.
type fakeDriver struct {
	fakeLink
	headerCalls int
	bodyCalls   []int
	lastEarly   bool // report the end of message before the payload is done
	errorCode   uint32
}

func (f *fakeDriver) ReceiveBlockHeader() (uint64, error) {
	f.headerCalls++
	h, err := ParseBlockHeader(f.data)
	if err != nil {
		return 0, err
	}
	f.data = f.data[h.Size():]
	return h.Length, nil
}

func (f *fakeDriver) ReceiveBlockBody(max int) ([]byte, bool, error) {
	f.bodyCalls = append(f.bodyCalls, max)
	if f.lastEarly {
		return nil, true, nil
	}
	if len(f.data) == 0 {
		return nil, false, errFakeTimeout
	}
	n := min(max, len(f.data))
	if f.limit > 0 {
		n = min(n, f.limit)
	}
	chunk := append([]byte(nil), f.data[:n]...)
	f.data = f.data[n:]
	return chunk, len(f.data) == 0, nil
}

func (f *fakeDriver) LastErrorCode() uint32 {
	return f.errorCode
}

// block encodes payload as a definite-length block followed by LF.
func block(payload []byte) []byte {
	length := strconv.Itoa(len(payload))
	out := []byte{'#', byte('0' + len(length))}
	out = append(out, length...)
	out = append(out, payload...)
	return append(out, '\n')
}

// pattern returns n bytes that include LF and '#' values.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/256)
	}
	return b
}
