package rs232

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"go.bug.st/serial"

	"github.com/dazui0019/yokogawa/scpi"
)

// fakePort implements the parts of serial.Port the client uses.
type fakePort struct {
	serial.Port
	in       []byte
	out      bytes.Buffer
	maxWrite int
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.in)
	p.in = p.in[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	n := min(len(b), p.maxWrite)
	return p.out.Write(b[:n])
}

func (p *fakePort) Close() error { return nil }

func TestSendPartialWrites(t *testing.T) {
	port := &fakePort{maxWrite: 3}
	c := &Client{port: port, name: "fake"}
	if err := c.Send(":MEASure:MODE ON"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := port.out.String(); got != ":MEASure:MODE ON\n" {
		t.Errorf("wrote %q", got)
	}
}

func TestReceive(t *testing.T) {
	port := &fakePort{in: []byte("#15hello\n"), maxWrite: 64}
	c := &Client{port: port, name: "fake"}

	payload, err := scpi.NewBlockReader(c).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(payload) != "hello" {
		t.Errorf("ReadAll() = %q, want %q", payload, "hello")
	}

	// Nothing left: the port read returns no data, as on a timeout.
	if _, err := c.Receive(16); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Receive() error = %v, want %v", err, os.ErrDeadlineExceeded)
	}
	if _, err := c.Receive(0); !errors.Is(err, scpi.ErrInvariant) {
		t.Errorf("Receive(0) error = %v, want %v", err, scpi.ErrInvariant)
	}
}
