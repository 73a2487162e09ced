package socket

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/dazui0019/yokogawa/scpi"
)

// serve answers each command line with reply(cmd) on the server side of a pipe.
func serve(t *testing.T, reply func(cmd string) []byte) *Client {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go func() {
		r := bufio.NewReader(server)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if out := reply(line[:len(line)-1]); out != nil {
				if _, err := server.Write(out); err != nil {
					return
				}
			}
		}
	}()
	return New(client, time.Second)
}

func TestQuery(t *testing.T) {
	c := serve(t, func(cmd string) []byte {
		if cmd == "*IDN?" {
			return []byte("YOKOGAWA,710105,91H000000,F1.20\n")
		}
		return nil
	})
	s := scpi.NewSession(c)
	got, err := s.Query("*IDN?")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "YOKOGAWA,710105,91H000000,F1.20" {
		t.Errorf("Query() = %q", got)
	}
}

func TestReadBlock(t *testing.T) {
	payload := bytes.Repeat([]byte("\x89PNG\r\n\x1a\n"), 1000)
	c := serve(t, func(cmd string) []byte {
		if cmd == ":IMAGe:SEND?" {
			return append(fmt.Appendf(nil, "#4%04d", len(payload)), append(payload, '\n')...)
		}
		return nil
	})
	s := scpi.NewSession(c)
	got, err := s.QueryBlock(":IMAGe:SEND?")
	if err != nil {
		t.Fatalf("QueryBlock() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("QueryBlock() returned %d bytes, want %d", len(got), len(payload))
	}
}

func TestReceiveTimeout(t *testing.T) {
	c := serve(t, func(string) []byte { return nil })
	c.SetTimeout(20 * time.Millisecond)
	if err := c.Send(":STOP"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	_, err := c.Receive(10)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Receive() error = %v, want %v", err, os.ErrDeadlineExceeded)
	}
}
