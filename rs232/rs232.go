// Package rs232 implements an instrument link over a serial port.
package rs232

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/transport"
)

const (
	DefaultBaud    = 115200
	DefaultTimeout = 30 * time.Second
)

// Client wraps a serial port connection to an instrument.
type Client struct {
	port    serial.Port
	name    string
	timeout time.Duration
}

func init() {
	transport.Register(transport.KindSerial, func(opts transport.Options) (scpi.Transport, error) {
		return Open(opts.Device, opts.Baud, opts.Timeout)
	}, List)
}

// Open opens the named serial port with 8N1 framing.
func Open(name string, baud int, timeout time.Duration) (*Client, error) {
	if name == "" {
		return nil, fmt.Errorf("no serial device given")
	}
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	c := &Client{port: port, name: name}
	if err := c.SetTimeout(timeout); err != nil {
		port.Close()
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Debug().Err(err).Str("port", name).Msg("failed to reset input buffer")
	}
	log.Debug().Str("port", name).Int("baud", baud).Msg("serial open")
	return c, nil
}

// SetTimeout sets the read timeout.
func (c *Client) SetTimeout(d time.Duration) error {
	if d <= 0 {
		d = DefaultTimeout
	}
	if err := c.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("failed to set read timeout on %s: %w", c.name, err)
	}
	c.timeout = d
	return nil
}

func (c *Client) Send(cmd string) error {
	msg := []byte(cmd + string(scpi.Terminator))
	for len(msg) > 0 {
		n, err := c.port.Write(msg)
		if err != nil {
			return fmt.Errorf("failed to write to %s: %w", c.name, err)
		}
		msg = msg[n:]
	}
	return nil
}

// Receive returns whatever arrives first, up to max bytes. A read that times
// out without data is reported as os.ErrDeadlineExceeded.
func (c *Client) Receive(max int) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: receive size %d", scpi.ErrInvariant, max)
	}
	buf := make([]byte, max)
	n, err := c.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s: %w", c.name, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("read from %s after %v: %w", c.name, c.timeout, os.ErrDeadlineExceeded)
	}
	return buf[:n], nil
}

func (c *Client) Close() error {
	return c.port.Close()
}
