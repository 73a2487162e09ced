// Package socket implements an instrument link over the Yokogawa TCP socket
// interface.
package socket

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/transport"
)

const (
	DefaultPort    = 10001
	DefaultTimeout = 30 * time.Second
	DialTimeout    = 5 * time.Second
)

// Client is a TCP connection to an instrument.
type Client struct {
	conn    net.Conn
	addr    string
	timeout time.Duration
}

func init() {
	transport.Register(transport.KindSocket, func(opts transport.Options) (scpi.Transport, error) {
		return Dial(opts.Address, opts.Port, opts.Timeout)
	}, nil)
}

// Dial connects to host on port, DefaultPort if zero.
func Dial(host string, port int, timeout time.Duration) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("no instrument address given")
	}
	if port <= 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	log.Debug().Str("addr", addr).Msg("socket open")
	return New(conn, timeout), nil
}

// New wraps an established connection.
func New(conn net.Conn, timeout time.Duration) *Client {
	return &Client{conn: conn, addr: conn.RemoteAddr().String(), timeout: timeout}
}

// SetTimeout sets the per operation deadline.
func (c *Client) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: timeout %v", scpi.ErrInvariant, d)
	}
	c.timeout = d
	return nil
}

func (c *Client) Send(cmd string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write([]byte(cmd + string(scpi.Terminator))); err != nil {
		return fmt.Errorf("failed to write to %s: %w", c.addr, err)
	}
	return nil
}

// Receive returns the bytes available, up to max. Deadline expiry surfaces
// as an error matching os.ErrDeadlineExceeded.
func (c *Client) Receive(max int) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: receive size %d", scpi.ErrInvariant, max)
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, max)
	n, err := c.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s: %w", c.addr, err)
	}
	return nil, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
