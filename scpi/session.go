package scpi

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultReplySize is the receive size used for text replies.
	DefaultReplySize = 1000

	// maxReply bounds a text reply so a missing terminator cannot grow it forever.
	maxReply = 1 << 20
)

// Session runs commands over one transport. It is not safe for concurrent use.
type Session struct {
	t Transport

	Poller    *Poller
	ChunkSize int // block chunk size, 0 selects the transport default
	Trailer   int // block terminator bytes
	ReplySize int // receive size for text replies

	// Progress is passed to every block reader.
	Progress func(received, total uint64)
}

// NewSession returns a session with default polling and block settings.
func NewSession(t Transport) *Session {
	return &Session{
		t:         t,
		Poller:    NewPoller(DefaultPollInterval, DefaultPollAttempts),
		Trailer:   1,
		ReplySize: DefaultReplySize,
	}
}

// Transport returns the underlying link.
func (s *Session) Transport() Transport {
	return s.t
}

// Send transmits a command.
func (s *Session) Send(cmd string) error {
	log.Debug().Str("cmd", cmd).Msg("tx")
	if err := s.t.Send(cmd); err != nil {
		return s.withDeviceError(transportError("send", err))
	}
	return nil
}

// Sendf formats and transmits a command.
func (s *Session) Sendf(format string, args ...any) error {
	return s.Send(fmt.Sprintf(format, args...))
}

// Query sends cmd and returns the reply with surrounding whitespace removed.
func (s *Session) Query(cmd string) (string, error) {
	if err := s.Send(cmd); err != nil {
		return "", err
	}
	reply, err := s.receiveLine()
	if err != nil {
		return "", err
	}
	log.Debug().Str("cmd", cmd).Str("reply", reply).Msg("rx")
	return reply, nil
}

func (s *Session) receiveLine() (string, error) {
	size := s.ReplySize
	if size <= 0 {
		size = DefaultReplySize
	}
	var buf []byte
	for {
		chunk, err := s.t.Receive(size)
		if err != nil {
			return "", s.withDeviceError(transportError("receive", err))
		}
		if len(chunk) == 0 {
			break
		}
		buf = append(buf, chunk...)
		if bytes.HasSuffix(buf, []byte{Terminator}) {
			break
		}
		if len(buf) > maxReply {
			return "", fmt.Errorf("%w: reply exceeds %d bytes without terminator", ErrProtocol, maxReply)
		}
	}
	reply := strings.TrimSpace(string(buf))
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrProtocol)
	}
	return reply, nil
}

// QueryFloat sends cmd and parses the reply as a number. The last field is
// used so replies with command headers enabled parse too.
func (s *Session) QueryFloat(cmd string) (float64, error) {
	reply, err := s.Query(cmd)
	if err != nil {
		return 0, err
	}
	return ParseFloat(reply)
}

// QueryInt sends cmd and parses the reply as an integer.
func (s *Session) QueryInt(cmd string) (int, error) {
	reply, err := s.Query(cmd)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(reply) // Query never returns an empty reply
	v, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("%w: reply %q to %s is not an integer", ErrProtocol, reply, cmd)
	}
	return v, nil
}

// ParseFloat parses a numeric reply such as "1.234E-03".
func ParseFloat(reply string) (float64, error) {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty numeric reply", ErrProtocol)
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: reply %q is not a number", ErrProtocol, reply)
	}
	return v, nil
}

// OperationComplete waits for *OPC? to answer 1.
func (s *Session) OperationComplete() error {
	reply, err := s.Query("*OPC?")
	if err != nil {
		return err
	}
	v, err := ParseRegister(reply)
	if err != nil {
		return err
	}
	if v != 1 {
		return fmt.Errorf("%w: *OPC? returned %q", ErrProtocol, reply)
	}
	return nil
}

// Condition reads the status condition register.
func (s *Session) Condition() (uint32, error) {
	reply, err := s.Query(":STATus:CONDition?")
	if err != nil {
		return 0, err
	}
	return ParseRegister(reply)
}

// WaitCondition polls the condition register until cond holds.
func (s *Session) WaitCondition(cond Condition) error {
	p := s.Poller
	if p == nil {
		p = NewPoller(DefaultPollInterval, DefaultPollAttempts)
	}
	return p.Wait(s.Condition, cond)
}

// BlockReader returns a reader configured from the session settings.
func (s *Session) BlockReader() *BlockReader {
	r := NewBlockReader(s.t)
	if s.ChunkSize > 0 {
		r.ChunkSize = s.ChunkSize
	}
	r.Trailer = s.Trailer
	r.Progress = s.Progress
	return r
}

// ReadBlock sends cmd and streams the block it answers with into w.
func (s *Session) ReadBlock(cmd string, w io.Writer) (uint64, error) {
	if err := s.Send(cmd); err != nil {
		return 0, err
	}
	n, err := s.BlockReader().Read(w)
	if err != nil {
		return n, s.withDeviceError(err)
	}
	return n, nil
}

// QueryBlock sends cmd and returns the complete block payload.
func (s *Session) QueryBlock(cmd string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.ReadBlock(cmd, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrorLog returns the instrument error queue as reported by :STATus:ERRor?.
func (s *Session) ErrorLog() (string, error) {
	return s.Query(":STATus:ERRor?")
}

// LastDeviceError returns the driver error register of the transport, or nil
// if the transport does not keep one.
func (s *Session) LastDeviceError() error {
	if r, ok := s.t.(ErrorReporter); ok {
		return DeviceError(r.LastErrorCode())
	}
	return nil
}

// withDeviceError attaches the driver error register to err when one is set.
func (s *Session) withDeviceError(err error) error {
	derr := s.LastDeviceError()
	if derr == nil {
		return err
	}
	return fmt.Errorf("%w (%w)", err, derr)
}

// Close closes the transport.
func (s *Session) Close() error {
	return s.t.Close()
}
