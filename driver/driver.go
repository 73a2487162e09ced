// Package driver adds instrument driver services on top of a raw link:
// block header and body primitives, a last error register with the codes of
// scpi.DeviceErrorCode, and the connect/disconnect handshake.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dazui0019/yokogawa/scpi"
)

// DefaultTimeout is applied on connect.
const DefaultTimeout = 30 * time.Second

// Clearer is implemented by links that support a device clear.
type Clearer interface {
	Clear() error
}

// TimeoutSetter is implemented by links with an adjustable receive timeout.
type TimeoutSetter interface {
	SetTimeout(d time.Duration) error
}

// Link is a driver-assisted transport. It satisfies scpi.Transport,
// scpi.BlockTransport and scpi.ErrorReporter.
type Link struct {
	raw     scpi.Transport
	buf     []byte
	lastErr scpi.DeviceErrorCode

	// Block in progress.
	inBlock bool
	left    uint64 // payload bytes plus terminator still to deliver
}

// Open wraps raw and runs the connect sequence: timeout, remote mode and
// device clear.
func Open(raw scpi.Transport, timeout time.Duration) (*Link, error) {
	l := &Link{raw: raw}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if ts, ok := raw.(TimeoutSetter); ok {
		if err := ts.SetTimeout(timeout); err != nil {
			l.lastErr = scpi.CodeConnectFailed
			return nil, fmt.Errorf("failed to set timeout: %w", err)
		}
	}
	if err := l.Send(":COMMunicate:REMote ON"); err != nil {
		return nil, err
	}
	// Some instruments reject the USBTMC clear; *CLS covers the status part.
	if c, ok := raw.(Clearer); ok {
		if err := c.Clear(); err != nil {
			log.Debug().Err(err).Msg("device clear failed")
		}
	}
	log.Debug().Dur("timeout", timeout).Msg("driver connected")
	return l, nil
}

// Wrap returns a driver link over raw without the connect sequence.
func Wrap(raw scpi.Transport) *Link {
	return &Link{raw: raw}
}

// LastErrorCode returns the code of the last failed operation, 0 if none.
// It is reset by every Send.
func (l *Link) LastErrorCode() uint32 {
	return uint32(l.lastErr)
}

func (l *Link) fail(code scpi.DeviceErrorCode, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		code = scpi.CodeTimeout
	}
	l.lastErr = code
	log.Debug().Uint32("code", uint32(code)).Err(err).Msg("driver error")
	return err
}

func (l *Link) Send(cmd string) error {
	l.lastErr = 0
	l.buf = l.buf[:0]
	l.inBlock = false
	if err := l.raw.Send(cmd); err != nil {
		return l.fail(scpi.CodeSendError, err)
	}
	return nil
}

// fill reads from the raw link until at least n bytes are buffered.
func (l *Link) fill(n, hint int) error {
	for len(l.buf) < n {
		chunk, err := l.raw.Receive(max(hint, n-len(l.buf)))
		if err != nil {
			return l.fail(scpi.CodeReceiveError, err)
		}
		if len(chunk) == 0 {
			return l.fail(scpi.CodeReceiveError, io.ErrUnexpectedEOF)
		}
		l.buf = append(l.buf, chunk...)
	}
	return nil
}

func (l *Link) take(n int) []byte {
	n = min(n, len(l.buf))
	out := append([]byte(nil), l.buf[:n]...)
	l.buf = l.buf[n:]
	return out
}

// Receive returns up to max bytes of the pending response.
func (l *Link) Receive(max int) ([]byte, error) {
	if max <= 0 {
		l.lastErr = scpi.CodeIllegalParameter
		return nil, fmt.Errorf("%w: receive size %d", scpi.ErrInvariant, max)
	}
	if len(l.buf) == 0 {
		if err := l.fill(1, max); err != nil {
			return nil, err
		}
	}
	return l.take(max), nil
}

// ReceiveBlockHeader consumes a block header and returns the declared length.
func (l *Link) ReceiveBlockHeader() (uint64, error) {
	for {
		h, err := scpi.ParseBlockHeader(l.buf)
		if err == nil {
			l.buf = l.buf[h.Size():]
			l.inBlock = true
			l.left = h.Length + 1
			log.Debug().Uint64("length", h.Length).Msg("driver block header")
			return h.Length, nil
		}
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			l.lastErr = scpi.CodeNotBlockData
			return 0, err
		}
		if err := l.fill(len(l.buf)+1, 16); err != nil {
			return 0, err
		}
	}
}

// ReceiveBlockBody returns up to max bytes of the block. The flag is set once
// the payload and its terminator have been delivered.
func (l *Link) ReceiveBlockBody(max int) ([]byte, bool, error) {
	if !l.inBlock {
		l.lastErr = scpi.CodeNotBlockData
		return nil, false, fmt.Errorf("%w: no block header received", scpi.ErrInvariant)
	}
	if max <= 0 {
		l.lastErr = scpi.CodeIllegalParameter
		return nil, false, fmt.Errorf("%w: receive size %d", scpi.ErrInvariant, max)
	}
	want := uint64(max)
	if l.left < want {
		want = l.left
	}
	if len(l.buf) == 0 && want > 0 {
		if err := l.fill(1, int(want)); err != nil {
			return nil, false, err
		}
	}
	chunk := l.take(int(want))
	l.left -= uint64(len(chunk))
	last := l.left == 0
	if last {
		l.inBlock = false
	}
	return chunk, last, nil
}

// Close returns the instrument to local mode and closes the raw link.
func (l *Link) Close() error {
	if err := l.raw.Send(":COMMunicate:REMote OFF"); err != nil {
		log.Debug().Err(err).Msg("failed to leave remote mode")
	}
	return l.raw.Close()
}
