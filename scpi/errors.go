package scpi

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrTransport marks link level failures and timeouts.
	ErrTransport = errors.New("transport error")

	// ErrMalformedHeader means the block marker or the length field is invalid.
	ErrMalformedHeader = errors.New("malformed block header")

	// ErrShortBlock means the transport ran out of data before the declared
	// block length was received.
	ErrShortBlock = errors.New("short block")

	// ErrInvariant reports a programmer visible precondition violation.
	ErrInvariant = errors.New("invariant violation")

	// ErrTimedOut means a status condition was never satisfied.
	ErrTimedOut = errors.New("timed out waiting for condition")

	// ErrProtocol means the instrument replied with something unexpected.
	ErrProtocol = errors.New("protocol error")

	// ErrUnknownDeviceError is wrapped by DeviceReportedError for codes
	// missing from the device error table.
	ErrUnknownDeviceError = errors.New("unknown device error")
)

// TransportError wraps a failure of the underlying link.
type TransportError struct {
	Op  string // "send" or "receive"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// transportError wraps err unless it already is a TransportError.
func transportError(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// BlockPhase tells where a block transfer failed.
type BlockPhase int

const (
	PhaseHeader BlockPhase = iota
	PhaseBody
	PhaseSink
)

func (p BlockPhase) String() string {
	switch p {
	case PhaseHeader:
		return "header"
	case PhaseBody:
		return "body"
	case PhaseSink:
		return "sink"
	default:
		return "unknown"
	}
}

// BlockError reports an aborted block transfer. Bytes already handed to the
// sink are not rolled back.
type BlockError struct {
	Phase    BlockPhase
	Received uint64
	Declared uint64
	Err      error
}

func (e *BlockError) Error() string {
	if e.Phase == PhaseHeader {
		return fmt.Sprintf("block header: %v", e.Err)
	}
	return fmt.Sprintf("block %s after %d of %d bytes: %v", e.Phase, e.Received, e.Declared, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// TimeoutError is returned by Poller.Wait when the bound is exceeded.
type TimeoutError struct {
	Condition Condition
	Attempts  int
	Last      uint32 // register value seen by the last poll
	Elapsed   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition %s not reached after %d polls (%v), last register value 0x%x",
		e.Condition, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *TimeoutError) Unwrap() error { return ErrTimedOut }

// DeviceReportedError is an error code reported by a driver-assisted
// transport, resolved through the device error table.
type DeviceReportedError struct {
	Code    DeviceErrorCode
	Message string
}

func (e *DeviceReportedError) Error() string {
	return fmt.Sprintf("device error %d: %s", uint32(e.Code), e.Message)
}

func (e *DeviceReportedError) Unwrap() error {
	if !e.Code.Known() {
		return ErrUnknownDeviceError
	}
	return nil
}
