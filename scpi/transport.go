// Package scpi implements the message framing and sequencing used to talk to
// SCPI-style bench instruments: text command/response round trips, polling of
// the status condition register, and reception of definite-length binary
// blocks ("#<n><length><payload>").
//
// A Session owns exactly one Transport. Command/response pairing is strictly
// ordered with no request identifiers, so a Session must not be shared between
// goroutines. Use one transport per session if several sessions are needed.
package scpi

// Terminator ends every command and every response.
const Terminator = '\n'

// Transport is a message based link to an instrument.
type Transport interface {
	// Send transmits one ASCII command. The transport appends its own
	// terminator.
	Send(cmd string) error

	// Receive returns up to max bytes of the pending response. It blocks
	// until at least one byte is available or the transport timeout expires.
	// Text responses keep their trailing LF.
	Receive(max int) ([]byte, error)

	// Close releases the link.
	Close() error
}

// BlockTransport is implemented by driver-assisted transports that parse the
// block header themselves.
type BlockTransport interface {
	// ReceiveBlockHeader consumes the "#<n><digits>" header and returns the
	// declared payload length.
	ReceiveBlockHeader() (uint64, error)

	// ReceiveBlockBody returns up to max bytes of block data. The flag is
	// set when the transport has seen the end of the response message.
	ReceiveBlockBody(max int) ([]byte, bool, error)
}

// ErrorReporter is implemented by transports that keep a driver error
// register, see DeviceErrorCode.
type ErrorReporter interface {
	LastErrorCode() uint32
}
