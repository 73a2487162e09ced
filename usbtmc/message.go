package usbtmc

import (
	"encoding/binary"
	"fmt"

	"github.com/dazui0019/yokogawa/scpi"
)

// Header is a decoded Bulk-IN DEV_DEP_MSG_IN header.
type Header struct {
	Tag          byte
	TransferSize uint32
	EOM          bool
}

// bulkHeader builds the common 12 byte Bulk-OUT header.
func bulkHeader(msgID, tag byte, size uint32, attr byte) []byte {
	h := make([]byte, headerSize)
	h[0] = msgID
	h[1] = tag
	h[2] = ^tag
	binary.LittleEndian.PutUint32(h[4:8], size)
	h[8] = attr
	return h
}

// EncodeDevDepOut frames data as a DEV_DEP_MSG_OUT transfer with EOM set,
// padded to a multiple of 4 bytes.
func EncodeDevDepOut(tag byte, data []byte) []byte {
	msg := bulkHeader(msgDevDepOut, tag, uint32(len(data)), 0x01)
	msg = append(msg, data...)
	for len(msg)%4 != 0 {
		msg = append(msg, 0)
	}
	return msg
}

// EncodeRequestIn builds a REQUEST_DEV_DEP_MSG_IN asking for up to size bytes.
func EncodeRequestIn(tag byte, size uint32) []byte {
	return bulkHeader(msgRequestDevDepIn, tag, size, 0)
}

// DecodeHeader checks a Bulk-IN header against the expected tag.
func DecodeHeader(b []byte, tag byte) (Header, error) {
	var h Header
	if len(b) < headerSize {
		return h, fmt.Errorf("%w: short bulk in header (%d bytes)", scpi.ErrProtocol, len(b))
	}
	if b[0] != msgRequestDevDepIn {
		return h, fmt.Errorf("%w: unexpected bulk in message id %d", scpi.ErrProtocol, b[0])
	}
	if b[1] != tag || b[2] != ^tag {
		return h, fmt.Errorf("%w: bulk in tag %d, expected %d", scpi.ErrProtocol, b[1], tag)
	}
	h.Tag = b[1]
	h.TransferSize = binary.LittleEndian.Uint32(b[4:8])
	h.EOM = b[8]&0x01 != 0
	return h, nil
}
