package scpi

// DeviceErrorCode is the driver error register value. Each defined code is a
// single bit.
type DeviceErrorCode uint32

const (
	CodeTimeout          DeviceErrorCode = 1
	CodeDeviceNotFound   DeviceErrorCode = 2
	CodeConnectFailed    DeviceErrorCode = 4
	CodeNotConnected     DeviceErrorCode = 8
	CodeAlreadyConnected DeviceErrorCode = 16
	CodeIncompatible     DeviceErrorCode = 32
	CodeIllegalParameter DeviceErrorCode = 64
	CodeSendError        DeviceErrorCode = 256
	CodeReceiveError     DeviceErrorCode = 512
	CodeNotBlockData     DeviceErrorCode = 1024
	CodeSystemError      DeviceErrorCode = 4096
	CodeIllegalDeviceID  DeviceErrorCode = 8192
	CodeUnsupported      DeviceErrorCode = 16384
	CodeBufferTooSmall   DeviceErrorCode = 32768
	CodeDriverMissing    DeviceErrorCode = 65536
)

// message looks the code up in the fixed table.
func (c DeviceErrorCode) message() (string, bool) {
	switch c {
	case CodeTimeout:
		return "timeout", true
	case CodeDeviceNotFound:
		return "target device not found", true
	case CodeConnectFailed:
		return "connection with the device failed", true
	case CodeNotConnected:
		return "not connected to the device", true
	case CodeAlreadyConnected:
		return "already connected to the device", true
	case CodeIncompatible:
		return "the PC is not compatible", true
	case CodeIllegalParameter:
		return "illegal function parameter", true
	case CodeSendError:
		return "send error", true
	case CodeReceiveError:
		return "receive error", true
	case CodeNotBlockData:
		return "received data is not block data", true
	case CodeSystemError:
		return "system error", true
	case CodeIllegalDeviceID:
		return "illegal device ID", true
	case CodeUnsupported:
		return "unsupported function", true
	case CodeBufferTooSmall:
		return "not enough buffer", true
	case CodeDriverMissing:
		return "library missing", true
	}
	return "unknown device error", false
}

// Known reports whether the code is present in the table.
func (c DeviceErrorCode) Known() bool {
	_, ok := c.message()
	return ok
}

func (c DeviceErrorCode) String() string {
	msg, _ := c.message()
	return msg
}

// DeviceError converts a driver error register value into an error.
// Zero means no error and yields nil.
func DeviceError(code uint32) error {
	if code == 0 {
		return nil
	}
	c := DeviceErrorCode(code)
	return &DeviceReportedError{Code: c, Message: c.String()}
}
