package device

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
)

// Enumerator lists candidate devices attached to the host.
type Enumerator interface {
	Devices() ([]Device, error)
}

// Device is a discovered but not yet opened device.
type Device interface {
	// Name identifies the device for logs and errors (usually the port path).
	Name() string
	// Connect opens the device within the provided timeout. The returned
	// connection is exclusively owned by the caller.
	Connect(ctx context.Context, timeout time.Duration) (Connection, error)
}

// Request is a typed control request sent to the device.
type Request interface {
	requestPacket()
}

// Reply is a typed control reply received from the device.
type Reply interface {
	replyPacket()
}

// HandshakeOptions bound a single control round trip.
type HandshakeOptions struct {
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first.
	Retries int
}

// Percent is a transfer progress event, 0 through 100.
type Percent uint8

// Connection is one open, exclusively owned link to the device. Framing and
// packet encoding live behind this boundary.
type Connection interface {
	// Handshake sends a typed request and awaits its typed reply. A NACK from
	// the device surfaces as *NackError; an exhausted timeout wraps ErrTimeout.
	Handshake(ctx context.Context, req Request, opts HandshakeOptions) (Reply, error)

	// Upload transfers a file to the device. The returned sequence is lazy:
	// each step moves one chunk and yields the cumulative percentage.
	// Ranging over it again restarts the transfer from the beginning.
	Upload(ctx context.Context, up FileUpload) iter.Seq2[Percent, error]

	// ReadUser reads raw bytes from the interactive user stream.
	ReadUser(ctx context.Context, p []byte) (int, error)
	// WriteUser writes raw bytes to the interactive user stream.
	WriteUser(ctx context.Context, p []byte) (int, error)

	Close() error
}

var (
	// ErrNoDevice is returned when enumeration finds nothing to connect to.
	ErrNoDevice = errors.New("no devices found")
	// ErrTimeout is wrapped by transport errors caused by an exhausted
	// per-attempt timeout.
	ErrTimeout = errors.New("device did not reply in time")
	// ErrDisconnectTimeout is returned when the device keeps replying after a
	// channel select, meaning the radio never started hopping.
	ErrDisconnectTimeout = errors.New("radio channel disconnect timeout")
	// ErrReconnectTimeout is returned when the device never resumes replying
	// after a channel hop.
	ErrReconnectTimeout = errors.New("radio channel reconnect timeout")
)

// AckCode is the device's acknowledgement byte for control requests.
type AckCode uint8

// Acknowledgement codes.
const (
	AckOK                  AckCode = 0x76
	NackPacketCRC          AckCode = 0xCE
	NackPacketLength       AckCode = 0xD0
	NackTransferSize       AckCode = 0xD1
	NackProgramCRC         AckCode = 0xD2
	NackProgramFile        AckCode = 0xD3
	NackUninitTransfer     AckCode = 0xD4
	NackInvalidInit        AckCode = 0xD5
	NackNonSequentialData  AckCode = 0xD6
	NackTransferInProgress AckCode = 0xD7
	NackGeneral            AckCode = 0xFF
)

// NackError reports a negative acknowledgement from the device.
type NackError struct {
	Code AckCode
}

func (e *NackError) Error() string {
	return fmt.Sprintf("device NACK 0x%02X", uint8(e.Code))
}
