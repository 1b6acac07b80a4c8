package serial

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"go.bug.st/serial"

	"github.com/venice-v5/venice-cli/internal/device"
)

// writeChunkSize is the data window carried by one file write frame.
const writeChunkSize = 4096

// port is the slice of a serial port the connection drives. A read that
// returns 0 bytes means the read timeout elapsed. go.bug.st's Port
// satisfies it.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// conn implements device.Connection over an open serial port.
type conn struct {
	port port
	// pending buffers bytes read past the previous frame boundary.
	pending []byte
}

func openPort(path string) (device.Connection, error) {
	mode := &serial.Mode{BaudRate: 115200}

	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return &conn{port: p}, nil
}

// Close releases the port.
func (c *conn) Close() error {
	return c.port.Close()
}

// Handshake sends a typed request and awaits the matching typed reply.
func (c *conn) Handshake(
	ctx context.Context,
	req device.Request,
	opts device.HandshakeOptions,
) (device.Reply, error) {
	cmd, payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	replyPayload, err := c.exchange(ctx, cmd, payload, opts)
	if err != nil {
		return nil, err
	}

	return decodeReply(cmd, replyPayload)
}

// exchange performs one acknowledged subcommand round trip, retrying whole
// attempts up to the configured count. NACKs are decisive; only timeouts are
// worth retrying.
func (c *conn) exchange(
	ctx context.Context,
	cmd byte,
	payload []byte,
	opts device.HandshakeOptions,
) ([]byte, error) {
	frame := encodeFrame(cmd, payload)

	var lastErr error

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		replyPayload, err := c.roundTrip(cmd, frame, opts.Timeout)
		if err == nil {
			return replyPayload, nil
		}

		lastErr = err

		var nack *device.NackError
		if errors.As(err, &nack) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *conn) roundTrip(cmd byte, frame []byte, timeout time.Duration) ([]byte, error) {
	if _, err := c.port.Write(frame); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	payload, err := c.readReply(cmd, timeout)
	if err != nil {
		return nil, err
	}

	if len(payload) == 0 {
		return nil, errShortFrame
	}

	if ack := device.AckCode(payload[0]); ack != device.AckOK {
		return nil, &device.NackError{Code: ack}
	}

	return payload[1:], nil
}

// readReply accumulates port bytes until a complete frame for the expected
// subcommand arrives or the deadline passes.
func (c *conn) readReply(cmd byte, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 512)

	if err := c.port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("arm read timeout: %w", err)
	}

	for {
		if start := bytes.Index(c.pending, deviceHeader); start >= 0 {
			gotCmd, payload, used, err := decodeFrame(c.pending[start:])
			if err == nil {
				c.pending = c.pending[start+used:]

				if gotCmd != cmd {
					return nil, fmt.Errorf("reply for command 0x%02X, expected 0x%02X", gotCmd, cmd)
				}

				return payload, nil
			}

			if !errors.Is(err, errShortFrame) {
				c.pending = c.pending[start+1:]
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("read reply: %w", device.ErrTimeout)
		}

		n, err := c.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}

		if n == 0 {
			return nil, fmt.Errorf("read reply: %w", device.ErrTimeout)
		}

		c.pending = append(c.pending, buf[:n]...)
	}
}

// uploadOptions bound the handshakes driving a transfer. Transfers move real
// data, so the per-attempt timeout is more generous than control traffic.
var uploadOptions = device.HandshakeOptions{
	Timeout: 5 * time.Second,
	Retries: 1,
}

// Upload transfers one file. The returned sequence is lazy: each step sends
// one command of the init/link/write.../exit sequence and yields cumulative
// progress. Ranging over it again restarts the sequence from init.
func (c *conn) Upload(ctx context.Context, up device.FileUpload) iter.Seq2[device.Percent, error] {
	return func(yield func(device.Percent, error) bool) {
		fail := func(err error) {
			yield(0, err)
		}

		if err := c.transferInit(ctx, up); err != nil {
			fail(err)
			return
		}

		if up.LinkedName != "" {
			if err := c.transferLink(ctx, up); err != nil {
				fail(err)
				return
			}
		}

		if !yield(0, nil) {
			return
		}

		for sent := 0; sent < len(up.Data); {
			end := sent + writeChunkSize
			if end > len(up.Data) {
				end = len(up.Data)
			}

			if err := c.transferWrite(ctx, up.LoadAddress+uint32(sent), up.Data[sent:end]); err != nil {
				fail(err)
				return
			}

			sent = end

			pct := device.Percent(sent * 100 / len(up.Data))
			if !yield(pct, nil) {
				return
			}
		}

		if err := c.transferExit(ctx, up.After); err != nil {
			fail(err)
			return
		}

		yield(100, nil)
	}
}

func (c *conn) transferInit(ctx context.Context, up device.FileUpload) error {
	name, err := fixedName(up.Name)
	if err != nil {
		return err
	}

	var ext [4]byte
	copy(ext[:], up.Extension)

	payload := make([]byte, 0, 52)
	payload = append(payload, 1, 1, byte(up.Vendor), 1) // write, qspi, vendor, overwrite
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(up.Data)))
	payload = binary.LittleEndian.AppendUint32(payload, up.LoadAddress)
	payload = binary.LittleEndian.AppendUint32(payload, device.Checksum(up.Data))
	payload = append(payload, ext[:]...)
	payload = binary.LittleEndian.AppendUint32(payload, j2000Timestamp(time.Now()))
	payload = append(payload, name[:]...)

	if _, err = c.exchange(ctx, cmdFileInit, payload, uploadOptions); err != nil {
		return fmt.Errorf("initialize transfer: %w", err)
	}

	return nil
}

func (c *conn) transferLink(ctx context.Context, up device.FileUpload) error {
	linked, err := fixedName(up.LinkedName)
	if err != nil {
		return err
	}

	payload := make([]byte, 0, 26)
	payload = append(payload, byte(up.Vendor), 0)
	payload = append(payload, linked[:]...)

	if _, err = c.exchange(ctx, cmdFileLink, payload, uploadOptions); err != nil {
		return fmt.Errorf("link companion file: %w", err)
	}

	return nil
}

func (c *conn) transferWrite(ctx context.Context, addr uint32, chunk []byte) error {
	payload := make([]byte, 0, 4+len(chunk))
	payload = binary.LittleEndian.AppendUint32(payload, addr)
	payload = append(payload, chunk...)

	if _, err := c.exchange(ctx, cmdFileWrite, payload, uploadOptions); err != nil {
		return fmt.Errorf("write chunk at 0x%08X: %w", addr, err)
	}

	return nil
}

func (c *conn) transferExit(ctx context.Context, after device.PostUploadAction) error {
	payload := []byte{exitActionCode(after)}

	if _, err := c.exchange(ctx, cmdFileExit, payload, uploadOptions); err != nil {
		return fmt.Errorf("finish transfer: %w", err)
	}

	return nil
}

// exitActionCode maps the closed action set onto wire codes.
func exitActionCode(after device.PostUploadAction) byte {
	switch after {
	case device.ActionRunProgram:
		return 0x01
	case device.ActionShowRunScreen:
		return 0x03
	case device.ActionDoNothing:
		return 0x02
	default:
		return 0x00 // halt
	}
}

// ReadUser reads from the interactive user stream.
func (c *conn) ReadUser(ctx context.Context, p []byte) (int, error) {
	limit := len(p)
	if limit > 0xFF {
		limit = 0xFF
	}

	// channel 1 = stdio
	payload, err := c.exchange(ctx, cmdUserRead, []byte{1, byte(limit)}, uploadOptions)
	if err != nil {
		return 0, err
	}

	if len(payload) < 1 {
		return 0, errShortFrame
	}

	return copy(p, payload[1:]), nil
}

// WriteUser writes to the interactive user stream.
func (c *conn) WriteUser(ctx context.Context, p []byte) (int, error) {
	if len(p) > 0xE0 {
		p = p[:0xE0]
	}

	payload := make([]byte, 0, len(p)+1)
	payload = append(payload, 1) // channel 1 = stdio
	payload = append(payload, p...)

	if _, err := c.exchange(ctx, cmdUserWrite, payload, uploadOptions); err != nil {
		return 0, err
	}

	return len(p), nil
}
