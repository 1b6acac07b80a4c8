package serial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Frame layout: host header, extended command byte, subcommand id, payload
// length (one byte, or two with the high bit set for lengths past 127), the
// payload, and a CRC-16 trailer over everything before it.
var (
	hostHeader   = []byte{0xC9, 0x36, 0xB8, 0x47}
	deviceHeader = []byte{0xAA, 0x55}
)

const extendedCommand = 0x56

// Subcommand ids.
const (
	cmdSelectChannel byte = 0x10
	cmdFileInit      byte = 0x11
	cmdFileExit      byte = 0x12
	cmdFileWrite     byte = 0x13
	cmdFileLink      byte = 0x15
	cmdFileMetadata  byte = 0x19
	cmdDeviceStatus  byte = 0x22
	cmdRadioStatus   byte = 0x26
	cmdUserRead      byte = 0x27
	cmdUserWrite     byte = 0x28
)

var (
	errShortFrame  = errors.New("truncated frame")
	errBadChecksum = errors.New("frame checksum mismatch")
	errBadHeader   = errors.New("bad frame header")
)

// crc16 is the frame trailer digest: polynomial 0x1021, zero init.
func crc16(data []byte) uint16 {
	var crc uint16

	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}

// encodeFrame wraps a subcommand payload into a host frame.
func encodeFrame(cmd byte, payload []byte) []byte {
	out := make([]byte, 0, len(hostHeader)+4+len(payload)+2)
	out = append(out, hostHeader...)
	out = append(out, extendedCommand, cmd)

	if n := len(payload); n < 0x80 {
		out = append(out, byte(n))
	} else {
		out = append(out, byte(n>>8)|0x80, byte(n))
	}

	out = append(out, payload...)

	crc := crc16(out)
	out = append(out, byte(crc>>8), byte(crc))

	return out
}

// decodeFrame validates a device frame at the start of buf and returns the
// subcommand id, the payload (which starts with the acknowledgement byte),
// and the number of bytes the frame occupied. Bytes past the frame boundary
// are left for the caller.
func decodeFrame(buf []byte) (byte, []byte, int, error) {
	if len(buf) < len(deviceHeader)+5 {
		return 0, nil, 0, errShortFrame
	}

	for i, b := range deviceHeader {
		if buf[i] != b {
			return 0, nil, 0, errBadHeader
		}
	}

	if buf[2] != extendedCommand {
		return 0, nil, 0, errBadHeader
	}

	cmd := buf[3]

	n := int(buf[4])
	rest := buf[5:]

	if n&0x80 != 0 {
		if len(rest) < 1 {
			return 0, nil, 0, errShortFrame
		}

		n = (n&0x7F)<<8 | int(rest[0])
		rest = rest[1:]
	}

	if len(rest) < n+2 {
		return 0, nil, 0, errShortFrame
	}

	header := len(buf) - len(rest)
	payload := rest[:n]
	trailer := binary.BigEndian.Uint16(rest[n : n+2])

	if crc16(buf[:header+n]) != trailer {
		return 0, nil, 0, errBadChecksum
	}

	return cmd, payload, header + n + 2, nil
}

// j2000Timestamp returns seconds since the device epoch (2000-01-01 UTC).
func j2000Timestamp(t time.Time) uint32 {
	epoch := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	return uint32(t.UTC().Sub(epoch) / time.Second)
}

// fixedName encodes an on-device file name as a zero-padded 24-byte field.
func fixedName(name string) ([24]byte, error) {
	var out [24]byte

	if len(name) > len(out)-1 {
		return out, fmt.Errorf("file name %q longer than %d bytes", name, len(out)-1)
	}

	copy(out[:], name)

	return out, nil
}
