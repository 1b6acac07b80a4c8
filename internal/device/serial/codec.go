package serial

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/venice-v5/venice-cli/internal/device"
)

// encodeRequest maps a typed request onto its subcommand id and payload.
func encodeRequest(req device.Request) (byte, []byte, error) {
	switch r := req.(type) {
	case device.DeviceStatusRequest:
		return cmdDeviceStatus, nil, nil

	case device.RadioStatusRequest:
		return cmdRadioStatus, nil, nil

	case device.SelectChannelRequest:
		return cmdSelectChannel, []byte{r.Channel.Code()}, nil

	case device.FileMetadataRequest:
		name, err := fixedName(r.Name)
		if err != nil {
			return 0, nil, err
		}

		payload := make([]byte, 0, 26)
		payload = append(payload, byte(r.Vendor), 0)
		payload = append(payload, name[:]...)

		return cmdFileMetadata, payload, nil

	default:
		return 0, nil, fmt.Errorf("unsupported request type %T", req)
	}
}

// decodeReply parses an acknowledged payload into the subcommand's typed reply.
func decodeReply(cmd byte, payload []byte) (device.Reply, error) {
	switch cmd {
	case cmdDeviceStatus:
		if len(payload) < 5 {
			return nil, errShortFrame
		}

		return &device.DeviceStatus{
			Product: device.Product(payload[0]),
			Flags:   device.StatusFlags(binary.LittleEndian.Uint32(payload[1:5])),
		}, nil

	case cmdRadioStatus:
		if len(payload) < 2 {
			return nil, errShortFrame
		}

		return &device.RadioStatus{
			Channel: payload[0],
			Quality: payload[1],
		}, nil

	case cmdSelectChannel:
		return &device.SelectChannelReply{}, nil

	case cmdFileMetadata:
		if len(payload) < 12 {
			return nil, errShortFrame
		}

		epoch := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
		seconds := binary.LittleEndian.Uint32(payload[8:12])

		return &device.FileMetadata{
			Size:      binary.LittleEndian.Uint32(payload[0:4]),
			Checksum:  binary.LittleEndian.Uint32(payload[4:8]),
			Timestamp: epoch.Add(time.Duration(seconds) * time.Second),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported reply for command 0x%02X", cmd)
	}
}
