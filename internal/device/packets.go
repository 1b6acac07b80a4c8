package device

import "time"

// Product is the device's reported product type.
type Product uint8

// Product types reported in the device status reply.
const (
	ProductUnknown Product = iota
	// ProductBrain is the brain connected directly over USB.
	ProductBrain
	// ProductController is the detachable wireless controller, which bridges
	// to the brain over its radio unless tethered.
	ProductController
)

// StatusFlags are the system status bits reported by the device.
type StatusFlags uint32

// FlagTethered is set when a controller is wired to the brain, making the
// link effectively a wired one.
const FlagTethered StatusFlags = 1 << 0

// RadioChannel is a wireless operating mode the link can be switched to.
type RadioChannel uint8

const (
	// ChannelPit is the default low-bandwidth channel.
	ChannelPit RadioChannel = iota
	// ChannelDownload is the high-bandwidth channel used for bulk transfer.
	ChannelDownload
)

// Numeric channel codes on the wire.
const (
	codePit      uint8 = 0x00
	codeDownload uint8 = 0x01
	// codeSwitchPending is reported once a hop has already been requested in
	// this power cycle.
	codeSwitchPending uint8 = 0x1F
)

// Code returns the wire code for the channel.
func (ch RadioChannel) Code() uint8 {
	if ch == ChannelDownload {
		return codeDownload
	}

	return codePit
}

func (ch RadioChannel) String() string {
	if ch == ChannelDownload {
		return "download"
	}

	return "pit"
}

// Vendor tags the namespace a device file belongs to.
type Vendor uint8

// VendorUser is the namespace third-party tooling uploads into.
const VendorUser Vendor = 1

// PostUploadAction tells the device what to do once a transfer completes.
// It is a closed set: exactly these four actions exist.
type PostUploadAction uint8

const (
	// ActionShowRunScreen opens the slot's run screen. This is the default.
	ActionShowRunScreen PostUploadAction = iota
	// ActionRunProgram launches the uploaded program immediately.
	ActionRunProgram
	// ActionDoNothing leaves the device wherever it was.
	ActionDoNothing
	// ActionHalt stops any running program.
	ActionHalt
)

func (a PostUploadAction) String() string {
	switch a {
	case ActionRunProgram:
		return "run-program"
	case ActionDoNothing:
		return "do-nothing"
	case ActionHalt:
		return "halt"
	default:
		return "show-run-screen"
	}
}

// DeviceStatusRequest queries system identity and status flags.
type DeviceStatusRequest struct{}

// DeviceStatus is the reply to DeviceStatusRequest.
type DeviceStatus struct {
	Product Product
	Flags   StatusFlags
}

// RadioStatusRequest queries the current radio channel. It doubles as the
// liveness poll during channel negotiation.
type RadioStatusRequest struct{}

// RadioStatus is the reply to RadioStatusRequest.
type RadioStatus struct {
	// Channel is the raw channel code, including the switch-pending sentinel.
	Channel uint8
	// Quality is the reported link quality, 0 through 100.
	Quality uint8
}

// SelectChannelRequest asks the radio to hop to the given channel.
type SelectChannelRequest struct {
	Channel RadioChannel
}

// SelectChannelReply acknowledges a SelectChannelRequest.
type SelectChannelReply struct{}

// FileMetadataRequest queries metadata of a remote file by name.
type FileMetadataRequest struct {
	Name   string
	Vendor Vendor
}

// FileMetadata is the reply to FileMetadataRequest.
type FileMetadata struct {
	Size      uint32
	Checksum  uint32
	Timestamp time.Time
}

// FileUpload describes one complete file transfer.
type FileUpload struct {
	// Name is the on-device file name, at most MaxFileNameLen bytes.
	Name string
	// Extension is the metadata extension tag ("ini", "bin").
	Extension string
	// Vendor is the namespace to write into.
	Vendor Vendor
	// Data is the full file content.
	Data []byte
	// LoadAddress is where the device maps the file.
	LoadAddress uint32
	// LinkedName optionally names a companion file the on-device loader
	// resolves alongside this one.
	LinkedName string
	// After is performed by the device once the transfer completes.
	After PostUploadAction
}

// MaxFileNameLen is the longest on-device file name the protocol carries.
const MaxFileNameLen = 23

// Load addresses for user programs and program tables.
const (
	// UserProgramLoadAddr is the main load address for user programs and
	// runtime images.
	UserProgramLoadAddr uint32 = 0x0380_0000
	// TableLoadAddr is where program tables are mapped, above the runtime.
	TableLoadAddr uint32 = 0x0780_0000
)

func (DeviceStatusRequest) requestPacket()  {}
func (RadioStatusRequest) requestPacket()   {}
func (SelectChannelRequest) requestPacket() {}
func (FileMetadataRequest) requestPacket()  {}

func (*DeviceStatus) replyPacket()       {}
func (*RadioStatus) replyPacket()        {}
func (*SelectChannelReply) replyPacket() {}
func (*FileMetadata) replyPacket()       {}

// FileState is a remote file's identity as reported by the device.
type FileState struct {
	Name     string
	Vendor   Vendor
	Checksum uint32
}

// NeedsUpload reports whether a local candidate with the given digest must be
// transferred: a missing remote file or a digest mismatch means upload.
func NeedsUpload(state *FileState, localChecksum uint32) bool {
	return state == nil || state.Checksum != localChecksum
}
