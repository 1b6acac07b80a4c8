package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/venice-v5/venice-cli/internal/logger"
)

// LinkClass is the session's view of the physical link.
type LinkClass uint8

const (
	// LinkWired is a direct USB link; radio negotiation does not apply.
	LinkWired LinkClass = iota
	// LinkWireless is a controller bridging to the brain over its radio.
	LinkWireless
)

func (l LinkClass) String() string {
	if l == LinkWireless {
		return "wireless"
	}

	return "wired"
}

// Session drives the upload protocol over one exclusively owned connection:
// link classification, radio channel negotiation, checksum diffing and
// ordered file transfers.
type Session struct {
	conn Connection

	// handshake bounds ordinary control round trips.
	handshake HandshakeOptions
	// pollInterval is the cadence of negotiation liveness polls.
	pollInterval time.Duration
	// disconnectWindow bounds how long the device may keep replying after a
	// channel select before negotiation fails.
	disconnectWindow time.Duration
	// reconnectAttempts bounds the polls waiting for the device to resume
	// replying on the new channel.
	reconnectAttempts int

	link *LinkClass
}

// Defaults for session timing. Negotiation is bounded to roughly sixteen
// seconds total: eight waiting for silence, eight waiting for the comeback.
const (
	DefaultHandshakeTimeout  = time.Second
	DefaultHandshakeRetries  = 2
	defaultPollInterval      = 250 * time.Millisecond
	defaultDisconnectWindow  = 8 * time.Second
	defaultReconnectAttempts = 32
)

// SessionOption configures session behaviour.
type SessionOption func(*Session)

// WithHandshakeOptions overrides the bounds for control round trips.
func WithHandshakeOptions(opts HandshakeOptions) SessionOption {
	return func(s *Session) {
		s.handshake = opts
	}
}

// WithPollInterval overrides the negotiation poll cadence.
func WithPollInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithDisconnectWindow overrides the bound on the silence-wait phase.
func WithDisconnectWindow(window time.Duration) SessionOption {
	return func(s *Session) {
		if window > 0 {
			s.disconnectWindow = window
		}
	}
}

// WithReconnectAttempts overrides the bound on the comeback-wait phase.
func WithReconnectAttempts(attempts int) SessionOption {
	return func(s *Session) {
		if attempts > 0 {
			s.reconnectAttempts = attempts
		}
	}
}

// NewSession wraps an open connection.
func NewSession(conn Connection, opts ...SessionOption) *Session {
	s := &Session{
		conn: conn,
		handshake: HandshakeOptions{
			Timeout: DefaultHandshakeTimeout,
			Retries: DefaultHandshakeRetries,
		},
		pollInterval:      defaultPollInterval,
		disconnectWindow:  defaultDisconnectWindow,
		reconnectAttempts: defaultReconnectAttempts,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Classify queries system identity and status flags and classifies the link.
// The link is wireless iff the device reports itself as the detachable
// wireless controller and the tethered bit is not set. The result is cached
// for the session's lifetime.
func (s *Session) Classify(ctx context.Context) (LinkClass, error) {
	if s.link != nil {
		return *s.link, nil
	}

	reply, err := s.conn.Handshake(ctx, DeviceStatusRequest{}, s.handshake)
	if err != nil {
		return LinkWired, fmt.Errorf("query device status: %w", err)
	}

	status, ok := reply.(*DeviceStatus)
	if !ok {
		return LinkWired, fmt.Errorf("query device status: %w", errUnexpectedReply)
	}

	link := LinkWired
	if status.Product == ProductController && status.Flags&FlagTethered == 0 {
		link = LinkWireless
	}

	s.link = &link
	logger.InfoKV(ctx, "Classified device link", "link", link.String())

	return link, nil
}

var errUnexpectedReply = errors.New("unexpected reply type")

// SwitchChannel moves a wireless link onto the target radio channel. It is a
// no-op over a wired link and when the radio already reports the target code
// or the switch-pending sentinel. Otherwise it issues a channel select and
// waits out the hop in two phases: first for the device to go silent, then
// for it to resume replying on the new channel.
func (s *Session) SwitchChannel(ctx context.Context, target RadioChannel) error {
	link, err := s.Classify(ctx)
	if err != nil {
		return err
	}

	if link == LinkWired {
		return nil
	}

	status, err := s.radioStatus(ctx, s.handshake)
	if err != nil {
		return fmt.Errorf("query radio channel: %w", err)
	}

	if status.Channel == target.Code() || status.Channel == codeSwitchPending {
		logger.InfoKV(ctx, "Radio already on target channel", "channel", target.String())
		return nil
	}

	logger.InfoKV(ctx, "Switching radio channel", "channel", target.String())

	if _, err = s.conn.Handshake(ctx, SelectChannelRequest{Channel: target}, s.handshake); err != nil {
		return fmt.Errorf("select radio channel: %w", err)
	}

	if err = s.awaitSilence(ctx); err != nil {
		return err
	}

	return s.awaitComeback(ctx)
}

// pollOptions bounds a single negotiation poll: one attempt, poll-sized timeout.
func (s *Session) pollOptions() HandshakeOptions {
	return HandshakeOptions{Timeout: s.pollInterval, Retries: 0}
}

// awaitSilence polls until the device stops replying, signaling the hop has
// begun. A device still replying at the end of the window never let go of the
// old channel.
func (s *Session) awaitSilence(ctx context.Context) error {
	deadline := time.Now().Add(s.disconnectWindow)

	for {
		if err := sleep(ctx, s.pollInterval); err != nil {
			return err
		}

		if _, err := s.radioStatus(ctx, s.pollOptions()); err != nil {
			// Gone quiet: the hop is underway.
			return nil
		}

		if time.Now().After(deadline) {
			return ErrDisconnectTimeout
		}
	}
}

// awaitComeback polls for the device to resume replying after the hop. Only
// confirmed silence precedes this, so a reply here cannot be a stale buffered
// one from before the switch.
func (s *Session) awaitComeback(ctx context.Context) error {
	for attempt := 0; attempt < s.reconnectAttempts; attempt++ {
		if err := sleep(ctx, s.pollInterval); err != nil {
			return err
		}

		_, err := s.radioStatus(ctx, s.pollOptions())
		if err == nil {
			logger.Info(ctx, "Radio reconnected on new channel")
			return nil
		}

		if !errors.Is(err, ErrTimeout) {
			return fmt.Errorf("poll radio after channel switch: %w", err)
		}
	}

	return ErrReconnectTimeout
}

func (s *Session) radioStatus(ctx context.Context, opts HandshakeOptions) (*RadioStatus, error) {
	reply, err := s.conn.Handshake(ctx, RadioStatusRequest{}, opts)
	if err != nil {
		return nil, err
	}

	status, ok := reply.(*RadioStatus)
	if !ok {
		return nil, errUnexpectedReply
	}

	return status, nil
}

// FileState queries remote metadata for the named file. A missing file is
// reported as a nil state, not an error.
func (s *Session) FileState(ctx context.Context, name string) (*FileState, error) {
	request := FileMetadataRequest{
		Name:   name,
		Vendor: VendorUser,
	}

	reply, err := s.conn.Handshake(ctx, request, s.handshake)
	if err != nil {
		var nack *NackError
		if errors.As(err, &nack) && nack.Code == NackProgramFile {
			return nil, nil
		}

		return nil, fmt.Errorf("query metadata of %s: %w", name, err)
	}

	metadata, ok := reply.(*FileMetadata)
	if !ok {
		return nil, fmt.Errorf("query metadata of %s: %w", name, errUnexpectedReply)
	}

	return &FileState{
		Name:     name,
		Vendor:   VendorUser,
		Checksum: metadata.Checksum,
	}, nil
}

// TransferFile is one local candidate for transfer.
type TransferFile struct {
	// Name is the on-device file name.
	Name string
	// Extension is the metadata extension tag.
	Extension string
	// Data is the file content.
	Data []byte
	// LoadAddress is where the device maps the file.
	LoadAddress uint32
}

// UploadPlan is the ordered set of transfers for one program.
type UploadPlan struct {
	// Config is the slot INI; nil skips it per the checksum decision.
	Config *TransferFile
	// Runtime is the runtime image; nil skips it per the checksum decision.
	Runtime *TransferFile
	// Table is the program table, always transferred.
	Table TransferFile
	// RuntimeName links the table to its companion runtime image so the
	// on-device loader can resolve it.
	RuntimeName string
	// After is the device's action once the final transfer completes.
	After PostUploadAction
}

// UploadProgram performs the plan's transfers strictly in order: config,
// runtime, table. The first failure aborts the remainder; nothing already
// transferred is rolled back.
func (s *Session) UploadProgram(ctx context.Context, plan *UploadPlan) error {
	if plan.Config != nil {
		if err := s.transfer(ctx, *plan.Config, "", ActionDoNothing); err != nil {
			return err
		}
	} else {
		logger.Info(ctx, "Config is unchanged on device, skipping")
	}

	if plan.Runtime != nil {
		if err := s.transfer(ctx, *plan.Runtime, "", ActionDoNothing); err != nil {
			return err
		}
	} else {
		logger.Info(ctx, "Runtime is unchanged on device, skipping")
	}

	return s.transfer(ctx, plan.Table, plan.RuntimeName, plan.After)
}

// transfer performs one upload, draining the lazy progress sequence.
func (s *Session) transfer(ctx context.Context, f TransferFile, linked string, after PostUploadAction) error {
	if len(f.Name) > MaxFileNameLen {
		return fmt.Errorf("file name %q exceeds %d bytes", f.Name, MaxFileNameLen)
	}

	logger.InfoKV(ctx, "Transferring file", "file", f.Name, "size", len(f.Data))

	up := FileUpload{
		Name:        f.Name,
		Extension:   f.Extension,
		Vendor:      VendorUser,
		Data:        f.Data,
		LoadAddress: f.LoadAddress,
		LinkedName:  linked,
		After:       after,
	}

	for pct, err := range s.conn.Upload(ctx, up) {
		if err != nil {
			return fmt.Errorf("transfer %s: %w", f.Name, err)
		}

		logger.DebugKV(ctx, "Transfer progress", "file", f.Name, "percent", pct)
	}

	return nil
}

// sleep waits for the duration or the context, whichever ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
