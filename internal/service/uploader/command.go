package uploader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/venice-v5/venice-cli/internal/device"
	"github.com/venice-v5/venice-cli/internal/logger"
	"github.com/venice-v5/venice-cli/internal/manifest"
	"github.com/venice-v5/venice-cli/internal/rtcache"
	"github.com/venice-v5/venice-cli/internal/service/builder"
)

// Options are inputs accepted by the uploader entry point.
type Options struct {
	// Dir optionally pins the project directory; empty means "search upward
	// from the working directory".
	Dir string
	// Compiler overrides the bytecode compiler executable.
	Compiler string
	// Enumerator discovers candidate devices.
	Enumerator device.Enumerator
	// Cache resolves runtime images.
	Cache *rtcache.Cache
	// After is the device's action once the final transfer completes.
	// The zero value is the show-run-screen default.
	After device.PostUploadAction
	// ConnectTimeout bounds opening the device connection.
	ConnectTimeout time.Duration
	// SessionOptions tune the device session, mainly for tests.
	SessionOptions []device.SessionOption
}

// DefaultConnectTimeout bounds opening the device connection.
const DefaultConnectTimeout = 5 * time.Second

// runner holds the joined results of the concurrent preparation steps.
type runner struct {
	opts *Options

	man      *manifest.Manifest
	dir      string
	rtVer    rtcache.Version
	conn     device.Connection
	table    []byte
	runtime  []byte
	runtimeC uint32 // runtime image digest
}

// Run executes the upload pipeline and returns the open connection so the
// caller can keep monitoring the device (the run subcommand does). The
// caller owns closing it.
func Run(ctx context.Context, opts *Options) (device.Connection, error) {
	ctx = logger.WithName(ctx, "uploader")

	r := &runner{opts: opts}

	if err := r.loadManifest(); err != nil {
		return nil, err
	}

	if err := r.prepare(ctx); err != nil {
		return nil, err
	}

	if err := r.drive(ctx); err != nil {
		_ = r.conn.Close()
		return nil, err
	}

	logger.Info(ctx, "Upload completed")

	return r.conn, nil
}

// loadManifest locates and validates the manifest. The slot range is checked
// here, before any connection, compilation or fetch is even started.
func (r *runner) loadManifest() error {
	path, err := manifest.Find(r.opts.Dir)
	if err != nil {
		return err
	}

	man, err := manifest.Load(path)
	if err != nil {
		return err
	}

	if man.Slot < manifest.MinSlot || man.Slot > manifest.MaxSlot {
		return manifest.ErrSlotOutOfRange
	}

	version, err := rtcache.ParseVersion(man.RuntimeVersion)
	if err != nil {
		return fmt.Errorf("invalid venice-version: %w", err)
	}

	r.man = man
	r.dir = filepath.Dir(path)
	r.rtVer = version

	return nil
}

// prepare runs connection opening, compilation and runtime resolution
// concurrently and joins them all before any device work starts.
func (r *runner) prepare(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		conn, err := r.connect(groupCtx)
		if err != nil {
			return err
		}

		r.conn = conn

		return nil
	})

	group.Go(func() error {
		table, err := builder.Table(groupCtx, r.dir, r.man, r.opts.Compiler)
		if err != nil {
			return err
		}

		r.table = table

		return nil
	})

	group.Go(func() error {
		data, err := r.opts.Cache.Resolve(groupCtx, r.rtVer)
		if err != nil {
			return err
		}

		r.runtime = data
		r.runtimeC = r.opts.Cache.Digest(r.rtVer, data)

		return nil
	})

	if err := group.Wait(); err != nil {
		if r.conn != nil {
			_ = r.conn.Close()
		}

		return err
	}

	return nil
}

// connect opens the first discovered device.
func (r *runner) connect(ctx context.Context) (device.Connection, error) {
	devices, err := r.opts.Enumerator.Devices()
	if err != nil {
		return nil, err
	}

	if len(devices) == 0 {
		return nil, device.ErrNoDevice
	}

	timeout := r.opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	target := devices[0]
	logger.InfoKV(ctx, "Connecting to device", "device", target.Name())

	conn, err := target.Connect(ctx, timeout)
	if err != nil {
		if pid, ok := otherInstance(); ok {
			return nil, fmt.Errorf("open device (another venice process, pid %d, may hold the port): %w", pid, err)
		}

		return nil, err
	}

	return conn, nil
}

// drive performs the device-facing half: classification, channel
// negotiation, checksum decisions and the ordered transfers.
func (r *runner) drive(ctx context.Context) error {
	session := device.NewSession(r.conn, r.opts.SessionOptions...)

	link, err := session.Classify(ctx)
	if err != nil {
		return err
	}

	if link == device.LinkWireless {
		if err = session.SwitchChannel(ctx, device.ChannelDownload); err != nil {
			return err
		}
	}

	plan, err := r.plan(ctx, session)
	if err != nil {
		return err
	}

	return session.UploadProgram(ctx, plan)
}

// plan builds the ordered transfer set, applying the checksum skip to both
// the config file and the runtime image.
func (r *runner) plan(ctx context.Context, session *device.Session) (*device.UploadPlan, error) {
	var (
		iniName     = fmt.Sprintf("slot_%d.ini", r.man.Slot)
		tableName   = fmt.Sprintf("slot_%d.bin", r.man.Slot)
		runtimeName = r.rtVer.ImageName()
		iniData     = programINI(r.man)
	)

	plan := &device.UploadPlan{
		Table: device.TransferFile{
			Name:        tableName,
			Extension:   "bin",
			Data:        r.table,
			LoadAddress: device.TableLoadAddr,
		},
		RuntimeName: runtimeName,
		After:       r.opts.After,
	}

	iniState, err := session.FileState(ctx, iniName)
	if err != nil {
		return nil, err
	}

	if device.NeedsUpload(iniState, device.Checksum(iniData)) {
		plan.Config = &device.TransferFile{
			Name:        iniName,
			Extension:   "ini",
			Data:        iniData,
			LoadAddress: device.UserProgramLoadAddr,
		}
	}

	runtimeState, err := session.FileState(ctx, runtimeName)
	if err != nil {
		return nil, err
	}

	if device.NeedsUpload(runtimeState, r.runtimeC) {
		plan.Runtime = &device.TransferFile{
			Name:        runtimeName,
			Extension:   "bin",
			Data:        r.runtime,
			LoadAddress: device.UserProgramLoadAddr,
		}
	}

	return plan, nil
}
