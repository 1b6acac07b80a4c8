package uploader

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/venice-v5/venice-cli/internal/device"
	"github.com/venice-v5/venice-cli/internal/manifest"
	"github.com/venice-v5/venice-cli/internal/rtcache"
)

// fakeConn answers control requests from canned state and records uploads.
type fakeConn struct {
	status device.DeviceStatus
	radio  device.RadioStatus
	// metadata answers file metadata queries by name; absent names NACK as
	// missing files.
	metadata map[string]uint32

	uploads  []device.FileUpload
	selected []device.RadioChannel
	closed   bool
}

func (c *fakeConn) Handshake(
	_ context.Context,
	req device.Request,
	_ device.HandshakeOptions,
) (device.Reply, error) {
	switch r := req.(type) {
	case device.DeviceStatusRequest:
		status := c.status

		return &status, nil
	case device.RadioStatusRequest:
		radio := c.radio

		return &radio, nil
	case device.SelectChannelRequest:
		c.selected = append(c.selected, r.Channel)

		return &device.SelectChannelReply{}, nil
	case device.FileMetadataRequest:
		if checksum, ok := c.metadata[r.Name]; ok {
			return &device.FileMetadata{Checksum: checksum}, nil
		}

		return nil, &device.NackError{Code: device.NackProgramFile}
	default:
		return nil, fmt.Errorf("unscripted request %T", req)
	}
}

func (c *fakeConn) Upload(_ context.Context, up device.FileUpload) iter.Seq2[device.Percent, error] {
	return func(yield func(device.Percent, error) bool) {
		c.uploads = append(c.uploads, up)
		yield(100, nil)
	}
}

func (c *fakeConn) ReadUser(context.Context, []byte) (int, error)  { return 0, nil }
func (c *fakeConn) WriteUser(context.Context, []byte) (int, error) { return 0, nil }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// fakeDevice hands out its connection.
type fakeDevice struct {
	conn *fakeConn
}

func (d *fakeDevice) Name() string { return "fake0" }

func (d *fakeDevice) Connect(context.Context, time.Duration) (device.Connection, error) {
	return d.conn, nil
}

// fakeEnumerator records whether it was consulted at all.
type fakeEnumerator struct {
	devices []device.Device
	called  bool
}

func (e *fakeEnumerator) Devices() ([]device.Device, error) {
	e.called = true
	return e.devices, nil
}

// project writes a minimal buildable project and returns its directory.
// The compiler is a script that copies sources to artifacts.
func project(t *testing.T, slot int) (dir, compiler string) {
	t.Helper()

	dir = t.TempDir()

	contents := fmt.Sprintf(`
name = "demo"
slot = %d
venice-version = "v0.1.0"
icon = "robot"
`, slot)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Venice.toml"), []byte(contents), 0o644))

	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "__init__.py"), []byte("pass\n"), 0o644))

	compiler = filepath.Join(t.TempDir(), "fake-mpy-cross")
	require.NoError(t, os.WriteFile(compiler, []byte("#!/bin/sh\ncp \"$1\" \"$3\"\n"), 0o755))

	return dir, compiler
}

// preloadedCache returns a cache already holding the v0.1.0 image, so
// resolution never leaves the disk.
func preloadedCache(t *testing.T, image []byte) *rtcache.Cache {
	t.Helper()

	cache := rtcache.New(t.TempDir())
	v := rtcache.Version{Minor: 1}
	require.NoError(t, os.WriteFile(cache.Path(v), image, 0o644))

	return cache
}

// TestRunUploadsEverything covers the first upload to a blank device: all
// three files go out, in order, with the table linked to its runtime.
func TestRunUploadsEverything(t *testing.T) {
	t.Parallel()

	dir, compiler := project(t, 3)
	conn := &fakeConn{status: device.DeviceStatus{Product: device.ProductBrain}}
	enum := &fakeEnumerator{devices: []device.Device{&fakeDevice{conn: conn}}}

	got, err := Run(context.Background(), &Options{
		Dir:        dir,
		Compiler:   compiler,
		Enumerator: enum,
		Cache:      preloadedCache(t, []byte("runtime image")),
		After:      device.ActionRunProgram,
	})
	require.NoError(t, err)
	require.Equal(t, conn, got)
	require.False(t, conn.closed)
	require.NoError(t, got.Close())

	require.Len(t, conn.uploads, 3)
	require.Equal(t, "slot_3.ini", conn.uploads[0].Name)
	require.Equal(t, "venice-v0.1.0.bin", conn.uploads[1].Name)
	require.Equal(t, "slot_3.bin", conn.uploads[2].Name)

	require.Equal(t, []byte("runtime image"), conn.uploads[1].Data)
	require.Equal(t, device.UserProgramLoadAddr, conn.uploads[1].LoadAddress)
	require.Equal(t, device.TableLoadAddr, conn.uploads[2].LoadAddress)
	require.Equal(t, "venice-v0.1.0.bin", conn.uploads[2].LinkedName)
	require.Equal(t, device.ActionRunProgram, conn.uploads[2].After)
	require.NotEmpty(t, conn.uploads[2].Data)

	// A wired link never negotiates channels.
	require.Empty(t, conn.selected)
}

// TestRunSkipsUnchanged sends only the table when the device already holds
// matching config and runtime.
func TestRunSkipsUnchanged(t *testing.T) {
	t.Parallel()

	dir, compiler := project(t, 1)
	image := []byte("runtime image")

	iniData := programINI(&manifest.Manifest{
		Name:           "demo",
		Slot:           1,
		RuntimeVersion: "v0.1.0",
		Icon:           "robot",
	})

	conn := &fakeConn{
		status: device.DeviceStatus{Product: device.ProductBrain},
		metadata: map[string]uint32{
			"slot_1.ini":        device.Checksum(iniData),
			"venice-v0.1.0.bin": device.Checksum(image),
		},
	}
	enum := &fakeEnumerator{devices: []device.Device{&fakeDevice{conn: conn}}}

	got, err := Run(context.Background(), &Options{
		Dir:        dir,
		Compiler:   compiler,
		Enumerator: enum,
		Cache:      preloadedCache(t, image),
	})
	require.NoError(t, err)
	require.NoError(t, got.Close())

	require.Len(t, conn.uploads, 1)
	require.Equal(t, "slot_1.bin", conn.uploads[0].Name)

	// The default device action is showing the run screen.
	require.Equal(t, device.ActionShowRunScreen, conn.uploads[0].After)
}

// TestRunBadSlot rejects an out-of-range slot before touching any device.
func TestRunBadSlot(t *testing.T) {
	t.Parallel()

	dir, compiler := project(t, 9)
	enum := &fakeEnumerator{}

	_, err := Run(context.Background(), &Options{
		Dir:        dir,
		Compiler:   compiler,
		Enumerator: enum,
		Cache:      rtcache.New(t.TempDir()),
	})
	require.ErrorIs(t, err, manifest.ErrSlotOutOfRange)
	require.False(t, enum.called)
}

// TestRunNoDevice surfaces empty enumeration.
func TestRunNoDevice(t *testing.T) {
	t.Parallel()

	dir, compiler := project(t, 2)

	_, err := Run(context.Background(), &Options{
		Dir:        dir,
		Compiler:   compiler,
		Enumerator: &fakeEnumerator{},
		Cache:      preloadedCache(t, []byte("runtime image")),
	})
	require.ErrorIs(t, err, device.ErrNoDevice)
}

// TestRunWirelessNegotiates switches an untethered controller onto the
// download channel before transferring.
func TestRunWirelessNegotiates(t *testing.T) {
	t.Parallel()

	dir, compiler := project(t, 2)

	// The radio already reports the download channel, so the switch resolves
	// without a hop.
	conn := &fakeConn{
		status: device.DeviceStatus{Product: device.ProductController},
		radio:  device.RadioStatus{Channel: 0x01},
	}
	enum := &fakeEnumerator{devices: []device.Device{&fakeDevice{conn: conn}}}

	got, err := Run(context.Background(), &Options{
		Dir:        dir,
		Compiler:   compiler,
		Enumerator: enum,
		Cache:      preloadedCache(t, []byte("runtime image")),
	})
	require.NoError(t, err)
	require.NoError(t, got.Close())
	require.Empty(t, conn.selected)
	require.Len(t, conn.uploads, 3)
}
