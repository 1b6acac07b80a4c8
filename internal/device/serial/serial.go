// Package serial is the concrete transport behind the device capability
// interfaces: USB CDC port enumeration, CDC2 frame encoding and the file
// transfer command sequence. Nothing above this package knows about frames.
package serial

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/venice-v5/venice-cli/internal/device"
)

// USB identifiers of the supported devices.
const (
	vendorID      = "2888"
	brainPID      = "0501"
	controllerPID = "0503"
)

// Enumerator discovers devices on the host's serial ports.
type Enumerator struct{}

// NewEnumerator returns the host serial port enumerator.
func NewEnumerator() *Enumerator {
	return &Enumerator{}
}

// Devices lists attached brains and controllers. The first CDC interface of
// each device carries the control channel; others are ignored.
func (*Enumerator) Devices() ([]device.Device, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	var devices []device.Device

	for _, port := range ports {
		if !port.IsUSB || port.VID != vendorID {
			continue
		}

		if port.PID != brainPID && port.PID != controllerPID {
			continue
		}

		devices = append(devices, &portDevice{
			path:    port.Name,
			product: productForPID(port.PID),
		})
	}

	return devices, nil
}

func productForPID(pid string) device.Product {
	if pid == controllerPID {
		return device.ProductController
	}

	return device.ProductBrain
}

// portDevice is a discovered but unopened serial device.
type portDevice struct {
	path    string
	product device.Product
}

// Name returns the port path.
func (d *portDevice) Name() string {
	return d.path
}

// Connect opens the port within the timeout.
func (d *portDevice) Connect(ctx context.Context, timeout time.Duration) (device.Connection, error) {
	type result struct {
		conn device.Connection
		err  error
	}

	results := make(chan result, 1)

	go func() {
		conn, err := openPort(d.path)
		results <- result{conn: conn, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("open %s: %w", d.path, r.err)
		}

		return r.conn, nil
	case <-timer.C:
		return nil, fmt.Errorf("open %s: %w", d.path, device.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
