// Package terminal bridges the local stdin/stdout to the device's
// interactive user stream, byte for byte.
package terminal

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/venice-v5/venice-cli/internal/device"
	"github.com/venice-v5/venice-cli/internal/logger"
)

// pollDelay paces the read loop; the link is half duplex and polling any
// faster just burns handshakes.
const pollDelay = 10 * time.Millisecond

// Run copies stdin to the device and device output to stdout until either
// side ends or the context is cancelled.
func Run(ctx context.Context, conn device.Connection) error {
	ctx = logger.WithName(ctx, "terminal")
	logger.Info(ctx, "Entering terminal, press Ctrl+C to leave")

	input := make(chan []byte)

	go readStdin(input)

	buf := make([]byte, 1024)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-input:
			if !ok {
				return nil
			}

			if _, err := conn.WriteUser(ctx, line); err != nil {
				return err
			}
		default:
		}

		n, err := conn.ReadUser(ctx, buf)
		if err != nil {
			return err
		}

		if n > 0 {
			if _, err = os.Stdout.Write(buf[:n]); err != nil {
				return err
			}
		}

		time.Sleep(pollDelay)
	}
}

// readStdin feeds stdin chunks to the bridge loop and closes the channel on EOF.
func readStdin(input chan<- []byte) {
	defer close(input)

	buf := make([]byte, 1024)

	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			input <- chunk
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Errorf(context.Background(), "read stdin: %v", err)
			}

			return
		}
	}
}
