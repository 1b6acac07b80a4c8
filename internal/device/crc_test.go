package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestChecksum pins the digest against the reference vector for this CRC
// variant and a couple of degenerate inputs.
func TestChecksum(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint32(0x89A1897F), Checksum([]byte("123456789")))
	require.Equal(t, uint32(0), Checksum(nil))
	require.Equal(t, uint32(0), Checksum([]byte{}))

	// A single zero byte is not a fixed point.
	require.NotEqual(t, uint32(0), Checksum([]byte{0x01}))
}

// TestNeedsUpload checks the transfer decision on remote file state.
func TestNeedsUpload(t *testing.T) {
	t.Parallel()

	// Missing remote file.
	require.True(t, NeedsUpload(nil, 0xDEAD))

	// Digest mismatch.
	require.True(t, NeedsUpload(&FileState{Checksum: 0xBEEF}, 0xDEAD))

	// Match: nothing to do.
	require.False(t, NeedsUpload(&FileState{Checksum: 0xDEAD}, 0xDEAD))
}
