package rtcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseVersion covers accepted and rejected version strings.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	v, err := ParseVersion("v1.22.3")
	require.NoError(t, err)
	require.Equal(t, Version{Major: 1, Minor: 22, Patch: 3}, v)

	_, err = ParseVersion("")
	require.ErrorIs(t, err, ErrVersionTooShort)

	_, err = ParseVersion("1.2.3")
	require.ErrorIs(t, err, ErrVersionMalformed)

	_, err = ParseVersion("v1.2")
	require.ErrorIs(t, err, ErrVersionTooShort)

	_, err = ParseVersion("v1.2.3.4")
	require.ErrorIs(t, err, ErrVersionTooLong)

	_, err = ParseVersion("v1.x.3")
	require.ErrorIs(t, err, ErrInvalidNumber)

	_, err = ParseVersion("v1.2.-3")
	require.ErrorIs(t, err, ErrInvalidNumber)
}

// TestVersionString formats back what was parsed.
func TestVersionString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "v0.5.1", Version{Minor: 5, Patch: 1}.String())
}

// TestImageNames checks the image file name mapping in both directions.
func TestImageNames(t *testing.T) {
	t.Parallel()

	v := Version{Major: 0, Minor: 1, Patch: 0}
	require.Equal(t, "venice-v0.1.0.bin", v.ImageName())

	parsed, err := ParseImageName("venice-v0.1.0.bin")
	require.NoError(t, err)
	require.Equal(t, v, parsed)

	_, err = ParseImageName("runtime-v0.1.0.bin")
	require.ErrorIs(t, err, ErrBadImagePrefix)

	_, err = ParseImageName("venice-v0.1.0.img")
	require.ErrorIs(t, err, ErrBadImageExt)

	_, err = ParseImageName("venice-0.1.0.bin")
	require.ErrorIs(t, err, ErrVersionMalformed)
}
