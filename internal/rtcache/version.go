package rtcache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version identifies a Venice runtime release.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

const (
	// imageNamePrefix starts every runtime image file name.
	imageNamePrefix = "venice-"
	// imageNameExt ends every runtime image file name.
	imageNameExt = ".bin"
)

var (
	// ErrVersionTooShort is returned when the version string ends abruptly.
	ErrVersionTooShort = errors.New("version string ended abruptly")
	// ErrVersionTooLong is returned when trailing input follows the patch number.
	ErrVersionTooLong = errors.New("expected end of version string")
	// ErrVersionMalformed is returned when the string does not start with 'v'.
	ErrVersionMalformed = errors.New("version string malformed")
	// ErrInvalidNumber is returned when a version component is not a number.
	ErrInvalidNumber = errors.New("invalid number in version string")
	// ErrBadImagePrefix is returned when an image name lacks the venice- prefix.
	ErrBadImagePrefix = errors.New("runtime name did not start with 'venice-'")
	// ErrBadImageExt is returned when an image name lacks the .bin extension.
	ErrBadImageExt = errors.New("runtime name did not end with '.bin'")
)

// ParseVersion parses a "vMAJOR.MINOR.PATCH" string.
func ParseVersion(s string) (Version, error) {
	var v Version

	if s == "" {
		return v, ErrVersionTooShort
	}

	if s[0] != 'v' {
		return v, ErrVersionMalformed
	}

	parts := strings.Split(s[1:], ".")
	if len(parts) < 3 {
		return v, ErrVersionTooShort
	}

	if len(parts) > 3 {
		return v, ErrVersionTooLong
	}

	numbers := make([]uint32, len(parts))

	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return v, fmt.Errorf("%w: %q", ErrInvalidNumber, part)
		}

		numbers[i] = uint32(n)
	}

	v.Major, v.Minor, v.Patch = numbers[0], numbers[1], numbers[2]

	return v, nil
}

// String formats the version as "vMAJOR.MINOR.PATCH".
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ImageName returns the runtime image file name for this version,
// e.g. "venice-v0.1.0.bin".
func (v Version) ImageName() string {
	return imageNamePrefix + v.String() + imageNameExt
}

// ParseImageName extracts the version from a runtime image file name.
func ParseImageName(name string) (Version, error) {
	if !strings.HasPrefix(name, imageNamePrefix) {
		return Version{}, ErrBadImagePrefix
	}

	if !strings.HasSuffix(name, imageNameExt) {
		return Version{}, ErrBadImageExt
	}

	return ParseVersion(name[len(imageNamePrefix) : len(name)-len(imageNameExt)])
}
