package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/venice-v5/venice-cli/internal/rtcache"
)

// Filename is the project manifest file every Venice project carries at its root.
const Filename = "Venice.toml"

const (
	// MinSlot is the lowest on-device program slot.
	MinSlot = 1
	// MaxSlot is the highest on-device program slot.
	MaxSlot = 8
)

var (
	// ErrNotFound is returned when no manifest exists in the search path.
	ErrNotFound = errors.New("couldn't find " + Filename)
	// ErrSlotOutOfRange is returned when the declared slot is outside [1, 8].
	ErrSlotOutOfRange = errors.New("slot must be between 1 and 8")
	// ErrUnknownIcon is returned when the declared icon names no device icon.
	ErrUnknownIcon = errors.New("unknown icon name")
	// errNameRequired is returned when the program name is missing.
	errNameRequired = errors.New("program name must be provided")
)

// Manifest describes a Venice project: the program's declared name, the
// on-device slot it installs into, and the runtime it links against.
type Manifest struct {
	// Name is the program's declared name, shown in the device menu and
	// embedded in the program table.
	Name string `toml:"name"`
	// Slot is the on-device storage slot, 1 through 8.
	Slot int `toml:"slot"`
	// RuntimeVersion is the Venice runtime release this program links
	// against, in "vMAJOR.MINOR.PATCH" form.
	RuntimeVersion string `toml:"venice-version"`
	// Icon selects the menu icon shown for the slot.
	Icon Icon `toml:"icon"`
	// Description is an optional human-readable program description.
	Description string `toml:"description"`
}

// Find locates the project manifest. When dir is non-empty, the manifest must
// live directly in it. Otherwise the search starts at the current directory
// and walks up through parents.
func Find(dir string) (string, error) {
	if dir != "" {
		path := filepath.Join(dir, Filename)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w in %s", ErrNotFound, dir)
			}

			return "", fmt.Errorf("stat manifest: %w", err)
		}

		return path, nil
	}

	current, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}

	for search := current; ; {
		path := filepath.Join(search, Filename)
		if _, err = os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat manifest: %w", err)
		}

		parent := filepath.Dir(search)
		if parent == search {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, current)
		}

		search = parent
	}
}

// Load reads and validates the manifest at the provided path.
func Load(path string) (*Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err = toml.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %w", Filename, err)
	}

	if err = Validate(&m); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the manifest for required fields and value ranges.
func Validate(m *Manifest) error {
	if m.Name == "" {
		return errNameRequired
	}

	if m.Slot < MinSlot || m.Slot > MaxSlot {
		return ErrSlotOutOfRange
	}

	if _, err := rtcache.ParseVersion(m.RuntimeVersion); err != nil {
		return fmt.Errorf("invalid venice-version in %s: %w", Filename, err)
	}

	// An omitted icon takes the question-mark fallback; a misspelled one is
	// rejected rather than silently swapped for it.
	if m.Icon != "" && !m.Icon.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownIcon, m.Icon)
	}

	return nil
}
