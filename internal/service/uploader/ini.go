package uploader

import (
	"fmt"
	"strings"

	"github.com/venice-v5/venice-cli/internal/manifest"
)

// programINI renders the slot configuration the on-device menu reads. The
// layout is fixed by the device: a [project] section naming the IDE and a
// [program] section with the slot's presentation fields. Slots are
// zero-based on the wire.
func programINI(m *manifest.Manifest) []byte {
	var b strings.Builder

	b.WriteString("[project]\n")
	b.WriteString("ide=Venice\n")
	b.WriteString("[program]\n")
	fmt.Fprintf(&b, "name=%s\n", m.Name)
	fmt.Fprintf(&b, "slot=%d\n", m.Slot-1)
	fmt.Fprintf(&b, "icon=%s\n", m.Icon.FileName())
	b.WriteString("iconalt=\n")
	fmt.Fprintf(&b, "description=%s\n", m.Description)

	return []byte(b.String())
}
