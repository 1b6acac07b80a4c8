package uploader

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venice-v5/venice-cli/internal/manifest"
)

// TestProgramINI pins the exact configuration layout the device menu reads.
func TestProgramINI(t *testing.T) {
	t.Parallel()

	data := programINI(&manifest.Manifest{
		Name:        "clawbot-demo",
		Slot:        3,
		Icon:        manifest.IconRobot,
		Description: "drives around",
	})

	// Slots are zero-based on the wire, icons go by file name.
	require.Equal(t, `[project]
ide=Venice
[program]
name=clawbot-demo
slot=2
icon=USER011x.bmp
iconalt=
description=drives around
`, string(data))
}

// TestProgramINIDefaults renders the fallback icon and an empty description.
func TestProgramINIDefaults(t *testing.T) {
	t.Parallel()

	data := programINI(&manifest.Manifest{Name: "x", Slot: 1})

	require.Contains(t, string(data), "slot=0\n")
	require.Contains(t, string(data), "icon=USER002x.bmp\n")
	require.Contains(t, string(data), "description=\n")
}
