package build

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixtureModules writes two compiled artifacts and returns matching modules.
func fixtureModules(t *testing.T) []SourceModule {
	t.Helper()

	dir := t.TempDir()
	pkg := filepath.Join(dir, "__init__.mpy")
	mod := filepath.Join(dir, "motor.mpy")

	require.NoError(t, os.WriteFile(pkg, []byte{0xAA}, 0o644))
	require.NoError(t, os.WriteFile(mod, []byte{0xBB, 0xCC, 0xDD}, 0o644))

	return []SourceModule{
		{Name: "app", ArtifactPath: pkg, IsPackage: true},
		{Name: "app.motor", ArtifactPath: mod},
	}
}

// TestTableLayout verifies the header, pointer records and pool layout.
func TestTableLayout(t *testing.T) {
	t.Parallel()

	modules := fixtureModules(t)

	table, err := Generate("demo", modules)
	require.NoError(t, err)

	data := table.Bytes()

	magic := binary.LittleEndian.Uint32(data[0:4])
	namePool := binary.LittleEndian.Uint32(data[4:8])
	bytecodePool := binary.LittleEndian.Uint32(data[8:12])
	count := binary.LittleEndian.Uint32(data[12:16])

	require.Equal(t, uint32(0x675C3ED9), magic)
	require.Equal(t, uint32(3), count)

	// Pointer records follow the header, one per entry.
	require.Equal(t, uint32(headerSize+3*pointerSize), namePool)

	// Names: "demo" + "app" + "app.motor".
	nameLen := uint32(len("demo") + len("app") + len("app.motor"))
	require.Equal(t, namePool+nameLen, bytecodePool)

	// Entry 0 is the synthetic program entry: the declared name, a single
	// zero flag byte as payload.
	require.Equal(t, uint32(len("demo")), binary.LittleEndian.Uint32(data[16:20]))
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[20:24]))
	require.Equal(t, "demo", string(data[namePool:namePool+4]))
	require.Equal(t, byte(0), data[bytecodePool])

	// Module payloads carry a flag byte followed by the artifact bytes.
	require.Equal(t, FlagModule|FlagPackage, data[bytecodePool+1])
	require.Equal(t, byte(0xAA), data[bytecodePool+2])
	require.Equal(t, FlagModule, data[bytecodePool+3])
	require.Equal(t, []byte{0xBB, 0xCC, 0xDD}, data[bytecodePool+4:bytecodePool+7])

	// Total size adds up exactly.
	require.Len(t, data, int(bytecodePool)+1+2+4)
}

// TestTableReproducible ensures identical inputs serialize identically.
func TestTableReproducible(t *testing.T) {
	t.Parallel()

	modules := fixtureModules(t)

	first, err := Generate("demo", modules)
	require.NoError(t, err)

	second, err := Generate("demo", modules)
	require.NoError(t, err)

	require.Equal(t, first.Bytes(), second.Bytes())
}

// TestPackageCache reuses the cached table when nothing was rebuilt and
// regenerates it otherwise.
func TestPackageCache(t *testing.T) {
	t.Parallel()

	modules := fixtureModules(t)
	buildDir := t.TempDir()

	fresh, err := Package("demo", buildDir, modules, true)
	require.NoError(t, err)

	path := filepath.Join(buildDir, TableFilename)

	// Poison the cached file; with rebuilt=false the poisoned bytes come
	// back untouched.
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	cached, err := Package("demo", buildDir, modules, false)
	require.NoError(t, err)
	require.Equal(t, []byte("stale"), cached)

	// A rebuild regenerates and rewrites the cache.
	regenerated, err := Package("demo", buildDir, modules, true)
	require.NoError(t, err)
	require.Equal(t, fresh, regenerated)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, fresh, onDisk)
}

// TestPackageNoCache generates a table when none is cached even without a
// rebuild.
func TestPackageNoCache(t *testing.T) {
	t.Parallel()

	modules := fixtureModules(t)
	buildDir := t.TempDir()

	data, err := Package("demo", buildDir, modules, false)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	_, err = os.Stat(filepath.Join(buildDir, TableFilename))
	require.NoError(t, err)
}
