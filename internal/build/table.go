package build

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TableFilename is the cached program table in the build directory.
const TableFilename = "out.vpt"

const (
	// tableMagic identifies a program table to the on-device loader.
	tableMagic uint32 = 0x675C3ED9

	// headerSize is the fixed header: magic, name pool offset, bytecode pool
	// offset, entry count; four u32 little-endian fields.
	headerSize = 16
	// pointerSize is one fixed-size pointer record: name length, payload
	// length; two u32 little-endian fields.
	pointerSize = 8
)

// Entry flag bits. The flag byte prefixes each entry's payload in the
// bytecode pool.
const (
	// FlagModule marks an entry carrying a compiled module.
	FlagModule byte = 1 << 0
	// FlagPackage marks a package's own entry.
	FlagPackage byte = 1 << 1
)

// defaultFileMode is used for the cached table file.
const defaultFileMode os.FileMode = 0o644

// tableEntry is one named payload in the table.
type tableEntry struct {
	name    []byte
	payload []byte // flag byte followed by artifact bytes
}

// Table is the serialized program container: a header, fixed-size pointer
// records, a name pool and a bytecode pool. Entry order is the scanner's
// sorted order, so output is byte-reproducible given unchanged inputs.
type Table struct {
	entries []tableEntry
}

// Generate packages the compiled artifacts plus metadata into a table.
// Entry 0 is synthetic and carries the program's declared name with a zero
// flag byte; each module entry's payload is its flag byte followed by the
// artifact bytes.
func Generate(program string, modules []SourceModule) (*Table, error) {
	entries := make([]tableEntry, 0, len(modules)+1)
	entries = append(entries, tableEntry{
		name:    []byte(program),
		payload: []byte{0},
	})

	for _, module := range modules {
		artifact, err := os.ReadFile(module.ArtifactPath)
		if err != nil {
			return nil, fmt.Errorf("read artifact for %s: %w", module.Name, err)
		}

		flags := FlagModule
		if module.IsPackage {
			flags |= FlagPackage
		}

		payload := make([]byte, 0, len(artifact)+1)
		payload = append(payload, flags)
		payload = append(payload, artifact...)

		entries = append(entries, tableEntry{
			name:    []byte(module.Name),
			payload: payload,
		})
	}

	return &Table{entries: entries}, nil
}

// Bytes serializes the table. Offsets in the header are absolute byte
// offsets from the start of the table.
func (t *Table) Bytes() []byte {
	var nameLen, payloadLen int
	for _, entry := range t.entries {
		nameLen += len(entry.name)
		payloadLen += len(entry.payload)
	}

	namePoolOffset := headerSize + pointerSize*len(t.entries)
	bytecodePoolOffset := namePoolOffset + nameLen

	out := make([]byte, 0, bytecodePoolOffset+payloadLen)
	out = binary.LittleEndian.AppendUint32(out, tableMagic)
	out = binary.LittleEndian.AppendUint32(out, uint32(namePoolOffset))
	out = binary.LittleEndian.AppendUint32(out, uint32(bytecodePoolOffset))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(t.entries)))

	for _, entry := range t.entries {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(entry.name)))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(entry.payload)))
	}

	for _, entry := range t.entries {
		out = append(out, entry.name...)
	}

	for _, entry := range t.entries {
		out = append(out, entry.payload...)
	}

	return out
}

// WriteFile writes the serialized table to path.
func (t *Table) WriteFile(path string) error {
	if err := os.WriteFile(path, t.Bytes(), defaultFileMode); err != nil {
		return fmt.Errorf("write program table: %w", err)
	}

	return nil
}

// Package returns the program table bytes for the build. The table is
// regenerated when the builder rebuilt at least one module or no cached
// table exists; otherwise the previously written bytes are returned
// unchanged.
func Package(program, buildDir string, modules []SourceModule, rebuilt bool) ([]byte, error) {
	path := filepath.Join(buildDir, TableFilename)

	if !rebuilt {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}

		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read cached program table: %w", err)
		}
	}

	table, err := Generate(program, modules)
	if err != nil {
		return nil, err
	}

	data := table.Bytes()
	if err = os.WriteFile(path, data, defaultFileMode); err != nil {
		return nil, fmt.Errorf("write program table: %w", err)
	}

	return data, nil
}
