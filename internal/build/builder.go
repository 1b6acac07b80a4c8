package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/venice-v5/venice-cli/internal/logger"
)

// DefaultCompiler is the bytecode compiler looked up on PATH.
const DefaultCompiler = "mpy-cross"

// defaultDirMode is used when creating artifact directories.
const defaultDirMode os.FileMode = 0o755

// CompilerError reports a compile that started and failed.
type CompilerError struct {
	// Path is the source file that failed to compile.
	Path string
	// Stderr is the compiler's captured diagnostic output.
	Stderr string
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("couldn't build %s with %s: %s", e.Path, DefaultCompiler, e.Stderr)
}

// Builder compiles stale source modules with an external compiler.
type Builder struct {
	// Compiler is the compiler executable. Defaults to DefaultCompiler.
	Compiler string
}

// NewBuilder returns a builder using the default compiler.
func NewBuilder() *Builder {
	return &Builder{Compiler: DefaultCompiler}
}

// NeedsRebuild reports whether the module's artifact is stale. The comparison
// is non-strict: a source timestamp equal to the artifact's still counts as
// stale. A missing artifact always does.
func (m SourceModule) NeedsRebuild() bool {
	return !mtime(m.Path).Before(mtime(m.ArtifactPath))
}

// mtime returns the file's modification time, or the zero time when it
// cannot be read.
func mtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}

	return info.ModTime()
}

// Build compiles every stale module and reports whether any compile ran.
// A compiler that starts and exits non-zero aborts the build; a compiler
// that cannot be started at all is skipped silently (long-standing
// behavior, kept as is).
func (b *Builder) Build(ctx context.Context, modules []SourceModule) (bool, error) {
	compiler := b.Compiler
	if compiler == "" {
		compiler = DefaultCompiler
	}

	rebuilt := false

	for _, module := range modules {
		if !module.NeedsRebuild() {
			continue
		}

		rebuilt = true

		if err := os.MkdirAll(filepath.Dir(module.ArtifactPath), defaultDirMode); err != nil {
			return false, fmt.Errorf("create artifact directory: %w", err)
		}

		logger.InfoKV(ctx, "Compiling module", "module", module.Name)

		var stderr bytes.Buffer

		cmd := exec.CommandContext(ctx, compiler, module.Path, "-o", module.ArtifactPath)
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return false, &CompilerError{
					Path:   module.Path,
					Stderr: stderr.String(),
				}
			}

			// The compiler never started. Skipped, not surfaced.
			continue
		}
	}

	return rebuilt, nil
}
