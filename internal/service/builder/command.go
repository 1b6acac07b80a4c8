package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/venice-v5/venice-cli/internal/build"
	"github.com/venice-v5/venice-cli/internal/logger"
	"github.com/venice-v5/venice-cli/internal/manifest"
)

// Project directory layout.
const (
	// SrcDirname holds the source tree next to the manifest.
	SrcDirname = "src"
	// BuildDirname holds artifacts and the cached program table.
	BuildDirname = "build"
)

// Options are inputs for the build and clean entry points.
type Options struct {
	// Dir optionally pins the project directory.
	Dir string
	// Compiler overrides the bytecode compiler executable.
	Compiler string
}

// Run builds the project: scan, compile stale modules, package the table.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "builder")

	path, err := manifest.Find(opts.Dir)
	if err != nil {
		return err
	}

	man, err := manifest.Load(path)
	if err != nil {
		return err
	}

	if _, err = Table(ctx, filepath.Dir(path), man, opts.Compiler); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Build completed",
		"table", filepath.Join(filepath.Dir(path), BuildDirname, build.TableFilename))

	return nil
}

// Table produces the project's program table bytes, compiling whatever is
// stale and reusing the cached table when nothing changed.
func Table(ctx context.Context, dir string, man *manifest.Manifest, compiler string) ([]byte, error) {
	srcDir := filepath.Join(dir, SrcDirname)
	buildDir := filepath.Join(dir, BuildDirname)

	modules, err := build.Scan(srcDir, buildDir, man.Name)
	if err != nil {
		return nil, fmt.Errorf("couldn't find source modules: %w", err)
	}

	if err = os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, fmt.Errorf("create build directory: %w", err)
	}

	b := build.NewBuilder()
	if compiler != "" {
		b.Compiler = compiler
	}

	rebuilt, err := b.Build(ctx, modules)
	if err != nil {
		return nil, fmt.Errorf("couldn't build source modules: %w", err)
	}

	table, err := build.Package(man.Name, buildDir, modules, rebuilt)
	if err != nil {
		return nil, fmt.Errorf("couldn't generate program table: %w", err)
	}

	return table, nil
}

// Clean removes the project's build directory.
func Clean(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "builder")

	dir := opts.Dir
	if dir == "" {
		path, err := manifest.Find("")
		if err != nil {
			return err
		}

		dir = filepath.Dir(path)
	}

	buildDir := filepath.Join(dir, BuildDirname)
	if err := os.RemoveAll(buildDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove build directory: %w", err)
	}

	logger.InfoKV(ctx, "Removed build directory", "path", buildDir)

	return nil
}
