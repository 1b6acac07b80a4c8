package build

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// SourceExt is the recognized source file extension.
	SourceExt = ".py"
	// ArtifactExt is the compiled artifact extension.
	ArtifactExt = ".mpy"
	// markerBase is the package marker's base name.
	markerBase = "__init__"
	// MarkerFilename marks a directory as a package. Directories without it
	// are pruned from discovery entirely, descendants included.
	MarkerFilename = markerBase + SourceExt
)

// SourceModule is one discovered source file and its derived identity.
type SourceModule struct {
	// Name is the canonical dotted module name.
	Name string
	// Path is the source file path.
	Path string
	// ArtifactPath is where the compiled artifact lives.
	ArtifactPath string
	// IsPackage reports whether the file is a package marker.
	IsPackage bool
}

// Scan discovers source modules under srcDir. Only directories containing
// the package marker are descended into; a subtree without one is excluded
// in its entirety, even if validly marked directories exist deeper inside.
// Module names are derived from the path relative to srcDir, prefixed with
// pkgName; a package's own marker file yields the package name itself.
// Artifact paths mirror the source tree under buildDir. The result is sorted
// by name so downstream output is deterministic.
func Scan(srcDir, buildDir, pkgName string) ([]SourceModule, error) {
	var modules []SourceModule

	err := filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			marked, err := hasMarker(path)
			if err != nil {
				return err
			}

			if !marked {
				return fs.SkipDir
			}

			return nil
		}

		if filepath.Ext(path) != SourceExt {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		modules = append(modules, SourceModule{
			Name:         moduleName(rel, pkgName),
			Path:         path,
			ArtifactPath: artifactPath(buildDir, rel),
			IsPackage:    filepath.Base(path) == MarkerFilename,
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("source directory %s: %w", srcDir, err)
		}

		return nil, fmt.Errorf("scan %s: %w", srcDir, err)
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Name < modules[j].Name
	})

	return modules, nil
}

// moduleName derives the canonical dotted name from a relative source path.
func moduleName(rel, pkgName string) string {
	trimmed := strings.TrimSuffix(filepath.ToSlash(rel), SourceExt)
	name := pkgName + "." + strings.ReplaceAll(trimmed, "/", ".")

	// A package's own marker file names the package itself, with no
	// dangling separator.
	return strings.TrimSuffix(name, "."+markerBase)
}

// artifactPath mirrors the relative source path under buildDir with the
// artifact extension.
func artifactPath(buildDir, rel string) string {
	return filepath.Join(buildDir, strings.TrimSuffix(rel, SourceExt)+ArtifactExt)
}

// hasMarker reports whether dir contains the package marker file.
func hasMarker(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, MarkerFilename))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, err
}
