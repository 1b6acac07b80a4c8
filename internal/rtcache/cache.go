package rtcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/venice-v5/venice-cli/internal/device"
	"github.com/venice-v5/venice-cli/internal/logger"
)

const (
	// IndexFilename is the cache index kept next to the images.
	IndexFilename = "runtimes.yaml"

	// defaultFileMode is used for cached images and the index.
	defaultFileMode os.FileMode = 0o644
	// defaultDirMode is used when creating the cache directory.
	defaultDirMode os.FileMode = 0o755
)

// Cache resolves runtime images from a local directory, fetching missing
// versions over the network. The directory is an injected handle; concurrent
// invocations of the tool may race on it, which is accepted.
type Cache struct {
	// Dir is the cache directory.
	Dir string
	// Client performs HTTP requests. Defaults to http.DefaultClient.
	Client *http.Client
	// DownloadURL is the release download base URL.
	DownloadURL string
	// LatestURL is the endpoint reporting the latest release.
	LatestURL string
}

// indexEntry records what is known about one cached image.
type indexEntry struct {
	// Checksum is the image's device content digest.
	Checksum uint32 `yaml:"crc32"`
	// FetchedAt is when the image was downloaded.
	FetchedAt time.Time `yaml:"fetched_at"`
}

// New creates a cache over the provided directory.
func New(dir string) *Cache {
	return &Cache{
		Dir:         dir,
		Client:      http.DefaultClient,
		DownloadURL: defaultDownloadURL,
		LatestURL:   defaultLatestURL,
	}
}

// Path returns where the image for the version lives in the cache.
func (c *Cache) Path(v Version) string {
	return filepath.Join(c.Dir, v.ImageName())
}

// Installed lists the versions present in the cache directory, sorted
// ascending. Files that are not runtime images are ignored.
func (c *Cache) Installed() ([]Version, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	var versions []Version

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if v, err := ParseImageName(entry.Name()); err == nil {
			versions = append(versions, v)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].less(versions[j])
	})

	return versions, nil
}

func (v Version) less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}

	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}

	return v.Patch < other.Patch
}

// Resolve returns the image bytes for the version, reading the cached file
// when present and fetching plus installing it otherwise.
func (c *Cache) Resolve(ctx context.Context, v Version) ([]byte, error) {
	path := c.Path(v)

	data, err := os.ReadFile(path)
	if err == nil {
		logger.InfoKV(ctx, "Using cached runtime image", "version", v.String())
		return data, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read cached runtime: %w", err)
	}

	logger.InfoKV(ctx, "Runtime image not cached, fetching", "version", v.String())

	data, err = c.fetch(ctx, v)
	if err != nil {
		return nil, err
	}

	if err = c.install(v, data); err != nil {
		return nil, err
	}

	return data, nil
}

// install writes the image into the cache atomically and records it in the
// index. A torn write would poison every later invocation, so the file is
// applied via go-update rather than written in place.
func (c *Cache) install(v Version, data []byte) error {
	if err := os.MkdirAll(c.Dir, defaultDirMode); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	path := c.Path(v)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: defaultFileMode,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("install runtime image: %w", err)
	}

	// go-update keeps the previous file around; there is none worth keeping.
	oldPath := path + ".old"
	if _, err := os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	index, err := c.loadIndex()
	if err != nil {
		return err
	}

	index[v.ImageName()] = indexEntry{
		Checksum:  device.Checksum(data),
		FetchedAt: time.Now().UTC(),
	}

	return c.saveIndex(index)
}

// Digest returns the device content digest for the version's image, reusing
// the index entry when one exists and falling back to hashing the bytes.
func (c *Cache) Digest(v Version, data []byte) uint32 {
	if index, err := c.loadIndex(); err == nil {
		if entry, ok := index[v.ImageName()]; ok {
			return entry.Checksum
		}
	}

	return device.Checksum(data)
}

func (c *Cache) loadIndex() (map[string]indexEntry, error) {
	contents, err := os.ReadFile(filepath.Join(c.Dir, IndexFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]indexEntry), nil
		}

		return nil, fmt.Errorf("read cache index: %w", err)
	}

	index := make(map[string]indexEntry)
	if err = yaml.Unmarshal(contents, &index); err != nil {
		return nil, fmt.Errorf("unmarshal cache index: %w", err)
	}

	return index, nil
}

func (c *Cache) saveIndex(index map[string]indexEntry) error {
	contents, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal cache index: %w", err)
	}

	path := filepath.Join(c.Dir, IndexFilename)
	if err = os.WriteFile(path, contents, defaultFileMode); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}

	return nil
}
