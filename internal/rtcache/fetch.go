package rtcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/venice-v5/venice-cli/internal/version"
)

const (
	// defaultDownloadURL is the base URL runtime images are published under.
	defaultDownloadURL = "https://github.com/venice-v5/venice/releases/download"
	// defaultLatestURL reports the most recent release.
	defaultLatestURL = "https://api.github.com/repos/venice-v5/venice/releases/latest"
)

// errBadHTTPStatus is returned when a fetch answers with a non-success status.
var errBadHTTPStatus = errors.New("unexpected http status")

// fetch downloads the image for the version from the release page.
func (c *Cache) fetch(ctx context.Context, v Version) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s", c.DownloadURL, v.String(), v.ImageName())

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch runtime %s: %w", v.String(), err)
	}

	return body, nil
}

// latestRelease is the slice of the release API response we care about.
type latestRelease struct {
	TagName string `json:"tag_name"`
}

// Latest asks the release endpoint for the most recent runtime version.
func (c *Cache) Latest(ctx context.Context) (Version, error) {
	body, err := c.get(ctx, c.LatestURL)
	if err != nil {
		return Version{}, fmt.Errorf("fetch latest release: %w", err)
	}

	var release latestRelease
	if err = json.Unmarshal(body, &release); err != nil {
		return Version{}, fmt.Errorf("parse latest release: %w", err)
	}

	v, err := ParseVersion(release.TagName)
	if err != nil {
		return Version{}, fmt.Errorf("parse latest release tag %q: %w", release.TagName, err)
	}

	return v, nil
}

func (c *Cache) get(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	request.Header.Set("User-Agent", version.UserAgent())

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", errBadHTTPStatus, response.Status)
	}

	return io.ReadAll(response.Body)
}
