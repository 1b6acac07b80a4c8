// Package rtcache resolves Venice runtime images: version and image name
// parsing, a local on-disk cache with a YAML index, and fetching missing
// releases over HTTP. The cache directory is injected by the caller rather
// than resolved from process-wide state.
package rtcache
