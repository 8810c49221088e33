package config

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AutoCachePath is the -cache value that selects DefaultCachePath.
const AutoCachePath = "auto"

// DefaultCachePath returns the per-user histogram cache location for
// appSlug, creating its directory.
func DefaultCachePath(appSlug string) (string, error) {
	path, err := xdg.CacheFile(filepath.Join(appSlug, "histcache.db"))
	if err != nil {
		return "", fmt.Errorf("resolve user cache file: %w", err)
	}

	return path, nil
}

// ResolveCachePath maps the configured cache value to a file location. An
// empty result disables the cache.
func ResolveCachePath(appSlug string, value string) (string, error) {
	switch value {
	case "":
		return "", nil
	case AutoCachePath:
		return DefaultCachePath(appSlug)
	default:
		return filepath.Clean(value), nil
	}
}
