// Package consts holds the program name and the locations derived from it.
package consts

import (
	"os"
	"path/filepath"
)

// Name is used for the config dir, cache dir, log file and keyring service.
const Name = "qdmessages"

// CacheDir holds the log file and the default local directory database.
var CacheDir = cacheDir()

func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, Name)
}

// EnsureCacheDir creates CacheDir with owner-only permissions.
func EnsureCacheDir() error {
	return os.MkdirAll(CacheDir, 0o700)
}
