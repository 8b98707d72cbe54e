package consts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheDirIsNamed(t *testing.T) {
	if filepath.Base(CacheDir) != Name {
		t.Errorf("CacheDir = %q, want a %q directory", CacheDir, Name)
	}
}

func TestEnsureCacheDir(t *testing.T) {
	old := CacheDir
	CacheDir = filepath.Join(t.TempDir(), "nested", Name)
	t.Cleanup(func() { CacheDir = old })

	if err := EnsureCacheDir(); err != nil {
		t.Fatalf("EnsureCacheDir() error: %v", err)
	}
	info, err := os.Stat(CacheDir)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if !info.IsDir() {
		t.Error("CacheDir is not a directory")
	}
}
