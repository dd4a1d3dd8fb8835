package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains the resolved on-disk layout of the cache directory.
// The cache owns three kinds of artifacts: a single index file, one data
// blob per cached file and one metadata blob per cached file.
type Paths struct {
	CacheDir    string
	DataDir     string
	MetadataDir string
	IndexFile   string
}

// NewPaths resolves the cache layout under the given base directory.
func NewPaths(baseDir string) *Paths {
	return &Paths{
		CacheDir:    baseDir,
		DataDir:     filepath.Join(baseDir, "data"),
		MetadataDir: filepath.Join(baseDir, "metadata"),
		IndexFile:   filepath.Join(baseDir, "cache_index.json"),
	}
}

// EnsureDirectories creates all cache directories if missing.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.CacheDir, p.DataDir, p.MetadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DataBlobPath returns the data blob path for a cache key.
func (p *Paths) DataBlobPath(cacheKey string) string {
	return filepath.Join(p.DataDir, cacheKey+".gob")
}

// MetadataBlobPath returns the metadata blob path for a cache key.
func (p *Paths) MetadataBlobPath(cacheKey string) string {
	return filepath.Join(p.MetadataDir, cacheKey+".json")
}
