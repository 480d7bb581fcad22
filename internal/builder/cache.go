package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/binmodlabs/py2binmod/internal/config"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// Cache keeps compiled artifacts under <project>/.py2binmod/cache/, keyed
// by the generated unit's content and the build profile. Identical input
// is reused instead of recompiled.
type Cache struct {
	projectDir string
}

// NewCache creates a cache scoped to a project directory.
func NewCache(projectDir string) *Cache {
	return &Cache{projectDir: projectDir}
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return filepath.Join(c.projectDir, config.WorkDirName, "cache")
}

// Key derives the deterministic cache key: a digest over every rendered
// file (path and content) plus the profile name. File order in the unit
// is already fixed by the generator.
func (c *Cache) Key(unit *project.Unit, profile project.Profile) string {
	h := sha256.New()
	for _, f := range unit.Files {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write(f.Content)
		h.Write([]byte{0})
	}
	h.Write([]byte(profile.Name()))
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the cached artifact path for a key, or "" on a miss.
func (c *Cache) Lookup(key string) string {
	path := filepath.Join(c.Dir(), key+config.ArtifactExt)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return ""
	}
	return path
}

// Store copies a built artifact into the cache.
func (c *Cache) Store(key, artifactPath string) error {
	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.Dir(), key+config.ArtifactExt), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clean removes all cached artifacts.
func (c *Cache) Clean() error {
	return os.RemoveAll(c.Dir())
}
