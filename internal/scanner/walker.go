package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/binmodlabs/py2binmod/internal/config"
)

// WalkSources collects every file under root, pruning conventional
// non-source directories (virtualenvs, VCS metadata, caches, build output).
// Paths are returned in walk order, which is deterministic.
func WalkSources(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldIgnoreDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func shouldIgnoreDir(name string) bool {
	for _, ignored := range config.IgnoredDirs {
		if name == ignored {
			return true
		}
	}
	return strings.HasSuffix(name, ".egg-info")
}

// pythonSources filters the walked file list down to .py files under dir.
func pythonSources(files []string, dir string) []string {
	var out []string
	for _, f := range files {
		if !strings.HasSuffix(f, config.SourceFileExt) {
			continue
		}
		if rel, err := filepath.Rel(dir, f); err == nil && !strings.HasPrefix(rel, "..") {
			out = append(out, f)
		}
	}
	return out
}
