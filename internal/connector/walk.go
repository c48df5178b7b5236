package connector

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// WalkFiles recursively visits every entry under root, calling fn(path,
// isDir) for each. Used by connectors whose session files are nested under
// date- or project-keyed subdirectories (codex, genericjson, genericjsonl,
// markdown). A root that exists but cannot be read is returned as an error;
// a missing root and unreadable entries below root are skipped.
func WalkFiles(root string, fn func(path string, isDir bool)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && !errors.Is(err, fs.ErrNotExist) {
				return err // reported by the caller as source_unreadable
			}
			return nil
		}
		fn(path, d.IsDir())
		return nil
	})
}
