package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ScrubVCSDirs walks root and removes every directory literally named .git.
// Traced artifacts carry nested clones whose metadata is useless downstream
// and inflates the output severalfold. Best effort: a missing root is not an
// error, and the walk skips into removed subtrees.
func ScrubVCSDirs(root string) (removed int, err error) {
	if _, statErr := os.Stat(root); os.IsNotExist(statErr) {
		return 0, nil
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if !d.IsDir() || d.Name() != ".git" {
			return nil
		}
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("remove %q: %w", path, rmErr)
		}
		removed++
		return filepath.SkipDir
	})
	if walkErr != nil {
		return removed, fmt.Errorf("scrub version-control metadata under %q: %w", root, walkErr)
	}
	return removed, nil
}
