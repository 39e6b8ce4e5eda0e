package staging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const fileModeDefault = 0644

// FileChange is one accepted replacement file.
type FileChange struct {
	Path    string
	Content string
}

// Apply writes accepted change sets into the staging tree and returns the
// relative paths actually written. A change for a path that does not exist
// in the tree is skipped and logged, never invented: the pipeline only
// modernizes files it enumerated.
func (a *Area) Apply(changes []FileChange, logf func(format string, args ...any)) ([]string, error) {
	var applied []string
	for _, change := range changes {
		dest, err := safeJoin(a.Root, change.Path)
		if err != nil {
			return applied, err
		}

		info, err := a.fs.Stat(dest)
		if err != nil {
			if logf != nil {
				logf("staging: %s does not exist in tree, skipping", change.Path)
			}
			continue
		}

		mode := info.Mode().Perm()
		if mode == 0 {
			mode = fileModeDefault
		}
		if err := afero.WriteFile(a.fs, dest, []byte(change.Content), mode); err != nil {
			return applied, fmt.Errorf("apply %s: %w", change.Path, err)
		}
		applied = append(applied, change.Path)
	}

	if len(applied) == 0 && len(changes) > 0 {
		return nil, fmt.Errorf("no files were successfully updated")
	}
	return applied, nil
}

func safeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid path: %s", rel)
	}

	joined := filepath.Join(root, cleaned)
	relCheck, err := filepath.Rel(root, joined)
	if err != nil || strings.HasPrefix(relCheck, "..") {
		return "", fmt.Errorf("path escapes staging area: %s", rel)
	}
	return joined, nil
}
