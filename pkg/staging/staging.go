// Package staging owns the working filesystem state of a single run. A
// staging area belongs to exactly one run and must be removed on every exit
// path, which is why NewArea hands back an Area with an idempotent Remove.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Area is a run-private staging directory.
type Area struct {
	Root string
	fs   afero.Fs
}

// NewArea creates a fresh staging directory under base. An existing
// directory at the same path is wiped first: staging state never outlives
// the run that created it.
func NewArea(fsys afero.Fs, base string) (*Area, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if base == "" {
		return nil, fmt.Errorf("staging base is required")
	}

	if err := fsys.RemoveAll(base); err != nil {
		return nil, fmt.Errorf("reset staging area: %w", err)
	}
	if err := fsys.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("create staging area: %w", err)
	}
	return &Area{Root: base, fs: fsys}, nil
}

// Remove deletes the staging directory tree. Safe to call more than once
// and from a defer.
func (a *Area) Remove() error {
	if a == nil || a.Root == "" {
		return nil
	}
	return a.fs.RemoveAll(a.Root)
}

// ImportTree copies a working copy into the staging area, skipping
// version-control metadata directories.
func (a *Area) ImportTree(src string) error {
	info, err := a.fs.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source is not a directory: %s", src)
	}

	return afero.Walk(a.fs, src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}

		dest := filepath.Join(a.Root, rel)
		if info.IsDir() {
			return a.fs.MkdirAll(dest, 0755)
		}
		return a.copyFile(path, dest, info.Mode())
	})
}

func (a *Area) copyFile(src, dest string, mode os.FileMode) error {
	if err := a.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	in, err := a.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := a.fs.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// Rebase re-roots a path from under cloneRoot to under stagingRoot by
// replacing the known clone-root prefix, never by slicing a fixed number of
// characters. A path outside cloneRoot is an error.
func Rebase(cloneRoot, stagingRoot, path string) (string, error) {
	rel, err := filepath.Rel(cloneRoot, path)
	if err != nil {
		return "", fmt.Errorf("rebase %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("rebase %s: path escapes clone root %s", path, cloneRoot)
	}
	return filepath.Join(stagingRoot, rel), nil
}
