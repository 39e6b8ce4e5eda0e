// Package scan enumerates candidate artifacts under a working copy.
//
// The walk is lazy and order-free: callers must not depend on the sequence
// in which artifacts are produced.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/zen-systems/refit/pkg/artifact"
)

// DefaultDenylist covers markup, config, lockfile, icon and asset types that
// are never worth sending through the pipeline.
var DefaultDenylist = []string{
	".css", ".scss", ".json", ".md", ".markdown", ".txt", ".svg", ".ico",
	".png", ".mjs", ".env", ".gitignore", ".lock", ".yaml", ".yml", ".toml",
	".html",
}

// Scanner walks a filesystem tree and yields artifacts that survive the
// exclusion rules: no dotfiles, no denylisted extensions, nothing under a
// version-control metadata directory.
type Scanner struct {
	FS       afero.Fs
	Denylist []string
	Logf     func(format string, args ...any)
}

// New creates a Scanner over the OS filesystem with the default denylist.
func New() *Scanner {
	return &Scanner{FS: afero.NewOsFs(), Denylist: DefaultDenylist}
}

// Walk streams every included artifact under root to fn. Artifact paths are
// relative to root and slash-normalized. Returning an error from fn stops
// the walk.
func (s *Scanner) Walk(root string, fn func(*artifact.Artifact) error) error {
	fsys := s.FS
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	info, err := fsys.Stat(root)
	if err != nil {
		return fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan root is not a directory: %s", root)
	}

	return afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		name := filepath.Base(path)
		if info.IsDir() {
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if s.excluded(name) {
			return nil
		}

		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			// Unreadable files are skipped, not fatal to the walk.
			s.logf("scan: skipping unreadable file %s: %v", rel, err)
			return nil
		}

		return fn(artifact.New(rel, string(data)))
	})
}

// Collect runs Walk and gathers the artifacts into a slice.
func (s *Scanner) Collect(root string) ([]*artifact.Artifact, error) {
	var out []*artifact.Artifact
	err := s.Walk(root, func(a *artifact.Artifact) error {
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Scanner) excluded(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	denylist := s.Denylist
	if denylist == nil {
		denylist = DefaultDenylist
	}
	lower := strings.ToLower(name)
	for _, ext := range denylist {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (s *Scanner) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
	}
}
