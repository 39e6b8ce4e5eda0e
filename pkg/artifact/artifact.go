package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// Artifact represents one source file under analysis. It is immutable once
// created: later stages produce derived records that reference the artifact
// by path, they never edit it in place.
type Artifact struct {
	Path    string    `json:"path"`
	Content string    `json:"content"`
	Hash    string    `json:"hash"`
	ReadAt  time.Time `json:"read_at"`
}

// New creates an Artifact with a normalized path and computed content hash.
func New(path, content string) *Artifact {
	return &Artifact{
		Path:    NormalizePath(path),
		Content: content,
		Hash:    hashContent(content),
		ReadAt:  time.Now().UTC(),
	}
}

// Key returns the artifact identity used for job correlation.
func (a *Artifact) Key() string {
	return a.Path
}

// NormalizePath cleans a path and converts it to slash form so that the same
// file always yields the same identity within a run.
func NormalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])[:16]
}
