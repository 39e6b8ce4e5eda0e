// Package evidence persists per-run JSON records so degraded or rejected
// outcomes stay inspectable after the run returns.
package evidence

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Repository string    `json:"repository,omitempty"`
	Root       string    `json:"root"`
	Artifacts  int       `json:"artifacts"`
}

// ArtifactRecord captures the terminal state of one artifact.
type ArtifactRecord struct {
	Path       string   `json:"path"`
	Stage      string   `json:"stage"`
	Verified   bool     `json:"verified"`
	Attempts   int      `json:"attempts,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Issues     []string `json:"issues,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
	InputHash  string   `json:"input_hash,omitempty"`
	OutputHash string   `json:"output_hash,omitempty"`
}

// Writer persists records for a single run directory.
type Writer struct {
	runID  string
	runDir string
}

// NewWriter creates a run directory under baseDir with a fresh ULID run ID.
func NewWriter(baseDir string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("evidence base dir is required")
	}

	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	runID := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &Writer{runID: runID, runDir: runDir}, nil
}

// RunID returns the run identifier.
func (w *Writer) RunID() string {
	return w.runID
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun persists the run record.
func (w *Writer) WriteRun(record RunRecord) error {
	record.ID = w.runID
	return w.writeJSON("run.json", record)
}

// WriteArtifact appends one artifact record to artifacts.jsonl.
func (w *Writer) WriteArtifact(record ArtifactRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal artifact record: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(w.runDir, "artifacts.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open artifact log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write artifact record: %w", err)
	}
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(w.runDir, name), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
