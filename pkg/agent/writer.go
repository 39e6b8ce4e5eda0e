package agent

import (
	"context"
	"fmt"

	"github.com/zen-systems/refit/pkg/progress"
)

// Rewrite is the stage-2 result: a complete replacement file plus the
// model's rationale for the changes.
type Rewrite struct {
	Path     string `json:"path"`
	Code     string `json:"code"`
	Comments string `json:"comments"`
}

// Key returns the artifact identity for job correlation.
func (r *Rewrite) Key() string {
	return r.Path
}

// Writer is the rewrite worker. It produces a modernized whole-file
// replacement, never a partial patch.
type Writer struct {
	Role Role
	Bus  *progress.Bus
}

type writerReply struct {
	RefactoredCode     string `json:"refactored_code"`
	RefactoredComments string `json:"refactored_code_comments"`
}

// Rewrite modernizes one candidate file.
func (w *Writer) Rewrite(ctx context.Context, path, content, reason string) (*Rewrite, error) {
	prompt := fmt.Sprintf(
		"You are a code modernization assistant. Rewrite the file below using the latest\n"+
			"idioms and APIs of its own language. The result must be a complete file, not a\n"+
			"partial code segment.\n\n"+
			"Known problem with the current file: %s\n\n"+
			"Return ONLY valid JSON with keys:\n"+
			"{\n"+
			"  \"refactored_code\": \"the complete rewritten file\",\n"+
			"  \"refactored_code_comments\": \"technical explanation of the changes\"\n"+
			"}\n\n"+
			"File: %s\n\nCode:\n%s",
		reason, path, content,
	)

	reply, err := w.Role.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", path, err)
	}

	var parsed writerReply
	if err := decodeReply(reply, &parsed); err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", path, err)
	}
	if parsed.RefactoredCode == "" {
		return nil, fmt.Errorf("rewrite %s: worker returned empty code", path)
	}

	w.Bus.Publish(progress.StatusWriting, path, fmt.Sprintf("Updating %s", baseName(path)), parsed.RefactoredCode)

	return &Rewrite{
		Path:     path,
		Code:     parsed.RefactoredCode,
		Comments: parsed.RefactoredComments,
	}, nil
}
