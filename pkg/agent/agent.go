// Package agent implements the transformation workers the pipeline
// dispatches: discovery, rewrite, and the validate/analyze/repair trio.
//
// Every worker is a pure function from job state to a structured result;
// the only side effect is progress emission. Free-text extraction from
// model replies happens here and nowhere downstream: a worker either
// returns a decoded result or an explicit error.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zen-systems/refit/pkg/adapter"
)

// Role binds an adapter and model to one worker function.
type Role struct {
	Adapter adapter.Adapter
	Model   string
}

func (r Role) complete(ctx context.Context, prompt string) (string, error) {
	if r.Adapter == nil {
		return "", fmt.Errorf("role has no adapter")
	}
	return r.Adapter.Complete(ctx, r.Model, prompt)
}

// decodeReply strips an optional markdown code fence from a model reply and
// unmarshals the JSON body into out.
func decodeReply(reply string, out any) error {
	body := stripFence(reply)
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("malformed worker output: %w", err)
	}
	return nil
}

func stripFence(reply string) string {
	text := strings.TrimSpace(reply)
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
		return strings.TrimSpace(text)
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		}
		if j := strings.LastIndex(text, "```"); j >= 0 {
			text = text[:j]
		}
		return strings.TrimSpace(text)
	}
	return text
}

// stripCodeFence removes a surrounding fence from a whole-file code reply,
// tolerating a missing closing fence.
func stripCodeFence(reply string) string {
	text := strings.TrimSpace(reply)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[1 : len(lines)-1]
	} else {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
