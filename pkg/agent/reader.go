package agent

import (
	"context"
	"fmt"

	"github.com/zen-systems/refit/pkg/artifact"
	"github.com/zen-systems/refit/pkg/progress"
)

// Discovery is the stage-1 result for one artifact: whether it should be
// carried forward, and why.
type Discovery struct {
	Path      string `json:"path"`
	Reason    string `json:"reason"`
	Candidate bool   `json:"candidate"`
}

// Key returns the artifact identity for job correlation.
func (d *Discovery) Key() string {
	return d.Path
}

// Reader is the discovery worker. It asks the model whether a file carries
// outdated syntax worth modernizing.
type Reader struct {
	Role Role
	Bus  *progress.Bus
}

type readerReply struct {
	Reason string `json:"reason"`
	Add    bool   `json:"add"`
}

// Discover inspects one artifact and reports whether it is a candidate.
// The artifact content is never taken from the model reply: identity and
// content stay with the immutable artifact record.
func (r *Reader) Discover(ctx context.Context, art *artifact.Artifact) (*Discovery, error) {
	prompt := fmt.Sprintf(
		"You are a code reviewer hunting for outdated syntax and deprecated API usage.\n"+
			"Analyze the following file and decide whether it needs modernization.\n\n"+
			"Return ONLY valid JSON with keys:\n"+
			"{\n"+
			"  \"reason\": \"a short explanation of why the code is out of date (empty if it is fine)\",\n"+
			"  \"add\": true/false — whether the file should be updated\n"+
			"}\n\n"+
			"File: %s\n\nCode:\n%s",
		art.Path, art.Content,
	)

	reply, err := r.Role.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", art.Path, err)
	}

	var parsed readerReply
	if err := decodeReply(reply, &parsed); err != nil {
		return nil, fmt.Errorf("discover %s: %w", art.Path, err)
	}

	r.Bus.Publish(progress.StatusReading, art.Path, fmt.Sprintf("Reading %s", baseName(art.Path)), art.Content)

	return &Discovery{
		Path:      art.Path,
		Reason:    parsed.Reason,
		Candidate: parsed.Add,
	}, nil
}
