// Package pipeline drives artifacts through the three model stages:
// discovery, rewrite, and verification with bounded repair. The pipeline
// never touches the hosted repository; it hands the accepted change set back
// to the caller for materialization.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/zen-systems/refit/pkg/agent"
	"github.com/zen-systems/refit/pkg/artifact"
	"github.com/zen-systems/refit/pkg/correlate"
	"github.com/zen-systems/refit/pkg/dispatch"
	"github.com/zen-systems/refit/pkg/evidence"
	"github.com/zen-systems/refit/pkg/scan"
	"github.com/zen-systems/refit/pkg/verify"
)

// Discoverer is the stage-1 worker contract.
type Discoverer interface {
	Discover(ctx context.Context, art *artifact.Artifact) (*agent.Discovery, error)
}

// Rewriter is the stage-2 worker contract.
type Rewriter interface {
	Rewrite(ctx context.Context, path, content, reason string) (*agent.Rewrite, error)
}

// Verifier is the stage-3 contract. Run never fails outright: an exhausted
// loop still returns its best candidate.
type Verifier interface {
	Run(ctx context.Context, path, original, candidate string) *verify.Outcome
}

// Tuning bounds the fan-out of each stage.
type Tuning struct {
	DiscoverConcurrency int
	RewriteConcurrency  int
	VerifyConcurrency   int
	// JobTimeout bounds each individual worker call. Zero disables it.
	JobTimeout time.Duration
}

// ChangeSet is one accepted replacement, ready for materialization.
type ChangeSet struct {
	Path      string
	Original  string
	Final     string
	Rationale string
	Verified  bool
	Attempts  int
}

// Result is the terminal state of one pipeline run.
type Result struct {
	// Accepted holds the surviving change sets, including degraded ones
	// whose Verified flag is false.
	Accepted []ChangeSet
	// RejectedCount is the number of candidates that produced no change set.
	RejectedCount int
	// Scanned and Candidates describe the funnel for reporting.
	Scanned    int
	Candidates int
}

// Runner wires the stages together. Zero-value collaborators are not
// usable; construct every field before calling Run. Progress emission is
// owned by the stage workers; the runner itself only logs.
type Runner struct {
	Scanner  *scan.Scanner
	Reader   Discoverer
	Writer   Rewriter
	Verifier Verifier
	Tuning   Tuning
	// Evidence is optional; record failures are logged, never fatal.
	Evidence *evidence.Writer
	// Repository labels the run record.
	Repository string
	Logf       func(format string, args ...any)
}

type rewriteJob struct {
	path    string
	content string
	reason  string
}

func (j *rewriteJob) Key() string { return j.path }

type verifyJob struct {
	path      string
	original  string
	candidate string
	rationale string
}

func (j *verifyJob) Key() string { return j.path }

// Run walks root, discovers modernization candidates, rewrites them, and
// verifies each rewrite against its original. A failure of any single
// artifact degrades only that artifact; the run fails as a whole only when
// the root itself cannot be scanned.
func (r *Runner) Run(ctx context.Context, root string) (*Result, error) {
	artifacts, err := r.Scanner.Collect(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	r.logf("pipeline: scanned %d artifacts under %s", len(artifacts), root)
	r.recordRun(root, len(artifacts))

	result := &Result{Accepted: []ChangeSet{}, Scanned: len(artifacts)}
	if len(artifacts) == 0 {
		return result, nil
	}

	// Stage 1: discovery.
	discoveries := dispatch.Survivors(dispatch.Run(ctx, artifacts,
		func(ctx context.Context, art *artifact.Artifact) (*agent.Discovery, error) {
			return r.Reader.Discover(ctx, art)
		},
		dispatch.Options{Concurrency: r.Tuning.DiscoverConcurrency, Timeout: r.Tuning.JobTimeout, Logf: r.Logf},
	))

	byPath := make(map[string]*artifact.Artifact, len(artifacts))
	for _, art := range artifacts {
		byPath[art.Path] = art
	}

	var jobs []*rewriteJob
	reasons := make(map[string]string, len(discoveries))
	for _, d := range discoveries {
		reasons[d.Path] = d.Reason
		if !d.Candidate {
			r.recordArtifact(evidence.ArtifactRecord{
				Path:      d.Path,
				Stage:     "discover",
				Rationale: d.Reason,
				InputHash: byPath[d.Path].Hash,
			})
			continue
		}
		jobs = append(jobs, &rewriteJob{path: d.Path, content: byPath[d.Path].Content, reason: d.Reason})
	}
	result.Candidates = len(jobs)
	r.logf("pipeline: %d of %d artifacts flagged for modernization", len(jobs), len(artifacts))
	if len(jobs) == 0 {
		return result, nil
	}

	// Stage 2: rewrite.
	rewrites := dispatch.Survivors(dispatch.Run(ctx, jobs,
		func(ctx context.Context, job *rewriteJob) (*agent.Rewrite, error) {
			return r.Writer.Rewrite(ctx, job.path, job.content, job.reason)
		},
		dispatch.Options{Concurrency: r.Tuning.RewriteConcurrency, Timeout: r.Tuning.JobTimeout, Logf: r.Logf},
	))
	if len(rewrites) == 0 {
		// Nothing to verify or materialize; the run still succeeds.
		result.RejectedCount = len(jobs)
		r.logf("pipeline: no rewrites produced, skipping verification")
		return result, nil
	}

	// Candidates are always verified against the artifact that was scanned,
	// never against intermediate model output.
	pairs := correlate.Join(artifacts, rewrites,
		func(a *artifact.Artifact) string { return a.Path },
		func(rw *agent.Rewrite) string { return rw.Path },
		r.Logf,
	)

	verifyJobs := make([]*verifyJob, 0, len(pairs))
	for _, p := range pairs {
		verifyJobs = append(verifyJobs, &verifyJob{
			path:      p.Left.Path,
			original:  p.Left.Content,
			candidate: p.Right.Code,
			rationale: p.Right.Comments,
		})
	}

	// Stage 3: verification with bounded repair.
	outcomes := dispatch.Survivors(dispatch.Run(ctx, verifyJobs,
		func(ctx context.Context, job *verifyJob) (*verify.Outcome, error) {
			return r.Verifier.Run(ctx, job.path, job.original, job.candidate), nil
		},
		dispatch.Options{Concurrency: r.Tuning.VerifyConcurrency, Timeout: r.Tuning.JobTimeout, Logf: r.Logf},
	))

	// The change-set rationale is the discovery reason plus the writer's
	// explanation of what changed.
	rationale := make(map[string]string, len(verifyJobs))
	for _, job := range verifyJobs {
		rationale[job.path] = job.rationale
		if reason := reasons[job.path]; reason != "" {
			rationale[job.path] = reason + "\n\n" + job.rationale
		}
	}

	for _, out := range outcomes {
		orig := byPath[out.Path]
		result.Accepted = append(result.Accepted, ChangeSet{
			Path:      out.Path,
			Original:  orig.Content,
			Final:     out.Final,
			Rationale: rationale[out.Path],
			Verified:  out.Verified,
			Attempts:  out.Attempts,
		})
		r.recordArtifact(evidence.ArtifactRecord{
			Path:       out.Path,
			Stage:      string(out.State),
			Verified:   out.Verified,
			Attempts:   out.Attempts,
			Confidence: out.Confidence,
			Issues:     out.Issues,
			Rationale:  rationale[out.Path],
			InputHash:  orig.Hash,
			OutputHash: artifact.New(out.Path, out.Final).Hash,
		})
	}
	result.RejectedCount = len(jobs) - len(result.Accepted)
	r.logf("pipeline: %d change sets accepted, %d candidates rejected", len(result.Accepted), result.RejectedCount)
	return result, nil
}

func (r *Runner) recordRun(root string, artifacts int) {
	if r.Evidence == nil {
		return
	}
	err := r.Evidence.WriteRun(evidence.RunRecord{
		Timestamp:  time.Now().UTC(),
		Repository: r.Repository,
		Root:       root,
		Artifacts:  artifacts,
	})
	if err != nil {
		r.logf("pipeline: evidence run record failed: %v", err)
	}
}

func (r *Runner) recordArtifact(record evidence.ArtifactRecord) {
	if r.Evidence == nil {
		return
	}
	if err := r.Evidence.WriteArtifact(record); err != nil {
		r.logf("pipeline: evidence record for %s failed: %v", record.Path, err)
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}
