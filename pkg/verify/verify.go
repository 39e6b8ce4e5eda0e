// Package verify runs the per-artifact validate/analyze/repair loop that
// decides whether a rewrite is safe to carry forward.
package verify

import (
	"context"
	"fmt"

	"github.com/zen-systems/refit/pkg/progress"
)

// State names the positions of the verification loop.
type State string

const (
	StateValidating State = "validating"
	StateAnalyzing  State = "analyzing"
	StateRepairing  State = "repairing"
	StateVerified   State = "verified"
	StateExhausted  State = "exhausted"
)

// Verdict is the validator's judgement of a candidate against the original.
type Verdict struct {
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Diagnosis is the analyzer's structured root-cause report for a failing
// candidate.
type Diagnosis struct {
	RootCause       string   `json:"root_cause"`
	FixInstructions []string `json:"fix_instructions"`
}

// Validator is the cheap first-pass check.
type Validator interface {
	Validate(ctx context.Context, original, candidate string) (*Verdict, error)
}

// Analyzer is the escalated root-cause pass, invoked only on rejection.
type Analyzer interface {
	Analyze(ctx context.Context, original, candidate string, issues []string) (*Diagnosis, error)
}

// Repairer produces a new full-file candidate from a diagnosis.
type Repairer interface {
	Repair(ctx context.Context, original, candidate string, diag *Diagnosis) (string, error)
}

// Policy holds the tunable acceptance constants. The soft-pass threshold is
// policy, not law.
type Policy struct {
	// MaxRetries bounds the analyze/repair cycles; the validator therefore
	// runs at most MaxRetries+1 times.
	MaxRetries int
	// SoftPassThreshold accepts a rejection whose confidence exceeds it.
	SoftPassThreshold float64
	// FallbackConfidence is assigned when the validator output cannot be
	// used; the candidate is optimistically treated as passing.
	FallbackConfidence float64
}

// DefaultPolicy mirrors the production tuning: two repair rounds, soft pass
// above 0.85, unparseable validations scored at 0.5.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, SoftPassThreshold: 0.85, FallbackConfidence: 0.5}
}

// Outcome is the terminal result of one verification run.
type Outcome struct {
	Path       string   `json:"path"`
	Final      string   `json:"final"`
	Verified   bool     `json:"verified"`
	Attempts   int      `json:"attempts"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues,omitempty"`
	State      State    `json:"state"`
}

// Key returns the artifact identity for job correlation.
func (o *Outcome) Key() string {
	return o.Path
}

// Loop drives one candidate through the state machine. Loop state is owned
// by a single Run call; instances are cheap and need no locking.
type Loop struct {
	Validator Validator
	Analyzer  Analyzer
	Repairer  Repairer
	Policy    Policy
	Bus       *progress.Bus
	Logf      func(format string, args ...any)
}

// Run verifies candidate against original, repairing up to
// Policy.MaxRetries times. It terminates exactly once: VERIFIED on
// acceptance, EXHAUSTED when attempts run out or when the analyzer or
// repairer suffers an infrastructure error. An EXHAUSTED outcome still
// carries the best candidate produced so far — degraded, not erased.
func (l *Loop) Run(ctx context.Context, path, original, candidate string) *Outcome {
	policy := l.Policy
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	current := candidate
	attempts := 0
	var verdict *Verdict
	var diag *Diagnosis

	state := StateValidating
	for {
		switch state {
		case StateValidating:
			attempts++
			msg := fmt.Sprintf("Verifying %s", path)
			if attempts > 1 {
				msg = fmt.Sprintf("Verifying %s (retry %d)", path, attempts-1)
			}
			l.Bus.Publish(progress.StatusVerifying, path, msg, current)

			v, err := l.Validator.Validate(ctx, original, current)
			if err != nil {
				// An unusable validation must not block the pipeline:
				// treat it as a pass at reduced confidence.
				l.logf("verify: validator unusable for %s, assuming pass at %.2f: %v", path, policy.FallbackConfidence, err)
				v = &Verdict{Passed: true, Confidence: policy.FallbackConfidence}
			}
			verdict = v

			if v.Passed || v.Confidence > policy.SoftPassThreshold {
				state = StateVerified
				continue
			}
			if attempts > policy.MaxRetries {
				state = StateExhausted
				continue
			}
			state = StateAnalyzing

		case StateAnalyzing:
			l.Bus.Publish(progress.StatusFixing, path, fmt.Sprintf("Analyzing & fixing %s", path), current)

			d, err := l.Analyzer.Analyze(ctx, original, current, verdict.Issues)
			if err != nil {
				l.logf("verify: analyzer failed for %s, keeping last candidate: %v", path, err)
				state = StateExhausted
				continue
			}
			diag = d
			state = StateRepairing

		case StateRepairing:
			fixed, err := l.Repairer.Repair(ctx, original, current, diag)
			if err != nil {
				l.logf("verify: repair failed for %s, keeping last candidate: %v", path, err)
				state = StateExhausted
				continue
			}
			current = fixed
			state = StateValidating

		case StateVerified:
			l.Bus.Publish(progress.StatusVerified, path, fmt.Sprintf("Verified %s", path), current)
			return &Outcome{
				Path:       path,
				Final:      current,
				Verified:   true,
				Attempts:   attempts,
				Confidence: verdict.Confidence,
				State:      StateVerified,
			}

		case StateExhausted:
			l.logf("verify: %s exhausted after %d attempts, surfacing best candidate", path, attempts)
			out := &Outcome{
				Path:     path,
				Final:    current,
				Verified: false,
				Attempts: attempts,
				State:    StateExhausted,
			}
			if verdict != nil {
				out.Confidence = verdict.Confidence
				out.Issues = verdict.Issues
			}
			return out
		}
	}
}

func (l *Loop) logf(format string, args ...any) {
	if l.Logf != nil {
		l.Logf(format, args...)
	}
}
