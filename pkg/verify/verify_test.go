package verify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zen-systems/refit/pkg/progress"
)

type stubValidator struct {
	verdicts []*Verdict
	errs     []error
	calls    int
}

func (s *stubValidator) Validate(context.Context, string, string) (*Verdict, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var v *Verdict
	if i < len(s.verdicts) {
		v = s.verdicts[i]
	} else if len(s.verdicts) > 0 {
		v = s.verdicts[len(s.verdicts)-1]
	}
	return v, err
}

type stubAnalyzer struct {
	diag  *Diagnosis
	err   error
	calls int
}

func (s *stubAnalyzer) Analyze(context.Context, string, string, []string) (*Diagnosis, error) {
	s.calls++
	return s.diag, s.err
}

type stubRepairer struct {
	outputs []string
	err     error
	calls   int
}

func (s *stubRepairer) Repair(context.Context, string, string, *Diagnosis) (string, error) {
	i := s.calls
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "repaired", nil
}

func newLoop(v Validator, a Analyzer, r Repairer) *Loop {
	return &Loop{Validator: v, Analyzer: a, Repairer: r, Policy: DefaultPolicy()}
}

func TestAlwaysFailingValidatorExhaustsAfterMaxRetriesPlusOne(t *testing.T) {
	validator := &stubValidator{verdicts: []*Verdict{{Passed: false, Confidence: 0.0, Issues: []string{"broken"}}}}
	analyzer := &stubAnalyzer{diag: &Diagnosis{RootCause: "bad rewrite"}}
	repairer := &stubRepairer{}

	loop := newLoop(validator, analyzer, repairer)
	loop.Policy.MaxRetries = 2

	out := loop.Run(context.Background(), "a.py", "orig", "cand")

	if validator.calls != 3 {
		t.Fatalf("expected max_retries+1 = 3 validating entries, got %d", validator.calls)
	}
	if out.Verified {
		t.Fatalf("exhausted run must report verified=false")
	}
	if out.Attempts != 3 {
		t.Fatalf("expected attempts=3, got %d", out.Attempts)
	}
	if out.State != StateExhausted {
		t.Fatalf("expected EXHAUSTED, got %s", out.State)
	}
	if len(out.Issues) == 0 {
		t.Fatalf("exhausted outcome must surface the last issue list")
	}
}

func TestSoftPassAcceptsHighConfidenceRejection(t *testing.T) {
	validator := &stubValidator{verdicts: []*Verdict{{Passed: false, Confidence: 0.9}}}
	loop := newLoop(validator, &stubAnalyzer{}, &stubRepairer{})

	out := loop.Run(context.Background(), "a.py", "orig", "cand")

	if !out.Verified {
		t.Fatalf("confidence 0.9 must soft-pass")
	}
	if out.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", out.Attempts)
	}
	if validator.calls != 1 {
		t.Fatalf("expected a single validation, got %d", validator.calls)
	}
}

func TestRepairedCandidateBecomesCandidateUnderTest(t *testing.T) {
	validator := &stubValidator{verdicts: []*Verdict{
		{Passed: false, Confidence: 0.2, Issues: []string{"regression"}},
		{Passed: true, Confidence: 0.95},
	}}
	analyzer := &stubAnalyzer{diag: &Diagnosis{RootCause: "dropped branch", FixInstructions: []string{"restore it"}}}
	repairer := &stubRepairer{outputs: []string{"fixed content"}}

	loop := newLoop(validator, analyzer, repairer)
	out := loop.Run(context.Background(), "a.py", "orig", "cand")

	if !out.Verified {
		t.Fatalf("expected verified after one repair round")
	}
	if out.Final != "fixed content" {
		t.Fatalf("final candidate must be the repaired one, got %q", out.Final)
	}
	if out.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", out.Attempts)
	}
	if analyzer.calls != 1 || repairer.calls != 1 {
		t.Fatalf("expected one analyze and one repair, got %d/%d", analyzer.calls, repairer.calls)
	}
}

func TestUnusableValidatorIsOptimisticPass(t *testing.T) {
	validator := &stubValidator{errs: []error{fmt.Errorf("malformed json")}}
	loop := newLoop(validator, &stubAnalyzer{}, &stubRepairer{})

	out := loop.Run(context.Background(), "a.py", "orig", "cand")

	if !out.Verified {
		t.Fatalf("unusable validation must be treated as a pass")
	}
	if out.Confidence != loop.Policy.FallbackConfidence {
		t.Fatalf("expected fallback confidence %.2f, got %.2f", loop.Policy.FallbackConfidence, out.Confidence)
	}
}

func TestAnalyzerFailureBreaksLoopWithBestCandidate(t *testing.T) {
	validator := &stubValidator{verdicts: []*Verdict{{Passed: false, Confidence: 0.1, Issues: []string{"bad"}}}}
	analyzer := &stubAnalyzer{err: fmt.Errorf("transport down")}
	repairer := &stubRepairer{}

	loop := newLoop(validator, analyzer, repairer)
	out := loop.Run(context.Background(), "a.py", "orig", "cand")

	if out.Verified {
		t.Fatalf("analyzer failure must not verify")
	}
	if out.Final != "cand" {
		t.Fatalf("must keep last good candidate, got %q", out.Final)
	}
	if out.Attempts != 1 {
		t.Fatalf("expected 1 attempt before the break, got %d", out.Attempts)
	}
	if repairer.calls != 0 {
		t.Fatalf("repairer must not run after analyzer failure")
	}
}

func TestRepairFailureBreaksLoopWithBestCandidate(t *testing.T) {
	validator := &stubValidator{verdicts: []*Verdict{{Passed: false, Confidence: 0.1}}}
	analyzer := &stubAnalyzer{diag: &Diagnosis{RootCause: "x"}}
	repairer := &stubRepairer{err: fmt.Errorf("rate limited")}

	loop := newLoop(validator, analyzer, repairer)
	out := loop.Run(context.Background(), "a.py", "orig", "cand")

	if out.Verified || out.Final != "cand" || out.State != StateExhausted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestLoopEmitsProgressInOrder(t *testing.T) {
	bus := progress.NewBus(32)
	defer bus.Close()

	var mu sync.Mutex
	var statuses []progress.Status
	unsub := bus.Subscribe(func(e progress.Event) {
		mu.Lock()
		statuses = append(statuses, e.Status)
		mu.Unlock()
	})
	defer unsub()

	validator := &stubValidator{verdicts: []*Verdict{
		{Passed: false, Confidence: 0.0, Issues: []string{"bad"}},
		{Passed: true, Confidence: 1.0},
	}}
	loop := newLoop(validator, &stubAnalyzer{diag: &Diagnosis{}}, &stubRepairer{})
	loop.Bus = bus

	loop.Run(context.Background(), "a.py", "orig", "cand")

	want := []progress.Status{progress.StatusVerifying, progress.StatusFixing, progress.StatusVerifying, progress.StatusVerified}
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(statuses)
		mu.Unlock()
		if n == len(want) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d events, got %d", len(want), n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, statuses[i], want[i])
		}
	}
}
