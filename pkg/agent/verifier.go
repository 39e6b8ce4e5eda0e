package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zen-systems/refit/pkg/verify"
)

// Verifier hosts the three stage-3 workers. The validator runs on a cheap
// model, the analyzer escalates to a stronger one, and the fixer applies
// the diagnosis on the cheap model again.
type Verifier struct {
	Validator Role
	Analyzer  Role
	Fixer     Role
}

// Validate asks the validator model to compare the candidate against the
// original and judge whether the rewrite holds up.
func (v *Verifier) Validate(ctx context.Context, original, candidate string) (*verify.Verdict, error) {
	prompt := fmt.Sprintf(
		"You are a code reviewer. Quickly verify this code refactoring is correct.\n\n"+
			"ORIGINAL CODE:\n```\n%s\n```\n\n"+
			"REFACTORED CODE:\n```\n%s\n```\n\n"+
			"Check for:\n"+
			"1. Does the refactored code maintain the same functionality?\n"+
			"2. Is the syntax valid and uses modern patterns?\n"+
			"3. Are there any bugs or regressions introduced?\n"+
			"4. Is it a complete file (not partial or truncated)?\n\n"+
			"Return ONLY valid JSON:\n"+
			"{\"passed\": true/false, \"issues\": [\"list of issues found\"], \"confidence\": 0.0-1.0}",
		original, candidate,
	)

	reply, err := v.Validator.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	var verdict verify.Verdict
	if err := decodeReply(reply, &verdict); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &verdict, nil
}

// Analyze escalates a failing candidate to the analyzer model for a
// structured root-cause diagnosis.
func (v *Verifier) Analyze(ctx context.Context, original, candidate string, issues []string) (*verify.Diagnosis, error) {
	issueList, err := json.Marshal(issues)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	prompt := fmt.Sprintf(
		"You are a senior software engineer. The following code refactoring has issues.\n"+
			"Analyze deeply what went wrong and provide specific, actionable fix instructions.\n\n"+
			"ORIGINAL CODE:\n```\n%s\n```\n\n"+
			"FAULTY REFACTORED CODE:\n```\n%s\n```\n\n"+
			"ISSUES FOUND:\n%s\n\n"+
			"Return ONLY valid JSON:\n"+
			"{\"root_cause\": \"why this failed\", \"fix_instructions\": [\"step-by-step instructions for fixing\"]}",
		original, candidate, issueList,
	)

	reply, err := v.Analyzer.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var diag verify.Diagnosis
	if err := decodeReply(reply, &diag); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return &diag, nil
}

// Repair applies the diagnosis, returning a complete replacement file.
func (v *Verifier) Repair(ctx context.Context, original, candidate string, diag *verify.Diagnosis) (string, error) {
	instructions, err := json.Marshal(diag.FixInstructions)
	if err != nil {
		return "", fmt.Errorf("repair: %w", err)
	}

	prompt := fmt.Sprintf(
		"Fix the following refactored code based on the senior engineer's analysis.\n\n"+
			"ROOT CAUSE: %s\n\n"+
			"FIX INSTRUCTIONS:\n%s\n\n"+
			"ORIGINAL CODE:\n```\n%s\n```\n\n"+
			"CODE TO FIX:\n```\n%s\n```\n\n"+
			"Return ONLY the complete fixed code file. No explanations, no markdown, just the code.",
		diag.RootCause, instructions, original, candidate,
	)

	reply, err := v.Fixer.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("repair: %w", err)
	}

	fixed := stripCodeFence(reply)
	if fixed == "" {
		return "", fmt.Errorf("repair: worker returned empty file")
	}
	return fixed, nil
}
