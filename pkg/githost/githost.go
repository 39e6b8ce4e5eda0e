// Package githost materializes accepted change sets as a branch and pull
// request on a hosted repository. The pipeline core only ever sees the Host
// interface; errors from an implementation are surfaced verbatim.
package githost

import "context"

// Repo is a reference to a hosted repository.
type Repo struct {
	URL   string
	Owner string
	Name  string
	// BaseBranch is the pull-request target, "main" when empty.
	BaseBranch string
}

// Change is one (path, new content) pair to materialize.
type Change struct {
	Path    string
	Content string
}

// PullRequest describes the materialized result.
type PullRequest struct {
	Branch string
	URL    string
}

// Host turns a set of changes into a branch and pull request.
type Host interface {
	// Clone checks the repository out into dir.
	Clone(ctx context.Context, repo Repo, dir string) error

	// Materialize writes the changes onto a new branch of the repository
	// and opens a pull request against the base branch.
	Materialize(ctx context.Context, repo Repo, changes []Change) (*PullRequest, error)
}
