package githost

import (
	"context"
	"fmt"
	"sync"
)

// MockHost records calls for tests and dry runs.
type MockHost struct {
	mu           sync.Mutex
	CloneErr     error
	MaterializeErr error
	PR           *PullRequest

	Cloned       []Repo
	Materialized [][]Change
}

// Clone records the request without touching the network.
func (m *MockHost) Clone(_ context.Context, repo Repo, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CloneErr != nil {
		return m.CloneErr
	}
	m.Cloned = append(m.Cloned, repo)
	return nil
}

// Materialize records the change set and returns the configured result.
func (m *MockHost) Materialize(_ context.Context, repo Repo, changes []Change) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MaterializeErr != nil {
		return nil, m.MaterializeErr
	}
	m.Materialized = append(m.Materialized, changes)
	if m.PR != nil {
		return m.PR, nil
	}
	return &PullRequest{
		Branch: "refit/modernize-mock",
		URL:    fmt.Sprintf("https://github.com/%s/%s/pull/1", repo.Owner, repo.Name),
	}, nil
}
