package githost

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const githubAPIBaseURL = "https://api.github.com"

// ExecHost drives a local git binary for repository operations and the
// GitHub REST API for pull requests.
type ExecHost struct {
	Token      string
	APIBaseURL string
	HTTPClient *http.Client
	Logf       func(format string, args ...any)
}

// NewExecHost creates a Host backed by git and the GitHub API.
func NewExecHost(token string) *ExecHost {
	return &ExecHost{
		Token:      token,
		APIBaseURL: githubAPIBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Clone checks the repository out into dir.
func (h *ExecHost) Clone(ctx context.Context, repo Repo, dir string) error {
	if repo.URL == "" {
		return fmt.Errorf("repository URL is required")
	}
	return h.git(ctx, "", "clone", "--depth", "1", repo.URL, dir)
}

// Materialize clones the repository into a temp dir, writes the changes on
// a fresh branch, pushes, and opens a pull request. The temp clone is
// removed on every exit path.
func (h *ExecHost) Materialize(ctx context.Context, repo Repo, changes []Change) (*PullRequest, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("no changes to materialize")
	}

	dir, err := os.MkdirTemp("", "refit-push-*")
	if err != nil {
		return nil, fmt.Errorf("create push clone: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := h.git(ctx, "", "clone", repo.URL, dir); err != nil {
		return nil, err
	}

	branch := fmt.Sprintf("refit/modernize-%s", shortSuffix())
	if err := h.git(ctx, dir, "checkout", "-b", branch); err != nil {
		return nil, err
	}

	var written []string
	for _, change := range changes {
		dest := filepath.Join(dir, filepath.FromSlash(change.Path))
		if _, err := os.Stat(dest); err != nil {
			h.logf("githost: %s not present in checkout, skipping", change.Path)
			continue
		}
		if err := os.WriteFile(dest, []byte(change.Content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", change.Path, err)
		}
		written = append(written, change.Path)
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("no change targets exist in the repository")
	}

	if err := h.git(ctx, dir, append([]string{"add", "--"}, written...)...); err != nil {
		return nil, err
	}
	if err := h.git(ctx, dir, "-c", "user.name=refit", "-c", "user.email=refit@zen-systems.dev",
		"commit", "-m", "Modernize outdated syntax"); err != nil {
		return nil, err
	}
	if err := h.git(ctx, dir, "push", "origin", branch); err != nil {
		return nil, err
	}

	url, err := h.openPullRequest(ctx, repo, branch)
	if err != nil {
		return nil, err
	}
	return &PullRequest{Branch: branch, URL: url}, nil
}

func (h *ExecHost) openPullRequest(ctx context.Context, repo Repo, branch string) (string, error) {
	base := repo.BaseBranch
	if base == "" {
		base = "main"
	}

	payload := map[string]string{
		"title": "Modernize outdated syntax",
		"body":  "Automated modernization pass: discovery, rewrite, and verification with bounded repair.",
		"head":  branch,
		"base":  base,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal pull request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls", h.apiBase(), repo.Owner, repo.Name)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	client := h.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pull request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		HTMLURL string `json:"html_url"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse pull request response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("pull request rejected (status %d): %s", resp.StatusCode, parsed.Message)
	}
	return parsed.HTMLURL, nil
}

func (h *ExecHost) git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("git %s: %s", args[0], detail)
		}
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	return nil
}

func (h *ExecHost) apiBase() string {
	if h.APIBaseURL != "" {
		return h.APIBaseURL
	}
	return githubAPIBaseURL
}

func (h *ExecHost) logf(format string, args ...any) {
	if h.Logf != nil {
		h.Logf(format, args...)
	}
}

func shortSuffix() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", time.Now().UTC().UnixNano())))
	return hex.EncodeToString(sum[:4])
}
