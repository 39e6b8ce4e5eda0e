package scan

import (
	"sort"
	"testing"

	"github.com/spf13/afero"

	"github.com/zen-systems/refit/pkg/artifact"
)

func memTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return fs
}

func paths(arts []*artifact.Artifact) []string {
	out := make([]string, 0, len(arts))
	for _, a := range arts {
		out = append(out, a.Path)
	}
	sort.Strings(out)
	return out
}

func TestCollectAppliesExclusionRules(t *testing.T) {
	fs := memTree(t, map[string]string{
		"repo/b.py":             "print('hi')",
		"repo/a.txt":            "notes",
		"repo/style.css":        "body {}",
		"repo/data.json":        "{}",
		"repo/.env":             "SECRET=1",
		"repo/.git/config":      "[core]",
		"repo/src/app.js":       "let x = 1",
		"repo/src/.hidden.js":   "x",
		"repo/yarn.lock":        "v1",
		"repo/.github/ci.yml":   "jobs:",
		"repo/docs/README.md":   "# readme",
		"repo/assets/logo.svg":  "<svg/>",
		"repo/assets/icon.ico":  "ico",
		"repo/src/pages/idx.ts": "export {}",
	})

	s := &Scanner{FS: fs}
	arts, err := s.Collect("repo")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	got := paths(arts)
	want := []string{"b.py", "src/app.js", "src/pages/idx.ts"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCollectIsIdempotent(t *testing.T) {
	fs := memTree(t, map[string]string{
		"repo/one.py":    "a",
		"repo/two.go":    "b",
		"repo/sub/x.rb":  "c",
		"repo/skip.json": "{}",
	})

	s := &Scanner{FS: fs}
	first, err := s.Collect("repo")
	if err != nil {
		t.Fatalf("first collect: %v", err)
	}
	second, err := s.Collect("repo")
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}

	a, b := paths(first), paths(second)
	if len(a) != len(b) {
		t.Fatalf("identity sets differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("identity sets differ: %v vs %v", a, b)
		}
	}
}

func TestWalkMissingRoot(t *testing.T) {
	s := &Scanner{FS: afero.NewMemMapFs()}
	if err := s.Walk("nope", func(*artifact.Artifact) error { return nil }); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	fs := memTree(t, map[string]string{
		"repo/a.py": "a",
		"repo/b.py": "b",
	})
	s := &Scanner{FS: fs}

	calls := 0
	err := s.Walk("repo", func(*artifact.Artifact) error {
		calls++
		return afero.ErrFileClosed
	})
	if err == nil {
		t.Fatalf("expected callback error to propagate")
	}
	if calls != 1 {
		t.Fatalf("expected walk to stop after first error, got %d calls", calls)
	}
}
