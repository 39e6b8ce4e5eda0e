package staging

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestNewAreaWipesExistingState(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "staging/stale.txt", []byte("leftover"), 0644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	area, err := NewArea(fs, "staging")
	if err != nil {
		t.Fatalf("new area: %v", err)
	}

	if _, err := fs.Stat("staging/stale.txt"); err == nil {
		t.Fatalf("stale staging state must be wiped")
	}
	if err := area.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := area.Remove(); err != nil {
		t.Fatalf("remove must be idempotent: %v", err)
	}
}

func TestImportTreeSkipsVCSMetadata(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed := map[string]string{
		"repo/app.py":          "print('hi')",
		"repo/sub/mod.py":      "pass",
		"repo/.git/HEAD":       "ref: refs/heads/main",
		"repo/.git/objects/ab": "blob",
	}
	for p, c := range seed {
		if err := afero.WriteFile(fs, p, []byte(c), 0644); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}

	area, err := NewArea(fs, "staging")
	if err != nil {
		t.Fatalf("new area: %v", err)
	}
	if err := area.ImportTree("repo"); err != nil {
		t.Fatalf("import: %v", err)
	}

	data, err := afero.ReadFile(fs, "staging/sub/mod.py")
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != "pass" {
		t.Fatalf("unexpected staged content: %q", data)
	}
	if _, err := fs.Stat("staging/.git/HEAD"); err == nil {
		t.Fatalf(".git must not be staged")
	}
}

func TestApplyWritesOnlyExistingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "staging/app.py", []byte("old"), 0644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	area := &Area{Root: "staging", fs: fs}

	var logged int
	applied, err := area.Apply([]FileChange{
		{Path: "app.py", Content: "new"},
		{Path: "ghost.py", Content: "x"},
	}, func(string, ...any) { logged++ })
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(applied) != 1 || applied[0] != "app.py" {
		t.Fatalf("unexpected applied set: %v", applied)
	}
	if logged != 1 {
		t.Fatalf("missing-file skip must be logged")
	}
	data, _ := afero.ReadFile(fs, "staging/app.py")
	if string(data) != "new" {
		t.Fatalf("content not applied: %q", data)
	}
}

func TestApplyAllMissingIsError(t *testing.T) {
	fs := afero.NewMemMapFs()
	area, err := NewArea(fs, "staging")
	if err != nil {
		t.Fatalf("new area: %v", err)
	}

	if _, err := area.Apply([]FileChange{{Path: "ghost.py", Content: "x"}}, nil); err == nil {
		t.Fatalf("expected error when nothing could be updated")
	}
}

func TestApplyRejectsEscapingPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	area, err := NewArea(fs, "staging")
	if err != nil {
		t.Fatalf("new area: %v", err)
	}

	for _, p := range []string{"../evil.py", "/abs.py", ""} {
		if _, err := area.Apply([]FileChange{{Path: p, Content: "x"}}, nil); err == nil {
			t.Fatalf("path %q must be rejected", p)
		}
	}
}

func TestRebaseReplacesPrefix(t *testing.T) {
	clone := filepath.Join("tmp", "clone-abc")
	stage := filepath.Join("srv", "staging")

	got, err := Rebase(clone, stage, filepath.Join(clone, "src", "app.py"))
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	want := filepath.Join(stage, "src", "app.py")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// Result must not depend on the clone root's length.
	longClone := filepath.Join("tmp", "a-much-longer-clone-directory-name")
	got2, err := Rebase(longClone, stage, filepath.Join(longClone, "src", "app.py"))
	if err != nil {
		t.Fatalf("rebase long: %v", err)
	}
	if got2 != want {
		t.Fatalf("got %q, want %q", got2, want)
	}
}

func TestRebaseRejectsEscape(t *testing.T) {
	if _, err := Rebase("tmp/clone", "stage", "tmp/other/app.py"); err == nil {
		t.Fatalf("path outside clone root must be rejected")
	}
}
