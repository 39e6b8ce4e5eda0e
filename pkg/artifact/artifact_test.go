package artifact

import "testing"

func TestNewNormalizesPath(t *testing.T) {
	a := New("src//nested/../app.py", "print('hi')")
	if a.Path != "src/app.py" {
		t.Fatalf("unexpected path: %q", a.Path)
	}
	if a.Key() != a.Path {
		t.Fatalf("key must equal path")
	}
	if a.Hash == "" {
		t.Fatalf("expected content hash")
	}
}

func TestHashTracksContent(t *testing.T) {
	a := New("a.py", "one")
	b := New("a.py", "two")
	if a.Hash == b.Hash {
		t.Fatalf("different content must hash differently")
	}
	c := New("b.py", "one")
	if a.Hash != c.Hash {
		t.Fatalf("hash depends only on content")
	}
}
