package files

import "testing"

func TestResolverRejectsEscape(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	if _, err := resolver.Resolve("../outside.txt"); err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestResolverJoinsRelativePath(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	resolved, err := resolver.Resolve("notes/todo.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected a non-empty resolved path")
	}
}

func TestResolverRejectsEmptyPath(t *testing.T) {
	resolver := Resolver{Root: t.TempDir()}
	if _, err := resolver.Resolve(""); err == nil {
		t.Fatal("expected an empty path to be rejected")
	}
}
