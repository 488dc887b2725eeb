package storage

import "testing"

func TestBookmarks_CreateAndGet(t *testing.T) {
	bm := NewBookmarkManager()

	if err := bm.Create("before-deploy", 42); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	b, err := bm.Get("before-deploy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if b.SpanPos != 42 {
		t.Errorf("SpanPos = %d, want 42", b.SpanPos)
	}
	if b.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestBookmarks_DuplicateName(t *testing.T) {
	bm := NewBookmarkManager()
	bm.Create("x", 1)
	if err := bm.Create("x", 2); err == nil {
		t.Error("expected error for duplicate bookmark name")
	}
}

func TestBookmarks_GetMissing(t *testing.T) {
	bm := NewBookmarkManager()
	if _, err := bm.Get("ghost"); err == nil {
		t.Error("expected error for missing bookmark")
	}
}

func TestBookmarks_DeleteAndList(t *testing.T) {
	bm := NewBookmarkManager()
	bm.Create("b", 1)
	bm.Create("a", 2)

	names := bm.List()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("List() = %v, want [a b]", names)
	}

	if err := bm.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if bm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", bm.Count())
	}
	if err := bm.Delete("a"); err == nil {
		t.Error("expected error deleting missing bookmark")
	}
}
