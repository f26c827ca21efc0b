package wiki

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "curator.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

func mustCreatePage(t *testing.T, s *Store, title, content string, tags ...string) *Page {
	t.Helper()
	page, err := s.CreatePage(context.Background(), SavePageParams{
		Title:   title,
		Content: content,
		Tags:    tags,
		Actor:   "tester",
	})
	if err != nil {
		t.Fatalf("create page %q: %v", title, err)
	}
	return page
}
