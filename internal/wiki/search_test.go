package wiki

import (
	"context"
	"testing"

	"curator/internal/wikilink"
)

func TestSearchPathsAcrossKinds(t *testing.T) {
	s := newTestStore(t)
	mustCreatePage(t, s, "Gorgar Repair Notes", "x", "machines/em")
	if _, err := s.CreateMachine(context.Background(), "Gorgar", nil); err != nil {
		t.Fatalf("create machine: %v", err)
	}
	mustCreatePage(t, s, "Unrelated", "x", "notes")

	matches, err := s.SearchPaths(context.Background(), "GORGAR", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[0].Kind != wikilink.KindPage || matches[0].Ref != "machines/em/gorgar-repair-notes" {
		t.Fatalf("page match = %+v", matches[0])
	}
	if matches[0].Label != "Gorgar Repair Notes" {
		t.Fatalf("page label = %q", matches[0].Label)
	}
	if matches[1].Kind != wikilink.KindMachine || matches[1].Ref != "gorgar" || matches[1].Label != "Gorgar" {
		t.Fatalf("machine match = %+v", matches[1])
	}
}

func TestSearchPathsHonorsLimit(t *testing.T) {
	s := newTestStore(t)
	mustCreatePage(t, s, "Gorgar One", "x", "a")
	mustCreatePage(t, s, "Gorgar Two", "x", "b")
	if _, err := s.CreateMachine(context.Background(), "Gorgar", nil); err != nil {
		t.Fatalf("create machine: %v", err)
	}

	matches, err := s.SearchPaths(context.Background(), "gorgar", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("limit not honored: %+v", matches)
	}
}

func TestSearchPathsEscapesLikeWildcards(t *testing.T) {
	s := newTestStore(t)
	mustCreatePage(t, s, "Plain", "x", "notes")

	matches, err := s.SearchPaths(context.Background(), "%", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("wildcard must match literally: %+v", matches)
	}
}

func TestSearchPathsEmptyQuery(t *testing.T) {
	s := newTestStore(t)
	matches, err := s.SearchPaths(context.Background(), "   ", 10)
	if err != nil || matches != nil {
		t.Fatalf("empty query: %+v err=%v", matches, err)
	}
}
