package wiki

import (
	"context"
	"fmt"
	"testing"

	"curator/internal/wikilink"
)

func TestMachineLinkStorageAndDisplay(t *testing.T) {
	s := newTestStore(t)
	machine, err := s.CreateMachine(context.Background(), "Black Out", nil)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}

	page := mustCreatePage(t, s, "Repair Log", "Flipper rebuild on [[machine:Black Out]].", "notes")

	want := fmt.Sprintf("Flipper rebuild on [[machine:id:%d]].", machine.ID)
	if page.Content != want {
		t.Fatalf("storage form = %q, want %q", page.Content, want)
	}

	sources, err := s.LinksHere(context.Background(), wikilink.KindMachine, machine.ID)
	if err != nil {
		t.Fatalf("links here: %v", err)
	}
	if len(sources) != 1 || sources[0].Kind != wikilink.KindPage || sources[0].Label != "Repair Log" {
		t.Fatalf("sources = %+v", sources)
	}

	display, err := s.DisplayContent(context.Background(), page.Content)
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	if display != "Flipper rebuild on [[machine:black-out]]." {
		t.Fatalf("display form = %q", display)
	}
}

func TestPageLinkSurvivesRename(t *testing.T) {
	s := newTestStore(t)
	mustCreatePage(t, s, "Target", "x", "old")
	source := mustCreatePage(t, s, "Source", "see [[page:old/target]]", "notes")

	if err := s.RenameTag(context.Background(), "old", "new"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	display, err := s.DisplayContent(context.Background(), source.Content)
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	if display != "see [[page:new/target]]" {
		t.Fatalf("display form = %q", display)
	}
}

func TestDanglingLinkPassesThroughUnindexed(t *testing.T) {
	s := newTestStore(t)
	page := mustCreatePage(t, s, "Notes", "see [[machine:ghost]] and [[page:no/such/page]]", "notes")

	if page.Content != "see [[machine:ghost]] and [[page:no/such/page]]" {
		t.Fatalf("dangling tokens must pass through untouched: %q", page.Content)
	}

	locs, err := s.PageLocations(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	related, err := s.RelatedRecords(context.Background(), wikilink.KindPage, locs[0].ID)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 0 {
		t.Fatalf("dangling links must not be indexed: %+v", related)
	}
}

func TestNumericLinkIndexedOnlyWhenRecordExists(t *testing.T) {
	s := newTestStore(t)
	problem, err := s.CreateProblemReport(context.Background(), nil, "Left flipper dead", "reported at the desk", "staff")
	if err != nil {
		t.Fatalf("create problem: %v", err)
	}

	content := fmt.Sprintf("tracking [[problem:%d]] and [[problem:9999]]", problem.ID)
	page := mustCreatePage(t, s, "Triage", content, "notes")

	if page.Content != content {
		t.Fatalf("numeric tokens must keep their authored form: %q", page.Content)
	}

	locs, err := s.PageLocations(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	related, err := s.RelatedRecords(context.Background(), wikilink.KindPage, locs[0].ID)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 1 || related[0].Kind != wikilink.KindProblem || related[0].ID != problem.ID {
		t.Fatalf("related = %+v", related)
	}
	if related[0].Label != "Left flipper dead" {
		t.Fatalf("label = %q", related[0].Label)
	}
}

func TestRepeatedLinksIndexedOnce(t *testing.T) {
	s := newTestStore(t)
	machine, err := s.CreateMachine(context.Background(), "Gorgar", nil)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}

	page := mustCreatePage(t, s, "Notes", "[[machine:gorgar]] twice [[machine:gorgar]]", "notes")
	locs, err := s.PageLocations(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	related, err := s.RelatedRecords(context.Background(), wikilink.KindPage, locs[0].ID)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 1 || related[0].ID != machine.ID {
		t.Fatalf("duplicate links must collapse to one edge: %+v", related)
	}
}

func TestResaveIdenticalContentKeepsRefSet(t *testing.T) {
	s := newTestStore(t)
	machine, err := s.CreateMachine(context.Background(), "Gorgar", nil)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}

	page := mustCreatePage(t, s, "Notes", "see [[machine:gorgar]]", "notes")
	for i := 0; i < 2; i++ {
		display, err := s.DisplayContent(context.Background(), page.Content)
		if err != nil {
			t.Fatalf("display: %v", err)
		}
		if page, err = s.UpdatePage(context.Background(), page.ID, SavePageParams{
			Title: "Notes", Content: display, Tags: []string{"notes"}, Actor: "tester",
		}); err != nil {
			t.Fatalf("resave %d: %v", i, err)
		}
	}

	sources, err := s.LinksHere(context.Background(), wikilink.KindMachine, machine.ID)
	if err != nil {
		t.Fatalf("links here: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("resaves must not duplicate or drop edges: %+v", sources)
	}
}

func TestUpdatePageReplacesOutgoingRefs(t *testing.T) {
	s := newTestStore(t)
	first, err := s.CreateMachine(context.Background(), "Gorgar", nil)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}
	second, err := s.CreateMachine(context.Background(), "Firepower", nil)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}

	page := mustCreatePage(t, s, "Notes", "[[machine:gorgar]]", "notes")
	if _, err := s.UpdatePage(context.Background(), page.ID, SavePageParams{
		Title: "Notes", Content: "[[machine:firepower]]", Tags: []string{"notes"}, Actor: "tester",
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got, err := s.LinksHere(context.Background(), wikilink.KindMachine, first.ID); err != nil || len(got) != 0 {
		t.Fatalf("stale edge survived: %+v err=%v", got, err)
	}
	if got, err := s.LinksHere(context.Background(), wikilink.KindMachine, second.ID); err != nil || len(got) != 1 {
		t.Fatalf("new edge missing: %+v err=%v", got, err)
	}
}
