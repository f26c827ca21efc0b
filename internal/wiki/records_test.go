package wiki

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"curator/internal/tagpath"
	"curator/internal/wikilink"
)

func TestCreateMachineDerivesSlug(t *testing.T) {
	s := newTestStore(t)
	model, err := s.CreateMachineModel(context.Background(), "Williams System 6")
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	if model.Slug != "williams-system-6" {
		t.Fatalf("model slug = %q", model.Slug)
	}

	machine, err := s.CreateMachine(context.Background(), "Black Out", &model.ID)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}
	if machine.Slug != "black-out" {
		t.Fatalf("machine slug = %q", machine.Slug)
	}

	got, err := s.GetMachineBySlug(context.Background(), "black-out")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got.ID != machine.ID || got.ModelID == nil || *got.ModelID != model.ID {
		t.Fatalf("got %+v", got)
	}

	if _, err := s.CreateMachine(context.Background(), "black out", nil); err == nil {
		t.Fatal("expected duplicate slug error")
	}
}

func TestProblemReportLinksIndexed(t *testing.T) {
	s := newTestStore(t)
	page := mustCreatePage(t, s, "Flipper Rebuild Guide", "steps", "guides")

	report, err := s.CreateProblemReport(context.Background(), nil,
		"Right flipper weak", "see [[page:guides/flipper-rebuild-guide]]", "visitor")
	if err != nil {
		t.Fatalf("create problem: %v", err)
	}

	locs, err := s.PageLocations(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	sources, err := s.LinksHere(context.Background(), wikilink.KindPage, locs[0].ID)
	if err != nil {
		t.Fatalf("links here: %v", err)
	}
	if len(sources) != 1 || sources[0].Kind != wikilink.KindProblem || sources[0].ID != report.ID {
		t.Fatalf("sources = %+v", sources)
	}
	if sources[0].Label != "Right flipper weak" {
		t.Fatalf("label = %q", sources[0].Label)
	}
}

func TestUpdateRecordContentResyncsRefs(t *testing.T) {
	s := newTestStore(t)
	first, err := s.CreateMachine(context.Background(), "Gorgar", nil)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}
	second, err := s.CreateMachine(context.Background(), "Firepower", nil)
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}

	entry, err := s.CreateLogEntry(context.Background(), &first.ID, "cleaned [[machine:gorgar]]", "tech")
	if err != nil {
		t.Fatalf("create log: %v", err)
	}

	updated, err := s.UpdateRecordContent(context.Background(), wikilink.KindLog, entry.ID, "moved on to [[machine:firepower]]")
	if err != nil {
		t.Fatalf("update log: %v", err)
	}
	want := fmt.Sprintf("moved on to [[machine:id:%d]]", second.ID)
	if updated.Content != want {
		t.Fatalf("content = %q, want %q", updated.Content, want)
	}

	if got, err := s.LinksHere(context.Background(), wikilink.KindMachine, first.ID); err != nil || len(got) != 0 {
		t.Fatalf("stale edge survived: %+v err=%v", got, err)
	}
	got, err := s.LinksHere(context.Background(), wikilink.KindMachine, second.ID)
	if err != nil {
		t.Fatalf("links here: %v", err)
	}
	if len(got) != 1 || got[0].Kind != wikilink.KindLog || got[0].ID != entry.ID {
		t.Fatalf("sources = %+v", got)
	}
}

func TestPartRequestUpdateChain(t *testing.T) {
	s := newTestStore(t)
	request, err := s.CreatePartRequest(context.Background(), nil, "need a flipper coil FL-11630", "tech")
	if err != nil {
		t.Fatalf("create part request: %v", err)
	}

	update, err := s.CreatePartRequestUpdate(context.Background(), request.ID,
		fmt.Sprintf("ordered, tracking under [[part:%d]]", request.ID), "tech")
	if err != nil {
		t.Fatalf("create update: %v", err)
	}
	if update.ParentID == nil || *update.ParentID != request.ID {
		t.Fatalf("update parent = %+v", update.ParentID)
	}

	related, err := s.RelatedRecords(context.Background(), wikilink.KindPartUpdate, update.ID)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 1 || related[0].Kind != wikilink.KindPart || related[0].ID != request.ID {
		t.Fatalf("related = %+v", related)
	}
}

func TestUpdateRecordContentRejectsTargetOnlyKinds(t *testing.T) {
	s := newTestStore(t)
	var ve *tagpath.ValidationError
	if _, err := s.UpdateRecordContent(context.Background(), wikilink.KindMachine, 1, "x"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := s.UpdateRecordContent(context.Background(), wikilink.KindPage, 1, "x"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateRecordContentNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpdateRecordContent(context.Background(), wikilink.KindLog, 42, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProblemReportRequiresTitle(t *testing.T) {
	s := newTestStore(t)
	var ve *tagpath.ValidationError
	if _, err := s.CreateProblemReport(context.Background(), nil, "  ", "body", "visitor"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
