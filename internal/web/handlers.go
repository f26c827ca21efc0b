package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"curator/internal/tagpath"
	"curator/internal/wiki"
	"curator/internal/wikilink"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	tree, err := s.store.NavigationTree(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.views.RenderPage(w, ViewData{
		SiteTitle:       s.cfg.SiteTitle,
		Title:           "Home",
		ContentTemplate: "home",
		Tree:            tree,
	})
}

func (s *Server) handleViewPage(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	page, loc, err := s.store.GetPageByPath(r.Context(), path)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	display, err := s.store.DisplayContent(r.Context(), page.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	html, err := renderMarkdown(display)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	linksHere, err := s.store.LinksHere(r.Context(), wikilink.KindPage, loc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	related, err := s.store.RelatedRecords(r.Context(), wikilink.KindPage, loc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	locations, err := s.store.PageLocations(r.Context(), page.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tree, err := s.store.NavigationTree(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.views.RenderPage(w, ViewData{
		SiteTitle:       s.cfg.SiteTitle,
		Title:           page.Title,
		ContentTemplate: "page",
		Tree:            tree,
		Page:            page,
		Location:        loc,
		Locations:       locations,
		PageHTML:        html,
		LinksHere:       linksHere,
		Related:         related,
	})
}

func (s *Server) handleNewPage(w http.ResponseWriter, r *http.Request) {
	s.views.RenderPage(w, ViewData{
		SiteTitle:       s.cfg.SiteTitle,
		Title:           "New page",
		ContentTemplate: "edit",
		EditAction:      "/wiki/new",
	})
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	params, err := saveParamsFromForm(r)
	if err != nil {
		s.renderEditError(w, "/wiki/new", params, err)
		return
	}
	page, err := s.store.CreatePage(r.Context(), params)
	if err != nil {
		s.renderEditError(w, "/wiki/new", params, err)
		return
	}
	s.redirectToPage(w, r, page.ID)
}

func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	page, _, err := s.store.GetPageByPath(r.Context(), path)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	display, err := s.store.DisplayContent(r.Context(), page.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	locations, err := s.store.PageLocations(r.Context(), page.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tags := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc.Tag != "" {
			tags = append(tags, loc.Tag)
		}
	}
	s.views.RenderPage(w, ViewData{
		SiteTitle:       s.cfg.SiteTitle,
		Title:           "Edit " + page.Title,
		ContentTemplate: "edit",
		Page:            page,
		EditContent:     display,
		EditTags:        strings.Join(tags, ", "),
		EditAction:      "/edit/" + path,
	})
}

func (s *Server) handleSavePage(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	page, _, err := s.store.GetPageByPath(r.Context(), path)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	params, err := saveParamsFromForm(r)
	if err != nil {
		s.renderEditError(w, "/edit/"+path, params, err)
		return
	}
	updated, err := s.store.UpdatePage(r.Context(), page.ID, params)
	if err != nil {
		s.renderEditError(w, "/edit/"+path, params, err)
		return
	}
	s.redirectToPage(w, r, updated.ID)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	page, _, err := s.store.GetPageByPath(r.Context(), path)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	result, err := s.store.DeletePage(r.Context(), page.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if result.Blocked {
		writeJSON(w, http.StatusConflict, map[string]any{
			"blocked":    true,
			"blocked_by": sourceRefsJSON(result.BlockedBy),
		})
		return
	}
	http.Redirect(w, r, "/wiki/", http.StatusSeeOther)
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	matches, err := s.store.SearchPaths(r.Context(), query, 20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type match struct {
		Kind  string `json:"kind"`
		Ref   string `json:"ref"`
		Label string `json:"label"`
	}
	out := make([]match, 0, len(matches))
	for _, m := range matches {
		out = append(out, match{Kind: string(m.Kind), Ref: m.Ref, Label: m.Label})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRenameTag(w http.ResponseWriter, r *http.Request) {
	oldTag := r.FormValue("old")
	newTag := r.FormValue("new")
	err := s.store.RenameTag(r.Context(), oldTag, newTag)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.DeleteTag(r.Context(), r.FormValue("tag"))
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if result.Blocked {
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":             false,
			"blocked":        true,
			"blocked_by":     sourceRefsJSON(result.BlockedBy),
			"slug_conflicts": pageSummariesJSON(result.SlugConflicts),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "untagged": pageSummariesJSON(result.Untagged)})
}

func saveParamsFromForm(r *http.Request) (wiki.SavePageParams, error) {
	if err := r.ParseForm(); err != nil {
		return wiki.SavePageParams{}, err
	}
	var tags []string
	for _, chunk := range strings.Split(r.FormValue("tags"), ",") {
		if t := strings.TrimSpace(chunk); t != "" {
			tags = append(tags, t)
		}
	}
	return wiki.SavePageParams{
		Title:   r.FormValue("title"),
		Slug:    r.FormValue("slug"),
		Content: r.FormValue("content"),
		Tags:    tags,
		Actor:   actorFrom(r),
	}, nil
}

// actorFrom trusts the upstream proxy's identity header; authentication
// itself lives outside this service.
func actorFrom(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Forwarded-User")); actor != "" {
		return actor
	}
	return "anonymous"
}

func (s *Server) redirectToPage(w http.ResponseWriter, r *http.Request, pageID int64) {
	locations, err := s.store.PageLocations(r.Context(), pageID)
	if err != nil || len(locations) == 0 {
		http.Redirect(w, r, "/wiki/", http.StatusSeeOther)
		return
	}
	loc := locations[0]
	http.Redirect(w, r, "/wiki/"+tagpath.Join(loc.Tag, loc.Slug), http.StatusSeeOther)
}

func (s *Server) renderEditError(w http.ResponseWriter, action string, params wiki.SavePageParams, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusFor(err))
	s.views.RenderPage(w, ViewData{
		SiteTitle:       s.cfg.SiteTitle,
		Title:           "Edit",
		ContentTemplate: "edit",
		EditContent:     params.Content,
		EditTags:        strings.Join(params.Tags, ", "),
		EditAction:      action,
		Error:           err.Error(),
	})
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var ve *tagpath.ValidationError
	var dup *wiki.DuplicateSlugError
	var col *wiki.TagCollisionError
	var ref *wiki.ReferencedError
	switch {
	case errors.Is(err, wiki.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dup), errors.As(err, &col), errors.As(err, &ref):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func sourceRefsJSON(refs []wiki.SourceRef) []map[string]any {
	out := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		out = append(out, map[string]any{"kind": string(ref.Kind), "id": ref.ID, "label": ref.Label})
	}
	return out
}

func pageSummariesJSON(pages []wiki.PageSummary) []map[string]any {
	out := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		out = append(out, map[string]any{"id": p.ID, "title": p.Title, "slug": p.Slug})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
