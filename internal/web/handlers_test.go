package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/config"
	"curator/internal/wiki"
)

func newTestServer(t *testing.T) (*httptest.Server, *wiki.Store) {
	t.Helper()
	store, err := wiki.Open(filepath.Join(t.TempDir(), "curator.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	srv := httptest.NewServer(NewServer(config.Config{SiteTitle: "Curator"}, store).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func postForm(t *testing.T, srv *httptest.Server, path string, form url.Values) *http.Response {
	t.Helper()
	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.PostForm(srv.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestCreateAndViewPage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postForm(t, srv, "/wiki/new", url.Values{
		"title":   {"Gorgar Repair Notes"},
		"content": {"Speech board pinout."},
		"tags":    {"machines/em"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/wiki/machines/em/gorgar-repair-notes" {
		t.Fatalf("redirect = %q", loc)
	}

	view := get(t, srv, "/wiki/machines/em/gorgar-repair-notes")
	if view.StatusCode != http.StatusOK {
		t.Fatalf("view status = %d", view.StatusCode)
	}
	body := readBody(t, view)
	if !strings.Contains(body, "Gorgar Repair Notes") || !strings.Contains(body, "Speech board pinout.") {
		t.Fatalf("view body missing content:\n%s", body)
	}
}

func TestViewMissingPage(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := get(t, srv, "/wiki/no/such/page")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestEditPageFlow(t *testing.T) {
	srv, store := newTestServer(t)
	page, err := store.CreatePage(context.Background(), wiki.SavePageParams{
		Title: "Draft", Content: "v1", Tags: []string{"notes"}, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("seed page: %v", err)
	}

	form := get(t, srv, "/edit/notes/draft")
	if form.StatusCode != http.StatusOK {
		t.Fatalf("edit form status = %d", form.StatusCode)
	}
	if body := readBody(t, form); !strings.Contains(body, "v1") {
		t.Fatalf("edit form missing current content:\n%s", body)
	}

	resp := postForm(t, srv, "/edit/notes/draft", url.Values{
		"title":   {"Draft"},
		"content": {"v2"},
		"tags":    {"notes"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("save status = %d", resp.StatusCode)
	}

	reloaded, err := store.GetPage(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Content != "v2" {
		t.Fatalf("content = %q", reloaded.Content)
	}
}

func TestCreatePageDuplicateSlugConflict(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.CreatePage(context.Background(), wiki.SavePageParams{
		Title: "Gorgar", Tags: []string{"machines"}, Actor: "tester",
	}); err != nil {
		t.Fatalf("seed page: %v", err)
	}

	resp := postForm(t, srv, "/wiki/new", url.Values{
		"title": {"Gorgar"},
		"tags":  {"machines"},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "already in use") {
		t.Fatalf("conflict body missing error:\n%s", body)
	}
}

func TestDeletePageBlockedReturnsJSON(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.CreatePage(context.Background(), wiki.SavePageParams{
		Title: "Target", Tags: []string{"a"}, Actor: "tester",
	}); err != nil {
		t.Fatalf("seed target: %v", err)
	}
	if _, err := store.CreatePage(context.Background(), wiki.SavePageParams{
		Title: "Source", Content: "see [[page:a/target]]", Tags: []string{"b"}, Actor: "tester",
	}); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	resp := postForm(t, srv, "/delete/a/target", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload struct {
		Blocked   bool `json:"blocked"`
		BlockedBy []struct {
			Kind  string `json:"kind"`
			Label string `json:"label"`
		} `json:"blocked_by"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Blocked || len(payload.BlockedBy) != 1 || payload.BlockedBy[0].Label != "Source" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestAutocompleteJSON(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.CreatePage(context.Background(), wiki.SavePageParams{
		Title: "Gorgar Notes", Tags: []string{"machines"}, Actor: "tester",
	}); err != nil {
		t.Fatalf("seed page: %v", err)
	}

	resp := get(t, srv, "/api/autocomplete?q=gorgar")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var matches []struct {
		Kind  string `json:"kind"`
		Ref   string `json:"ref"`
		Label string `json:"label"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(matches) != 1 || matches[0].Kind != "page" || matches[0].Ref != "machines/gorgar-notes" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestAdminRenameTag(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.CreatePage(context.Background(), wiki.SavePageParams{
		Title: "One", Tags: []string{"a/b"}, Actor: "tester",
	}); err != nil {
		t.Fatalf("seed page: %v", err)
	}

	resp := postForm(t, srv, "/admin/tags/rename", url.Values{"old": {"a/b"}, "new": {"a/c"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, _, err := store.GetPageByPath(context.Background(), "a/c/one"); err != nil {
		t.Fatalf("page not reachable at new path: %v", err)
	}

	missing := postForm(t, srv, "/admin/tags/rename", url.Values{"old": {"zzz"}, "new": {"yyy"}})
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing tag status = %d", missing.StatusCode)
	}
}

func TestAdminDeleteTagReportsUntagged(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.CreatePage(context.Background(), wiki.SavePageParams{
		Title: "Orphan", Tags: []string{"machines/em"}, Actor: "tester",
	}); err != nil {
		t.Fatalf("seed page: %v", err)
	}

	resp := postForm(t, srv, "/admin/tags/delete", url.Values{"tag": {"machines"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload struct {
		OK       bool `json:"ok"`
		Untagged []struct {
			Title string `json:"title"`
			Slug  string `json:"slug"`
		} `json:"untagged"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.OK || len(payload.Untagged) != 1 || payload.Untagged[0].Slug != "orphan" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestActorHeaderRecorded(t *testing.T) {
	srv, store := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/wiki/new",
		strings.NewReader(url.Values{"title": {"Signed Page"}}.Encode()))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-User", "alice")
	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	page, _, err := store.GetPageByPath(context.Background(), "signed-page")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if page.CreatedBy != "alice" {
		t.Fatalf("created_by = %q", page.CreatedBy)
	}
}
