// Package web is the thin HTTP surface over the wiki core: page views and
// editing, link autocomplete, reverse-link listings, and tag administration.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"curator/internal/config"
	"curator/internal/wiki"
)

type Server struct {
	cfg    config.Config
	store  *wiki.Store
	router chi.Router
	views  *Templates
}

func NewServer(cfg config.Config, store *wiki.Store) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		router: chi.NewRouter(),
		views:  MustParseTemplates(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/wiki/", http.StatusFound)
	})

	s.router.Route("/wiki", func(r chi.Router) {
		r.Get("/", s.handleHome)
		r.Get("/new", s.handleNewPage)
		r.Post("/new", s.handleCreatePage)
		r.Get("/*", s.handleViewPage)
	})
	s.router.Get("/edit/*", s.handleEditPage)
	s.router.Post("/edit/*", s.handleSavePage)
	s.router.Post("/delete/*", s.handleDeletePage)

	s.router.Get("/api/autocomplete", s.handleAutocomplete)

	s.router.Route("/admin/tags", func(r chi.Router) {
		r.Post("/rename", s.handleRenameTag)
		r.Post("/delete", s.handleDeleteTag)
	})
}
