package web

import (
	"html/template"

	"curator/internal/wiki"
)

type ViewData struct {
	SiteTitle       string
	Title           string
	ContentTemplate string
	ContentHTML     template.HTML

	Tree *wiki.TreeNode

	Page        *wiki.Page
	Location    *wiki.Location
	Locations   []wiki.Location
	PageHTML    template.HTML
	EditContent string
	EditTags    string
	EditAction  string

	LinksHere []wiki.SourceRef
	Related   []wiki.TargetRef

	Error string
}
