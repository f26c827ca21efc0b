package wiki

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a page, record, or tag path has no rows.
var ErrNotFound = errors.New("not found")

// DuplicateSlugError reports a (tag, slug) collision on page create or slug
// change. Never silently resolved; the caller decides how to recover.
type DuplicateSlugError struct {
	Tag  string
	Slug string
}

func (e *DuplicateSlugError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("slug %q already in use by an untagged page", e.Slug)
	}
	return fmt.Sprintf("slug %q already in use under tag %q", e.Slug, e.Tag)
}

// TagCollisionError reports a rename whose target path is already occupied,
// either exactly or by a nested tag.
type TagCollisionError struct {
	Path string
}

func (e *TagCollisionError) Error() string {
	return fmt.Sprintf("tag path %q is already occupied", e.Path)
}

// ReferencedError refuses removing a page location that other records still
// link at; BlockedBy names them for the confirmation prompt.
type ReferencedError struct {
	BlockedBy []SourceRef
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%d other records link here", len(e.BlockedBy))
}
