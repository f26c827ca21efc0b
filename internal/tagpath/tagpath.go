// Package tagpath interprets hierarchical tag paths and page slugs.
//
// A tag path is zero or more slash-delimited segments of [a-z0-9-]. The
// empty string is the reserved "untagged" sentinel; normalizing non-empty
// input never produces it. Slugs are single segments and never contain "/",
// which is what makes URL splitting unambiguous without a lookup.
package tagpath

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidationError reports tag or slug input that normalizes to nothing.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid path input %q: %s", e.Input, e.Reason)
}

// NormalizeSlug canonicalizes a single path segment: lower-case, whitespace
// to hyphens, everything outside [a-z0-9-] stripped. Non-empty input that
// normalizes to nothing is a validation failure.
func NormalizeSlug(raw string) (string, error) {
	seg := normalizeSegment(raw)
	if seg == "" {
		return "", &ValidationError{Input: raw, Reason: "slug is empty after normalization"}
	}
	return seg, nil
}

// Normalize canonicalizes a tag path, normalizing each "/"-delimited segment
// independently and dropping empty segments. Blank input yields the untagged
// sentinel ""; non-blank input that normalizes to nothing is an error.
func Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	parts := strings.Split(raw, "/")
	segs := make([]string, 0, len(parts))
	for _, part := range parts {
		seg := normalizeSegment(part)
		if seg == "" {
			continue
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return "", &ValidationError{Input: raw, Reason: "tag path is empty after normalization"}
	}
	return strings.Join(segs, "/"), nil
}

func normalizeSegment(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	lastHyphen := true // swallow leading hyphens
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case unicode.IsSpace(r), r == '-':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Join computes the full navigation address of a slug under a tag path.
// Never stored; always derived.
func Join(tag, slug string) string {
	if tag == "" {
		return slug
	}
	return tag + "/" + slug
}

// Split recovers (tag, slug) from a full path. The last segment is always
// the slug; a single-segment path is untagged.
func Split(path string) (tag, slug string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
