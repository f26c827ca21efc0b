// Package wikilink implements the [[kind:ref]] link grammar embedded in
// markdown content across record types.
//
// Slug-addressed kinds (page, machine, model) are authored with a
// human-readable slug or path and stored in a rename-proof id form
// ([[machine:id:42]]). Numeric kinds (problem, log, part, partupdate) carry
// a raw identifier and pass through unchanged in both directions.
package wikilink

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies one of the fixed set of linkable record kinds. The set is
// closed: link resolution is a switch over these values, not open
// polymorphism.
type Kind string

const (
	KindPage       Kind = "page"       // wiki location (tag path + slug)
	KindMachine    Kind = "machine"    // machine instance, link target only
	KindModel      Kind = "model"      // machine model, link target only
	KindProblem    Kind = "problem"    // visitor problem report
	KindLog        Kind = "log"        // maintenance log entry
	KindPart       Kind = "part"       // part request
	KindPartUpdate Kind = "partupdate" // part request update
)

// Kinds lists every linkable kind.
var Kinds = []Kind{KindPage, KindMachine, KindModel, KindProblem, KindLog, KindPart, KindPartUpdate}

func (k Kind) Valid() bool {
	switch k {
	case KindPage, KindMachine, KindModel, KindProblem, KindLog, KindPart, KindPartUpdate:
		return true
	}
	return false
}

// SlugAddressed reports whether the kind is authored by slug/path rather
// than by numeric identifier.
func (k Kind) SlugAddressed() bool {
	switch k {
	case KindPage, KindMachine, KindModel:
		return true
	}
	return false
}

// CanSource reports whether records of this kind carry markdown content and
// may therefore appear on the source side of a reference. Machines and
// models are link targets only.
func (k Kind) CanSource() bool {
	switch k {
	case KindMachine, KindModel:
		return false
	}
	return k.Valid()
}

// Target is a resolved link destination.
type Target struct {
	Kind Kind
	ID   int64
}

// Token is one [[kind:ref]] occurrence in content. Raw is the full matched
// text including brackets.
type Token struct {
	Kind Kind
	Ref  string
	Raw  string
}

// ID returns the numeric identifier of a storage-form token
// ([[page:id:17]]) or of a numeric-kind token ([[problem:123]]).
func (t Token) ID() (int64, bool) {
	ref := t.Ref
	if t.Kind.SlugAddressed() {
		var ok bool
		ref, ok = strings.CutPrefix(ref, "id:")
		if !ok {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

var tokenRe = regexp.MustCompile(`\[\[([a-z]+):([^\[\]\n]+)\]\]`)

// Tokens extracts every well-formed link token from content. Tokens with an
// unknown kind tag are not part of the grammar and are skipped.
func Tokens(content string) []Token {
	var out []Token
	for _, m := range tokenRe.FindAllStringSubmatch(content, -1) {
		kind := Kind(m[1])
		if !kind.Valid() {
			continue
		}
		ref := strings.TrimSpace(m[2])
		if ref == "" {
			continue
		}
		out = append(out, Token{Kind: kind, Ref: ref, Raw: m[0]})
	}
	return out
}

// Resolver looks up link targets while converting content to storage form.
type Resolver interface {
	// ResolveRef maps a slug or full path to the target's identifier.
	// found=false means the link is dangling, which is not an error.
	ResolveRef(kind Kind, ref string) (id int64, found bool, err error)
	// RecordExists reports whether an id-addressed target exists.
	RecordExists(kind Kind, id int64) (bool, error)
}

// Displayer maps stable identifiers back to the current human-readable ref
// while converting content to authoring form.
type Displayer interface {
	RefForID(kind Kind, id int64) (ref string, found bool, err error)
}

// ToStorage converts authored content to storage form: every resolvable
// slug-addressed token is rewritten to its id form, and the deduplicated set
// of resolved targets is returned for the reference index. Unresolvable
// tokens are left in place and simply not indexed; authors are never blocked
// by a typo.
func ToStorage(content string, r Resolver) (string, []Target, error) {
	var targets []Target
	seen := make(map[Target]struct{})
	record := func(kind Kind, id int64) {
		t := Target{Kind: kind, ID: id}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}

	var rewriteErr error
	out := tokenRe.ReplaceAllStringFunc(content, func(raw string) string {
		if rewriteErr != nil {
			return raw
		}
		m := tokenRe.FindStringSubmatch(raw)
		kind := Kind(m[1])
		if !kind.Valid() {
			return raw
		}
		ref := strings.TrimSpace(m[2])
		tok := Token{Kind: kind, Ref: ref, Raw: raw}

		if id, ok := tok.ID(); ok {
			exists, err := r.RecordExists(kind, id)
			if err != nil {
				rewriteErr = err
				return raw
			}
			if exists {
				record(kind, id)
			}
			return raw
		}
		if !kind.SlugAddressed() {
			// Numeric kind with a malformed identifier: dangling.
			return raw
		}
		id, found, err := r.ResolveRef(kind, ref)
		if err != nil {
			rewriteErr = err
			return raw
		}
		if !found {
			return raw
		}
		record(kind, id)
		return "[[" + string(kind) + ":id:" + strconv.FormatInt(id, 10) + "]]"
	})
	if rewriteErr != nil {
		return "", nil, rewriteErr
	}
	return out, targets, nil
}

// ToDisplay converts storage-form content back to authoring form: every
// id-form slug-addressed token is rewritten to the target's current slug or
// path, so authors edit friendly syntax even after renames. Tokens whose
// target no longer exists are left unchanged.
func ToDisplay(content string, d Displayer) (string, error) {
	var rewriteErr error
	out := tokenRe.ReplaceAllStringFunc(content, func(raw string) string {
		if rewriteErr != nil {
			return raw
		}
		m := tokenRe.FindStringSubmatch(raw)
		kind := Kind(m[1])
		if !kind.Valid() || !kind.SlugAddressed() {
			return raw
		}
		tok := Token{Kind: kind, Ref: strings.TrimSpace(m[2]), Raw: raw}
		id, ok := tok.ID()
		if !ok {
			return raw
		}
		ref, found, err := d.RefForID(kind, id)
		if err != nil {
			rewriteErr = err
			return raw
		}
		if !found {
			return raw
		}
		return "[[" + string(kind) + ":" + ref + "]]"
	})
	if rewriteErr != nil {
		return "", rewriteErr
	}
	return out, nil
}
