package wiki

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"curator/internal/tagpath"
	"curator/internal/wikilink"
)

// SourceRef identifies a record whose content links somewhere, with a
// display label for confirmation prompts ("N pages link here").
type SourceRef struct {
	Kind  wikilink.Kind
	ID    int64
	Label string
}

// TargetRef identifies a record something links to.
type TargetRef struct {
	Kind  wikilink.Kind
	ID    int64
	Label string
}

// querier is the subset of sql.DB/sql.Tx the resolver needs, so the same
// lookups run inside and outside transactions.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// refResolver implements wikilink.Resolver and wikilink.Displayer against
// the store's tables.
type refResolver struct {
	ctx context.Context
	q   querier
}

func (r *refResolver) ResolveRef(kind wikilink.Kind, ref string) (int64, bool, error) {
	switch kind {
	case wikilink.KindPage:
		path, err := tagpath.Normalize(ref)
		if err != nil || path == "" {
			return 0, false, nil // malformed ref is a dangling link, not an error
		}
		tag, slug := tagpath.Split(path)
		return r.lookupID("SELECT id FROM page_locations WHERE tag=? AND slug=?", tag, slug)
	case wikilink.KindMachine:
		slug, err := tagpath.NormalizeSlug(ref)
		if err != nil {
			return 0, false, nil
		}
		return r.lookupID("SELECT id FROM machines WHERE slug=?", slug)
	case wikilink.KindModel:
		slug, err := tagpath.NormalizeSlug(ref)
		if err != nil {
			return 0, false, nil
		}
		return r.lookupID("SELECT id FROM machine_models WHERE slug=?", slug)
	}
	return 0, false, nil
}

func (r *refResolver) RecordExists(kind wikilink.Kind, id int64) (bool, error) {
	table, ok := tableForKind(kind)
	if !ok {
		return false, nil
	}
	_, found, err := r.lookupID("SELECT id FROM "+table+" WHERE id=?", id)
	return found, err
}

func (r *refResolver) RefForID(kind wikilink.Kind, id int64) (string, bool, error) {
	switch kind {
	case wikilink.KindPage:
		var tag, slug string
		err := r.q.QueryRowContext(r.ctx, "SELECT tag, slug FROM page_locations WHERE id=?", id).Scan(&tag, &slug)
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return tagpath.Join(tag, slug), true, nil
	case wikilink.KindMachine:
		return r.lookupRef("SELECT slug FROM machines WHERE id=?", id)
	case wikilink.KindModel:
		return r.lookupRef("SELECT slug FROM machine_models WHERE id=?", id)
	}
	return "", false, nil
}

func (r *refResolver) lookupID(query string, args ...any) (int64, bool, error) {
	var id int64
	err := r.q.QueryRowContext(r.ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *refResolver) lookupRef(query string, id int64) (string, bool, error) {
	var ref string
	err := r.q.QueryRowContext(r.ctx, query, id).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ref, true, nil
}

func tableForKind(kind wikilink.Kind) (string, bool) {
	switch kind {
	case wikilink.KindPage:
		return "page_locations", true
	case wikilink.KindMachine:
		return "machines", true
	case wikilink.KindModel:
		return "machine_models", true
	case wikilink.KindProblem:
		return "problem_reports", true
	case wikilink.KindLog:
		return "log_entries", true
	case wikilink.KindPart:
		return "part_requests", true
	case wikilink.KindPartUpdate:
		return "part_request_updates", true
	}
	return "", false
}

// storageForm converts authored content to storage form and collects the
// resolved link targets, using the given querier for lookups.
func storageForm(ctx context.Context, q querier, content string) (string, []wikilink.Target, error) {
	return wikilink.ToStorage(content, &refResolver{ctx: ctx, q: q})
}

// DisplayContent converts storage-form content back to authoring form for
// an edit view: id tokens become the target's current slug or path.
func (s *Store) DisplayContent(ctx context.Context, content string) (string, error) {
	return wikilink.ToDisplay(content, &refResolver{ctx: ctx, q: s.db})
}

// replaceRefs rewrites a source record's outgoing edges: delete-then-insert
// inside the caller's transaction, so readers see the old set or the new
// set, never a mixture.
func replaceRefs(ctx context.Context, q querier, srcKind wikilink.Kind, srcID int64, targets []wikilink.Target) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM record_refs WHERE src_kind=? AND src_id=?", string(srcKind), srcID); err != nil {
		return err
	}
	for _, t := range targets {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO record_refs(src_kind, src_id, dst_kind, dst_id) VALUES(?, ?, ?, ?)",
			string(srcKind), srcID, string(t.Kind), t.ID); err != nil {
			return err
		}
	}
	return nil
}

// LinksHere answers "what links here" for any record.
func (s *Store) LinksHere(ctx context.Context, kind wikilink.Kind, id int64) ([]SourceRef, error) {
	rows, err := s.queryContext(ctx,
		"SELECT src_kind, src_id FROM record_refs WHERE dst_kind=? AND dst_id=? ORDER BY src_kind, src_id",
		string(kind), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceRef
	for rows.Next() {
		var ref SourceRef
		var k string
		if err := rows.Scan(&k, &ref.ID); err != nil {
			return nil, err
		}
		ref.Kind = wikilink.Kind(k)
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		label, err := recordLabel(ctx, s.db, out[i].Kind, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Label = label
	}
	return out, nil
}

// RelatedRecords answers "what does this record link to".
func (s *Store) RelatedRecords(ctx context.Context, kind wikilink.Kind, id int64) ([]TargetRef, error) {
	rows, err := s.queryContext(ctx,
		"SELECT dst_kind, dst_id FROM record_refs WHERE src_kind=? AND src_id=? ORDER BY dst_kind, dst_id",
		string(kind), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TargetRef
	for rows.Next() {
		var ref TargetRef
		var k string
		if err := rows.Scan(&k, &ref.ID); err != nil {
			return nil, err
		}
		ref.Kind = wikilink.Kind(k)
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		label, err := recordLabel(ctx, s.db, out[i].Kind, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Label = label
	}
	return out, nil
}

// recordLabel resolves a display label for confirmation prompts and link
// listings. Missing rows degrade to "kind #id" rather than failing a view.
func recordLabel(ctx context.Context, q querier, kind wikilink.Kind, id int64) (string, error) {
	var label string
	var err error
	switch kind {
	case wikilink.KindPage:
		err = q.QueryRowContext(ctx,
			"SELECT p.title FROM page_locations l JOIN pages p ON p.id = l.page_id WHERE l.id=?", id).Scan(&label)
	case wikilink.KindMachine:
		err = q.QueryRowContext(ctx, "SELECT name FROM machines WHERE id=?", id).Scan(&label)
	case wikilink.KindModel:
		err = q.QueryRowContext(ctx, "SELECT name FROM machine_models WHERE id=?", id).Scan(&label)
	case wikilink.KindProblem:
		err = q.QueryRowContext(ctx, "SELECT title FROM problem_reports WHERE id=?", id).Scan(&label)
	default:
		err = sql.ErrNoRows
	}
	if errors.Is(err, sql.ErrNoRows) || strings.TrimSpace(label) == "" {
		return fmt.Sprintf("%s #%d", kind, id), nil
	}
	if err != nil {
		return "", err
	}
	return label, nil
}
