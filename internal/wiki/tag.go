package wiki

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"curator/internal/tagpath"
	"curator/internal/wikilink"
)

type DeleteTagResult struct {
	Blocked       bool
	BlockedBy     []SourceRef   // records outside the subtree linking into it
	SlugConflicts []PageSummary // untagged pages already holding an orphan's slug
	Untagged      []PageSummary // pages converted to untagged by the delete
}

// RenameTag atomically rewrites every location and order-hint row whose tag
// path equals old or sits beneath it, replacing the old prefix. The rename
// is refused when the new path or anything nested under it is already
// occupied; the check also covers renaming onto a proper prefix of an
// existing tag, the strict reading of the collision rule.
func (s *Store) RenameTag(ctx context.Context, oldRaw, newRaw string) error {
	oldTag, err := requireTag(oldRaw)
	if err != nil {
		return err
	}
	newTag, err := requireTag(newRaw)
	if err != nil {
		return err
	}
	if oldTag == newTag {
		return &tagpath.ValidationError{Input: newRaw, Reason: "new tag path equals the old one"}
	}

	tx, start, err := s.beginTx(ctx, "rename tag")
	if err != nil {
		return err
	}
	defer s.rollbackTx(tx, "rename tag", start)

	occupied, err := tagOccupied(ctx, tx, newTag)
	if err != nil {
		return err
	}
	if occupied {
		return &TagCollisionError{Path: newTag}
	}

	// Tags are [a-z0-9-/] so the LIKE patterns need no escaping.
	res, err := tx.ExecContext(ctx,
		"UPDATE page_locations SET tag = ? || substr(tag, ?) WHERE tag = ? OR tag LIKE ? || '/%'",
		newTag, len(oldTag)+1, oldTag, oldTag)
	if err != nil {
		if isUniqueViolation(err) {
			return &TagCollisionError{Path: newTag}
		}
		return err
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return err
	}
	res, err = tx.ExecContext(ctx,
		"UPDATE tag_orders SET tag = ? || substr(tag, ?) WHERE tag = ? OR tag LIKE ? || '/%'",
		newTag, len(oldTag)+1, oldTag, oldTag)
	if err != nil {
		if isUniqueViolation(err) {
			return &TagCollisionError{Path: newTag}
		}
		return err
	}
	movedOrders, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if moved+movedOrders == 0 {
		return ErrNotFound
	}
	if err := s.commitTx(tx, "rename tag", start); err != nil {
		if isUniqueViolation(err) {
			return &TagCollisionError{Path: newTag}
		}
		return err
	}
	slog.Info("tag renamed", "old", oldTag, "new", newTag, "locations", moved)
	return nil
}

// DeleteTag removes every location under the path. It refuses, returning
// the blockers as data, when any record outside the subtree links at one of
// those locations, since the delete would silently orphan those links. Pages
// left with no other location are converted to untagged rather than
// orphaned, and reported so the caller can surface a warning.
func (s *Store) DeleteTag(ctx context.Context, raw string) (*DeleteTagResult, error) {
	tag, err := requireTag(raw)
	if err != nil {
		return nil, err
	}

	tx, start, err := s.beginTx(ctx, "delete tag")
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx, "delete tag", start)

	rows, err := tx.QueryContext(ctx,
		"SELECT id, page_id FROM page_locations WHERE tag = ? OR tag LIKE ? || '/%'", tag, tag)
	if err != nil {
		return nil, err
	}
	var locIDs []int64
	pageIDs := make(map[int64]bool)
	for rows.Next() {
		var locID, pageID int64
		if err := rows.Scan(&locID, &pageID); err != nil {
			rows.Close()
			return nil, err
		}
		locIDs = append(locIDs, locID)
		pageIDs[pageID] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(locIDs) == 0 {
		return nil, ErrNotFound
	}

	blockers, err := blockingSources(ctx, tx, locIDs, locIDs)
	if err != nil {
		return nil, err
	}
	if len(blockers) > 0 {
		return &DeleteTagResult{Blocked: true, BlockedBy: blockers}, nil
	}

	// Pages whose every location falls under the deleted path become
	// untagged instead of orphaned.
	orphaned := make([]int64, 0)
	for pageID := range pageIDs {
		var remaining int64
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM page_locations WHERE page_id = ? AND tag != ? AND tag NOT LIKE ? || '/%'",
			pageID, tag, tag).Scan(&remaining)
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			orphaned = append(orphaned, pageID)
		}
	}

	// An orphan converts to untagged only if no untagged page already holds
	// its slug; report the occupants as data rather than failing mid-delete.
	var clashes []PageSummary
	for _, pageID := range orphaned {
		var slug string
		if err := tx.QueryRowContext(ctx, "SELECT slug FROM pages WHERE id=?", pageID).Scan(&slug); err != nil {
			return nil, err
		}
		var occupant PageSummary
		err := tx.QueryRowContext(ctx, `
			SELECT p.id, p.title, p.slug FROM page_locations l
			JOIN pages p ON p.id = l.page_id
			WHERE l.tag = '' AND l.slug = ?`, slug).
			Scan(&occupant.ID, &occupant.Title, &occupant.Slug)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		clashes = append(clashes, occupant)
	}
	if len(clashes) > 0 {
		return &DeleteTagResult{Blocked: true, SlugConflicts: clashes}, nil
	}

	for _, locID := range locIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_refs WHERE src_kind=? AND src_id=?", string(wikilink.KindPage), locID); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM page_locations WHERE tag = ? OR tag LIKE ? || '/%'", tag, tag); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM tag_orders WHERE tag = ? OR tag LIKE ? || '/%'", tag, tag); err != nil {
		return nil, err
	}

	var untagged []PageSummary
	for _, pageID := range orphaned {
		var summary PageSummary
		err := tx.QueryRowContext(ctx, "SELECT id, title, slug FROM pages WHERE id=?", pageID).
			Scan(&summary.ID, &summary.Title, &summary.Slug)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO page_locations(page_id, tag, slug) VALUES(?, '', ?)", pageID, summary.Slug); err != nil {
			if isUniqueViolation(err) {
				return nil, &DuplicateSlugError{Slug: summary.Slug}
			}
			return nil, err
		}
		untagged = append(untagged, summary)
	}

	// Every surviving page in the subtree lost a location; recompute its
	// outgoing references under its new canonical location.
	for pageID := range pageIDs {
		var content string
		err := tx.QueryRowContext(ctx, "SELECT content FROM pages WHERE id=?", pageID).Scan(&content)
		if err != nil {
			return nil, err
		}
		if _, err := resyncPageContent(ctx, tx, pageID, content); err != nil {
			return nil, err
		}
	}

	if err := s.commitTx(tx, "delete tag", start); err != nil {
		return nil, err
	}
	slog.Info("tag deleted", "tag", tag, "locations", len(locIDs), "untagged_pages", len(untagged))
	return &DeleteTagResult{Untagged: untagged}, nil
}

// SetTagOrder gives a tag path an explicit sort position in the navigation
// tree. Tags without one sort alphabetically after ordered siblings.
func (s *Store) SetTagOrder(ctx context.Context, raw string, order int64) error {
	tag, err := requireTag(raw)
	if err != nil {
		return err
	}
	_, err = s.execContext(ctx,
		"INSERT INTO tag_orders(tag, sort_order) VALUES(?, ?) ON CONFLICT(tag) DO UPDATE SET sort_order=excluded.sort_order",
		tag, order)
	return err
}

func (s *Store) ClearTagOrder(ctx context.Context, raw string) error {
	tag, err := requireTag(raw)
	if err != nil {
		return err
	}
	_, err = s.execContext(ctx, "DELETE FROM tag_orders WHERE tag=?", tag)
	return err
}

// requireTag normalizes and rejects the untagged sentinel: structural
// operations never apply to "".
func requireTag(raw string) (string, error) {
	tag, err := tagpath.Normalize(raw)
	if err != nil {
		return "", err
	}
	if tag == "" {
		return "", &tagpath.ValidationError{Input: raw, Reason: "a tag path is required"}
	}
	return tag, nil
}

// tagOccupied reports whether any location or order-hint row sits at the
// path or beneath it.
func tagOccupied(ctx context.Context, q querier, tag string) (bool, error) {
	for _, query := range []string{
		"SELECT 1 FROM page_locations WHERE tag = ? OR tag LIKE ? || '/%' LIMIT 1",
		"SELECT 1 FROM tag_orders WHERE tag = ? OR tag LIKE ? || '/%' LIMIT 1",
	} {
		var one int
		err := q.QueryRowContext(ctx, query, tag, tag).Scan(&one)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
	}
	return false, nil
}
