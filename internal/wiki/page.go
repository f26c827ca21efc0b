package wiki

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"curator/internal/tagpath"
	"curator/internal/wikilink"
)

type Page struct {
	ID        int64
	UID       string
	Title     string
	Slug      string
	Content   string // storage form
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

// Location is one navigation address a page occupies. A page always has at
// least one; the untagged sentinel tag is "".
type Location struct {
	ID        int64
	PageID    int64
	Tag       string
	Slug      string
	SortOrder *int64
}

type PageSummary struct {
	ID    int64
	Title string
	Slug  string
}

type HistoryEntry struct {
	ID       int64
	PageID   int64
	Title    string
	Slug     string
	Content  string
	EditedAt time.Time
	EditedBy string
}

// SavePageParams is the authoring UI's submit payload. Content is authored
// (display) form; Tags are raw user input. An empty Slug is derived from the
// title, an empty tag list means untagged.
type SavePageParams struct {
	Title   string
	Slug    string
	Content string
	Tags    []string
	Actor   string
}

type DeletePageResult struct {
	Blocked   bool
	BlockedBy []SourceRef
}

// CreatePage validates the payload, places the page at each requested tag,
// converts the content to storage form, and seeds the reference index, all
// in one transaction.
func (s *Store) CreatePage(ctx context.Context, p SavePageParams) (*Page, error) {
	title, slug, tags, err := normalizeSave(p)
	if err != nil {
		return nil, err
	}

	tx, start, err := s.beginTx(ctx, "create page")
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx, "create page", start)

	now := nowUnix()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO pages(uid, title, slug, content, created_at, created_by, updated_at, updated_by)
		VALUES(?, ?, ?, '', ?, ?, ?, ?)`,
		uuid.NewString(), title, slug, now, p.Actor, now, p.Actor)
	if err != nil {
		return nil, err
	}
	pageID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	canonical := int64(0)
	for i, tag := range tags {
		res, err := tx.ExecContext(ctx, "INSERT INTO page_locations(page_id, tag, slug) VALUES(?, ?, ?)", pageID, tag, slug)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, &DuplicateSlugError{Tag: tag, Slug: slug}
			}
			return nil, err
		}
		if i == 0 {
			if canonical, err = res.LastInsertId(); err != nil {
				return nil, err
			}
		}
	}

	storage, targets, err := storageForm(ctx, tx, p.Content)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE pages SET content=? WHERE id=?", storage, pageID); err != nil {
		return nil, err
	}
	if err := replaceRefs(ctx, tx, wikilink.KindPage, canonical, targets); err != nil {
		return nil, err
	}
	if err := s.appendHistory(ctx, tx, pageID, title, slug, storage, now, p.Actor); err != nil {
		return nil, err
	}
	if err := s.commitTx(tx, "create page", start); err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateSlugError{Slug: slug}
		}
		return nil, err
	}
	return s.GetPage(ctx, pageID)
}

// UpdatePage replaces a page's title, slug, content and tag set. Kept
// locations keep their ids so inbound links survive; the denormalized slug
// on every location changes in the same transaction as the page's slug.
func (s *Store) UpdatePage(ctx context.Context, id int64, p SavePageParams) (*Page, error) {
	title, slug, tags, err := normalizeSave(p)
	if err != nil {
		return nil, err
	}

	tx, start, err := s.beginTx(ctx, "update page")
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx, "update page", start)

	var oldSlug string
	err = tx.QueryRowContext(ctx, "SELECT slug FROM pages WHERE id=?", id).Scan(&oldSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if slug != oldSlug {
		// Does any other page already occupy (tag, new slug) for a tag this
		// page will hold? Checked up front for a friendly error; the unique
		// constraint still decides races at commit.
		for _, tag := range tags {
			var other int64
			err := tx.QueryRowContext(ctx,
				"SELECT page_id FROM page_locations WHERE tag=? AND slug=? AND page_id != ?", tag, slug, id).Scan(&other)
			if err == nil {
				return nil, &DuplicateSlugError{Tag: tag, Slug: slug}
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		}
	}

	locations, err := locationsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[tag] = true
	}
	existing := make(map[string]bool, len(locations))
	allIDs := make([]int64, 0, len(locations))
	var removedIDs []int64
	for _, loc := range locations {
		existing[loc.Tag] = true
		allIDs = append(allIDs, loc.ID)
		if !wanted[loc.Tag] {
			removedIDs = append(removedIDs, loc.ID)
		}
	}
	if len(removedIDs) > 0 {
		// Dropping a tag removes a navigation address other records may
		// link at; refuse like the delete paths do rather than leave
		// dangling edges. The page's own links never block.
		blockers, err := blockingSources(ctx, tx, removedIDs, allIDs)
		if err != nil {
			return nil, err
		}
		if len(blockers) > 0 {
			return nil, &ReferencedError{BlockedBy: blockers}
		}
		for _, locID := range removedIDs {
			if _, err := tx.ExecContext(ctx, "DELETE FROM page_locations WHERE id=?", locID); err != nil {
				return nil, err
			}
		}
	}
	for _, tag := range tags {
		if existing[tag] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO page_locations(page_id, tag, slug) VALUES(?, ?, ?)", id, tag, slug); err != nil {
			if isUniqueViolation(err) {
				return nil, &DuplicateSlugError{Tag: tag, Slug: slug}
			}
			return nil, err
		}
	}
	if slug != oldSlug {
		if _, err := tx.ExecContext(ctx, "UPDATE page_locations SET slug=? WHERE page_id=?", slug, id); err != nil {
			if isUniqueViolation(err) {
				return nil, &DuplicateSlugError{Slug: slug}
			}
			return nil, err
		}
	}

	// Outgoing references of removed locations die with them.
	for _, locID := range removedIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_refs WHERE src_kind=? AND src_id=?", string(wikilink.KindPage), locID); err != nil {
			return nil, err
		}
	}

	storage, err := resyncPageContent(ctx, tx, id, p.Content)
	if err != nil {
		return nil, err
	}

	now := nowUnix()
	if _, err := tx.ExecContext(ctx,
		"UPDATE pages SET title=?, slug=?, content=?, updated_at=?, updated_by=? WHERE id=?",
		title, slug, storage, now, p.Actor, id); err != nil {
		return nil, err
	}
	if err := s.appendHistory(ctx, tx, id, title, slug, storage, now, p.Actor); err != nil {
		return nil, err
	}
	if err := s.commitTx(tx, "update page", start); err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateSlugError{Slug: slug}
		}
		return nil, err
	}
	return s.GetPage(ctx, id)
}

// DeletePage refuses when another record links at any of this page's
// locations, reporting the blockers as data. On success it cascades the
// page's locations, outgoing references, and history.
func (s *Store) DeletePage(ctx context.Context, id int64) (*DeletePageResult, error) {
	tx, start, err := s.beginTx(ctx, "delete page")
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx, "delete page", start)

	var exists int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM pages WHERE id=?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	locations, err := locationsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	locIDs := make([]int64, 0, len(locations))
	for _, loc := range locations {
		locIDs = append(locIDs, loc.ID)
	}

	blockers, err := blockingSources(ctx, tx, locIDs, locIDs)
	if err != nil {
		return nil, err
	}
	if len(blockers) > 0 {
		return &DeletePageResult{Blocked: true, BlockedBy: blockers}, nil
	}

	for _, locID := range locIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_refs WHERE src_kind=? AND src_id=?", string(wikilink.KindPage), locID); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM page_locations WHERE page_id=?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM page_history WHERE page_id=?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE id=?", id); err != nil {
		return nil, err
	}
	if err := s.commitTx(tx, "delete page", start); err != nil {
		return nil, err
	}
	return &DeletePageResult{}, nil
}

func (s *Store) GetPage(ctx context.Context, id int64) (*Page, error) {
	return scanPage(s.queryRowContext(ctx, `
		SELECT id, uid, title, slug, content, created_at, created_by, updated_at, updated_by
		FROM pages WHERE id=?`, id))
}

// GetPageByPath resolves a full navigation path ("tag/path/slug" or just
// "slug") to the page and the specific location it was addressed at.
func (s *Store) GetPageByPath(ctx context.Context, path string) (*Page, *Location, error) {
	normalized, err := tagpath.Normalize(path)
	if err != nil {
		return nil, nil, err
	}
	tag, slug := tagpath.Split(normalized)
	loc := &Location{Tag: tag, Slug: slug}
	err = s.queryRowContext(ctx,
		"SELECT id, page_id, sort_order FROM page_locations WHERE tag=? AND slug=?", tag, slug).
		Scan(&loc.ID, &loc.PageID, &loc.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	page, err := s.GetPage(ctx, loc.PageID)
	if err != nil {
		return nil, nil, err
	}
	return page, loc, nil
}

func (s *Store) PageLocations(ctx context.Context, pageID int64) ([]Location, error) {
	rows, err := s.queryContext(ctx,
		"SELECT id, page_id, tag, slug, sort_order FROM page_locations WHERE page_id=? ORDER BY id", pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocations(rows)
}

func (s *Store) PageHistory(ctx context.Context, pageID int64) ([]HistoryEntry, error) {
	rows, err := s.queryContext(ctx, `
		SELECT id, page_id, title, slug, content, edited_at, edited_by
		FROM page_history WHERE page_id=? ORDER BY id DESC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var editedAt int64
		if err := rows.Scan(&h.ID, &h.PageID, &h.Title, &h.Slug, &h.Content, &editedAt, &h.EditedBy); err != nil {
			return nil, err
		}
		h.EditedAt = time.Unix(editedAt, 0).UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// SetLocationOrder sets or clears a page's explicit sort position within one
// of its tags. Nil means "alphabetical after ordered siblings".
func (s *Store) SetLocationOrder(ctx context.Context, locationID int64, order *int64) error {
	res, err := s.execContext(ctx, "UPDATE page_locations SET sort_order=? WHERE id=?", order, locationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeSave(p SavePageParams) (title, slug string, tags []string, err error) {
	title = strings.TrimSpace(p.Title)
	if title == "" {
		return "", "", nil, &tagpath.ValidationError{Input: p.Title, Reason: "title is required"}
	}
	src := p.Slug
	if strings.TrimSpace(src) == "" {
		src = title
	}
	slug, err = tagpath.NormalizeSlug(src)
	if err != nil {
		return "", "", nil, err
	}
	tags, err = normalizeTags(p.Tags)
	if err != nil {
		return "", "", nil, err
	}
	return title, slug, tags, nil
}

// normalizeTags canonicalizes and deduplicates; no tags means untagged.
func normalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		tag, err := tagpath.Normalize(r)
		if err != nil {
			return nil, err
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out, nil
}

func locationsTx(ctx context.Context, q querier, pageID int64) ([]Location, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, page_id, tag, slug, sort_order FROM page_locations WHERE page_id=? ORDER BY id", pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLocations(rows)
}

func scanLocations(rows *sql.Rows) ([]Location, error) {
	var out []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.PageID, &loc.Tag, &loc.Slug, &loc.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func scanPage(row *sql.Row) (*Page, error) {
	var p Page
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.UID, &p.Title, &p.Slug, &p.Content, &createdAt, &p.CreatedBy, &updatedAt, &p.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func (s *Store) appendHistory(ctx context.Context, q querier, pageID int64, title, slug, content string, at int64, actor string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO page_history(page_id, title, slug, content, edited_at, edited_by)
		VALUES(?, ?, ?, ?, ?, ?)`, pageID, title, slug, content, at, actor)
	if err != nil {
		return err
	}
	if s.historyMax > 0 {
		_, err = q.ExecContext(ctx, `
			DELETE FROM page_history WHERE page_id=? AND id NOT IN (
				SELECT id FROM page_history WHERE page_id=? ORDER BY id DESC LIMIT ?
			)`, pageID, pageID, s.historyMax)
	}
	return err
}

// resyncPageContent converts content to storage form and rewrites the
// page's outgoing references under its canonical (lowest-id) location.
// Storage-form content passes through ToStorage unchanged, so this also
// serves re-syncs after location reshuffles.
func resyncPageContent(ctx context.Context, q querier, pageID int64, content string) (string, error) {
	storage, targets, err := storageForm(ctx, q, content)
	if err != nil {
		return "", err
	}
	var canonical int64
	err = q.QueryRowContext(ctx, "SELECT MIN(id) FROM page_locations WHERE page_id=?", pageID).Scan(&canonical)
	if err != nil {
		return "", err
	}
	if err := replaceRefs(ctx, q, wikilink.KindPage, canonical, targets); err != nil {
		return "", err
	}
	return storage, nil
}

// blockingSources returns the records whose references point at any of the
// given locations, excluding page sources in excludeSrc. The delete paths
// pass the same set twice; tag removal on save additionally excludes the
// page's kept locations so its own links never block.
func blockingSources(ctx context.Context, q querier, locIDs, excludeSrc []int64) ([]SourceRef, error) {
	if len(locIDs) == 0 {
		return nil, nil
	}
	inSet := make(map[int64]bool, len(excludeSrc))
	for _, id := range excludeSrc {
		inSet[id] = true
	}
	args := make([]any, 0, len(locIDs))
	for _, id := range locIDs {
		args = append(args, id)
	}
	query := `SELECT DISTINCT src_kind, src_id FROM record_refs
		WHERE dst_kind='page' AND dst_id IN (` + placeholders(len(locIDs)) + `)
		ORDER BY src_kind, src_id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceRef
	for rows.Next() {
		var kind string
		var id int64
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, err
		}
		if wikilink.Kind(kind) == wikilink.KindPage && inSet[id] {
			continue
		}
		out = append(out, SourceRef{Kind: wikilink.Kind(kind), ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		label, err := recordLabel(ctx, q, out[i].Kind, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Label = label
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimRight(strings.Repeat("?,", n), ",")
}
