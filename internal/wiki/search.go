package wiki

import (
	"context"
	"strings"

	"curator/internal/wikilink"
)

// PathMatch is one autocomplete candidate for [[-triggered link insertion.
type PathMatch struct {
	Kind  wikilink.Kind
	Ref   string // full path for pages, slug for machines and models
	Label string
}

// SearchPaths returns candidates whose computed full path (or slug) contains
// the query, for the editor's link autocomplete. Plain substring match over
// derived paths; matching is case-insensitive because paths are already
// lower-case.
func (s *Store) SearchPaths(ctx context.Context, query string, limit int) ([]PathMatch, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil, nil
	}
	pattern := "%" + escapeLike(query) + "%"

	var out []PathMatch
	rows, err := s.queryContext(ctx, `
		SELECT CASE WHEN l.tag = '' THEN l.slug ELSE l.tag || '/' || l.slug END, p.title
		FROM page_locations l
		JOIN pages p ON p.id = l.page_id
		WHERE (CASE WHEN l.tag = '' THEN l.slug ELSE l.tag || '/' || l.slug END) LIKE ? ESCAPE '\'
		ORDER BY 1 LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var m PathMatch
		m.Kind = wikilink.KindPage
		if err := rows.Scan(&m.Ref, &m.Label); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, probe := range []struct {
		kind  wikilink.Kind
		query string
	}{
		{wikilink.KindMachine, `SELECT slug, name FROM machines WHERE slug LIKE ? ESCAPE '\' ORDER BY slug LIMIT ?`},
		{wikilink.KindModel, `SELECT slug, name FROM machine_models WHERE slug LIKE ? ESCAPE '\' ORDER BY slug LIMIT ?`},
	} {
		remaining := limit - len(out)
		if remaining <= 0 {
			break
		}
		rows, err := s.queryContext(ctx, probe.query, pattern, remaining)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			m := PathMatch{Kind: probe.kind}
			if err := rows.Scan(&m.Ref, &m.Label); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, m)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
