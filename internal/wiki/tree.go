package wiki

import (
	"context"
	"sort"
	"strings"

	"curator/internal/tagpath"
)

// TreePage is one page entry inside a navigation node.
type TreePage struct {
	LocationID int64
	PageID     int64
	Title      string
	Slug       string
	Path       string // full navigation address
	SortOrder  *int64
}

// TreeNode is one tag in the sidebar tree. Nodes exist for every tag that
// has pages and for every synthetic intermediate prefix above one.
type TreeNode struct {
	Name      string // last path segment, "" on the root
	Path      string // full tag path, "" on the root
	SortOrder *int64
	Pages     []TreePage
	Children  []*TreeNode
}

// NavigationTree assembles the full sidebar tree from the flat location and
// order-hint tables: exactly two bulk fetches, then pure in-memory assembly.
// Untagged pages ride along on the root via the "" sentinel with no special
// casing.
func (s *Store) NavigationTree(ctx context.Context) (*TreeNode, error) {
	rows, err := s.queryContext(ctx, `
		SELECT l.id, l.page_id, l.tag, l.slug, l.sort_order, p.title
		FROM page_locations l
		JOIN pages p ON p.id = l.page_id`)
	if err != nil {
		return nil, err
	}
	pagesByTag := make(map[string][]TreePage)
	for rows.Next() {
		var page TreePage
		var tag string
		if err := rows.Scan(&page.LocationID, &page.PageID, &tag, &page.Slug, &page.SortOrder, &page.Title); err != nil {
			rows.Close()
			return nil, err
		}
		page.Path = tagpath.Join(tag, page.Slug)
		pagesByTag[tag] = append(pagesByTag[tag], page)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	orderRows, err := s.queryContext(ctx, "SELECT tag, sort_order FROM tag_orders")
	if err != nil {
		return nil, err
	}
	orders := make(map[string]int64)
	for orderRows.Next() {
		var tag string
		var order int64
		if err := orderRows.Scan(&tag, &order); err != nil {
			orderRows.Close()
			return nil, err
		}
		orders[tag] = order
	}
	if err := orderRows.Err(); err != nil {
		orderRows.Close()
		return nil, err
	}
	orderRows.Close()

	return buildTree(pagesByTag, orders), nil
}

func buildTree(pagesByTag map[string][]TreePage, orders map[string]int64) *TreeNode {
	root := &TreeNode{}
	nodes := map[string]*TreeNode{"": root}

	// node materializes the chain of ancestors for a tag path, inserting
	// synthetic intermediates for prefixes that hold no pages of their own.
	var node func(tag string) *TreeNode
	node = func(tag string) *TreeNode {
		if n, ok := nodes[tag]; ok {
			return n
		}
		parentPath := ""
		name := tag
		if i := strings.LastIndexByte(tag, '/'); i >= 0 {
			parentPath, name = tag[:i], tag[i+1:]
		}
		n := &TreeNode{Name: name, Path: tag}
		if order, ok := orders[tag]; ok {
			o := order
			n.SortOrder = &o
		}
		nodes[tag] = n
		parent := node(parentPath)
		parent.Children = append(parent.Children, n)
		return n
	}

	for tag, pages := range pagesByTag {
		n := node(tag)
		n.Pages = append(n.Pages, pages...)
	}

	for _, n := range nodes {
		sortPages(n.Pages)
		sortChildren(n.Children)
	}
	return root
}

// sortChildren: explicitly ordered tags first by their hint, everything
// else alphabetically after them.
func sortChildren(children []*TreeNode) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		switch {
		case a.SortOrder != nil && b.SortOrder != nil:
			if *a.SortOrder != *b.SortOrder {
				return *a.SortOrder < *b.SortOrder
			}
			return a.Name < b.Name
		case a.SortOrder != nil:
			return true
		case b.SortOrder != nil:
			return false
		default:
			return a.Name < b.Name
		}
	})
}

// sortPages: explicit order hint first (nulls last), then title.
func sortPages(pages []TreePage) {
	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		switch {
		case a.SortOrder != nil && b.SortOrder != nil:
			if *a.SortOrder != *b.SortOrder {
				return *a.SortOrder < *b.SortOrder
			}
			return a.Title < b.Title
		case a.SortOrder != nil:
			return true
		case b.SortOrder != nil:
			return false
		default:
			return a.Title < b.Title
		}
	})
}
