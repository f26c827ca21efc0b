// retag is the operator CLI for structural tag edits: rename a tag subtree
// or delete one, with the same blocked/affected reporting the admin UI gets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"curator/internal/config"
	"curator/internal/wiki"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.DataPath == "" {
		fmt.Fprintln(os.Stderr, "CURATOR_DATA_PATH is required")
		os.Exit(1)
	}
	store, err := wiki.OpenWithOptions(filepath.Join(cfg.DataPath, "curator.sqlite"), wiki.OpenOptions{
		LockTimeout: cfg.LockTimeout,
		HistoryMax:  cfg.HistoryMax,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "init store:", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "rename":
		if len(os.Args) != 4 {
			usage()
			os.Exit(2)
		}
		if err := store.RenameTag(ctx, os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintln(os.Stderr, "rename:", err)
			os.Exit(1)
		}
		fmt.Printf("renamed %q -> %q\n", os.Args[2], os.Args[3])
	case "delete":
		if len(os.Args) != 3 {
			usage()
			os.Exit(2)
		}
		result, err := store.DeleteTag(ctx, os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "delete:", err)
			os.Exit(1)
		}
		if result.Blocked {
			if len(result.BlockedBy) > 0 {
				fmt.Println("blocked: records still link into this tag:")
				for _, ref := range result.BlockedBy {
					fmt.Printf("  %s #%d  %s\n", ref.Kind, ref.ID, ref.Label)
				}
			}
			if len(result.SlugConflicts) > 0 {
				fmt.Println("blocked: untagged pages already use these slugs:")
				for _, p := range result.SlugConflicts {
					fmt.Printf("  %q (slug %s)\n", p.Title, p.Slug)
				}
			}
			os.Exit(1)
		}
		fmt.Printf("deleted %q\n", os.Args[2])
		for _, page := range result.Untagged {
			fmt.Printf("  page %q is now untagged\n", page.Title)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: retag rename OLD NEW | retag delete TAG")
}
