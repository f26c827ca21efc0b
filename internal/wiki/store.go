// Package wiki is the maintenance wiki's data core: pages addressed by
// hierarchical tag paths, the cross-record link reference index, the machine
// catalog and maintenance records, and the navigation tree.
package wiki

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
	historyMax  int
	fetches     int64 // data-fetch counter, observed by tests
}

type OpenOptions struct {
	// LockTimeout bounds busy-retry loops on a locked database. Zero
	// disables retries.
	LockTimeout time.Duration
	// HistoryMax caps the per-page history snapshots kept; the oldest rows
	// are pruned past the cap. Zero keeps everything.
	HistoryMax int
}

func Open(path string) (*Store, error) {
	return OpenWithOptions(path, OpenOptions{LockTimeout: 5 * time.Second})
}

func OpenWithOptions(path string, opts OpenOptions) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, lockTimeout: opts.LockTimeout, historyMax: opts.HistoryMax}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init applies the schema and stamps the schema version.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	version, err := s.currentSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version != schemaVersion {
		return s.setSchemaVersion(ctx, schemaVersion)
	}
	return nil
}

func (s *Store) currentSchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, v int) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES(?)", v)
	return err
}

func nowUnix() int64 {
	return time.Now().Unix()
}
