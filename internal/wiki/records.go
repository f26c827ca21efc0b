package wiki

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"curator/internal/tagpath"
	"curator/internal/wikilink"
)

// The catalog and maintenance records around the wiki: machines and models
// are link targets only; problem reports, log entries, part requests and
// part-request updates carry markdown and run through the same storage-form
// conversion and reference resync as pages.

type MachineModel struct {
	ID   int64
	Name string
	Slug string
}

type Machine struct {
	ID      int64
	ModelID *int64
	Name    string
	Slug    string
}

type Record struct {
	ID        int64
	Kind      wikilink.Kind
	MachineID *int64
	ParentID  *int64 // part-request updates point at their request
	Title     string
	Content   string // storage form
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
}

func (s *Store) CreateMachineModel(ctx context.Context, name string) (*MachineModel, error) {
	name = strings.TrimSpace(name)
	slug, err := tagpath.NormalizeSlug(name)
	if err != nil {
		return nil, err
	}
	res, err := s.execContext(ctx, "INSERT INTO machine_models(name, slug) VALUES(?, ?)", name, slug)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateSlugError{Slug: slug}
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &MachineModel{ID: id, Name: name, Slug: slug}, nil
}

func (s *Store) CreateMachine(ctx context.Context, name string, modelID *int64) (*Machine, error) {
	name = strings.TrimSpace(name)
	slug, err := tagpath.NormalizeSlug(name)
	if err != nil {
		return nil, err
	}
	res, err := s.execContext(ctx, "INSERT INTO machines(model_id, name, slug) VALUES(?, ?, ?)", modelID, name, slug)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateSlugError{Slug: slug}
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Machine{ID: id, ModelID: modelID, Name: name, Slug: slug}, nil
}

func (s *Store) GetMachineBySlug(ctx context.Context, slug string) (*Machine, error) {
	var m Machine
	err := s.queryRowContext(ctx, "SELECT id, model_id, name, slug FROM machines WHERE slug=?", slug).
		Scan(&m.ID, &m.ModelID, &m.Name, &m.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateProblemReport files a visitor problem report. Links in the content
// are converted and indexed in the same transaction.
func (s *Store) CreateProblemReport(ctx context.Context, machineID *int64, title, content, actor string) (*Record, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &tagpath.ValidationError{Input: title, Reason: "title is required"}
	}
	return s.createRecord(ctx, wikilink.KindProblem, func(tx *sql.Tx, storage string, now int64) (sql.Result, error) {
		return tx.ExecContext(ctx, `
			INSERT INTO problem_reports(machine_id, title, content, created_at, created_by, updated_at)
			VALUES(?, ?, ?, ?, ?, ?)`, machineID, title, storage, now, actor, now)
	}, content)
}

func (s *Store) CreateLogEntry(ctx context.Context, machineID *int64, content, actor string) (*Record, error) {
	return s.createRecord(ctx, wikilink.KindLog, func(tx *sql.Tx, storage string, now int64) (sql.Result, error) {
		return tx.ExecContext(ctx, `
			INSERT INTO log_entries(machine_id, content, created_at, created_by, updated_at)
			VALUES(?, ?, ?, ?, ?)`, machineID, storage, now, actor, now)
	}, content)
}

func (s *Store) CreatePartRequest(ctx context.Context, machineID *int64, content, actor string) (*Record, error) {
	return s.createRecord(ctx, wikilink.KindPart, func(tx *sql.Tx, storage string, now int64) (sql.Result, error) {
		return tx.ExecContext(ctx, `
			INSERT INTO part_requests(machine_id, content, created_at, created_by, updated_at)
			VALUES(?, ?, ?, ?, ?)`, machineID, storage, now, actor, now)
	}, content)
}

func (s *Store) CreatePartRequestUpdate(ctx context.Context, partRequestID int64, content, actor string) (*Record, error) {
	return s.createRecord(ctx, wikilink.KindPartUpdate, func(tx *sql.Tx, storage string, now int64) (sql.Result, error) {
		return tx.ExecContext(ctx, `
			INSERT INTO part_request_updates(part_request_id, content, created_at, created_by, updated_at)
			VALUES(?, ?, ?, ?, ?)`, partRequestID, storage, now, actor, now)
	}, content)
}

func (s *Store) createRecord(ctx context.Context, kind wikilink.Kind, insert func(tx *sql.Tx, storage string, now int64) (sql.Result, error), content string) (*Record, error) {
	tx, start, err := s.beginTx(ctx, "create "+string(kind))
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx, "create "+string(kind), start)

	storage, targets, err := storageForm(ctx, tx, content)
	if err != nil {
		return nil, err
	}
	now := nowUnix()
	res, err := insert(tx, storage, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := replaceRefs(ctx, tx, kind, id, targets); err != nil {
		return nil, err
	}
	if err := s.commitTx(tx, "create "+string(kind), start); err != nil {
		return nil, err
	}
	return s.GetRecord(ctx, kind, id)
}

// UpdateRecordContent saves new markdown for a maintenance record and
// recomputes its outgoing references in the same transaction.
func (s *Store) UpdateRecordContent(ctx context.Context, kind wikilink.Kind, id int64, content string) (*Record, error) {
	if !kind.CanSource() || kind == wikilink.KindPage {
		return nil, &tagpath.ValidationError{Input: string(kind), Reason: "record kind does not carry editable content"}
	}
	table, _ := tableForKind(kind)

	tx, start, err := s.beginTx(ctx, "update "+string(kind))
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx, "update "+string(kind), start)

	var exists int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE id=?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	storage, targets, err := storageForm(ctx, tx, content)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET content=?, updated_at=? WHERE id=?", storage, nowUnix(), id); err != nil {
		return nil, err
	}
	if err := replaceRefs(ctx, tx, kind, id, targets); err != nil {
		return nil, err
	}
	if err := s.commitTx(tx, "update "+string(kind), start); err != nil {
		return nil, err
	}
	return s.GetRecord(ctx, kind, id)
}

func (s *Store) GetRecord(ctx context.Context, kind wikilink.Kind, id int64) (*Record, error) {
	rec := &Record{ID: id, Kind: kind}
	var createdAt, updatedAt int64
	var err error
	switch kind {
	case wikilink.KindProblem:
		err = s.queryRowContext(ctx,
			"SELECT machine_id, title, content, created_at, created_by, updated_at FROM problem_reports WHERE id=?", id).
			Scan(&rec.MachineID, &rec.Title, &rec.Content, &createdAt, &rec.CreatedBy, &updatedAt)
	case wikilink.KindLog:
		err = s.queryRowContext(ctx,
			"SELECT machine_id, content, created_at, created_by, updated_at FROM log_entries WHERE id=?", id).
			Scan(&rec.MachineID, &rec.Content, &createdAt, &rec.CreatedBy, &updatedAt)
	case wikilink.KindPart:
		err = s.queryRowContext(ctx,
			"SELECT machine_id, content, created_at, created_by, updated_at FROM part_requests WHERE id=?", id).
			Scan(&rec.MachineID, &rec.Content, &createdAt, &rec.CreatedBy, &updatedAt)
	case wikilink.KindPartUpdate:
		err = s.queryRowContext(ctx,
			"SELECT part_request_id, content, created_at, created_by, updated_at FROM part_request_updates WHERE id=?", id).
			Scan(&rec.ParentID, &rec.Content, &createdAt, &rec.CreatedBy, &updatedAt)
	default:
		return nil, ErrNotFound
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}
