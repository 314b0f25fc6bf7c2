// Package archive records generated batches and the works scored against them.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("archive not found")

// Entry is one generated batch stored under Prefix.
type Entry struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	SubjectID    int64  `json:"subject_id"`
	SubjectTitle string `json:"subject_title"`
	Date         string `json:"date"`
	Prefix       string `json:"prefix"`
	Amount       int    `json:"amount"`
	CreatedAt    int64  `json:"created_at"`
}

// Work is the score record of one scanned sheet. At most one exists per (ArchiveID, UniqueKey).
type Work struct {
	ID         int64  `json:"id"`
	ArchiveID  string `json:"archive_id"`
	UniqueKey  string `json:"unique_key"`
	UserID     string `json:"user_id"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Fallback   bool   `json:"fallback"`
	ImageAlias string `json:"image_alias"`
	CreatedAt  int64  `json:"created_at"`
}

type Store interface {
	CreateArchive(ctx context.Context, e Entry) (Entry, error)
	GetArchive(ctx context.Context, id string) (Entry, error)
	ListArchives(ctx context.Context) ([]Entry, error)
	// ReplaceWork drops any earlier record for the same key and stores w.
	ReplaceWork(ctx context.Context, w Work) (Work, error)
	GetWork(ctx context.Context, archiveID, key string) (Work, error)
	ListWorks(ctx context.Context, archiveID string) ([]Work, error)
}

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) CreateArchive(ctx context.Context, e Entry) (Entry, error) {
	if e.CreatedAt == 0 {
		e.CreatedAt = s.now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO archives (id,user_id,subject_id,subject_title,exam_date,prefix,amount,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.UserID, e.SubjectID, e.SubjectTitle, e.Date, e.Prefix, e.Amount, e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

const archiveCols = `id,user_id,subject_id,subject_title,exam_date,prefix,amount,created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var e Entry
	err := r.Scan(&e.ID, &e.UserID, &e.SubjectID, &e.SubjectTitle, &e.Date, &e.Prefix, &e.Amount, &e.CreatedAt)
	return e, err
}

func (s *SQLStore) GetArchive(ctx context.Context, id string) (Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+archiveCols+` FROM archives WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (s *SQLStore) ListArchives(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+archiveCols+` FROM archives ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReplaceWork(ctx context.Context, w Work) (Work, error) {
	if w.CreatedAt == 0 {
		w.CreatedAt = s.now().Unix()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Work{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM verified_works WHERE archive_id=$1 AND unique_key=$2`,
		w.ArchiveID, w.UniqueKey); err != nil {
		return Work{}, err
	}
	err = tx.QueryRowContext(ctx, `INSERT INTO verified_works (archive_id,unique_key,user_id,score,total,fallback,image_alias,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		w.ArchiveID, w.UniqueKey, w.UserID, w.Score, w.Total, w.Fallback, w.ImageAlias, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		return Work{}, err
	}
	return w, tx.Commit()
}

const workCols = `id,archive_id,unique_key,user_id,score,total,fallback,image_alias,created_at`

func scanWork(r scanner) (Work, error) {
	var w Work
	err := r.Scan(&w.ID, &w.ArchiveID, &w.UniqueKey, &w.UserID, &w.Score, &w.Total, &w.Fallback, &w.ImageAlias, &w.CreatedAt)
	return w, err
}

func (s *SQLStore) GetWork(ctx context.Context, archiveID, key string) (Work, error) {
	w, err := scanWork(s.db.QueryRowContext(ctx, `SELECT `+workCols+` FROM verified_works
		WHERE archive_id=$1 AND unique_key=$2`, archiveID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return Work{}, ErrNotFound
	}
	return w, err
}

func (s *SQLStore) ListWorks(ctx context.Context, archiveID string) ([]Work, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workCols+` FROM verified_works
		WHERE archive_id=$1 ORDER BY unique_key`, archiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Work{}
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
