package taskbank

import (
	"context"
	"database/sql"
	"errors"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) GetSubject(ctx context.Context, id int64) (Subject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,case_genitive,case_dative,case_accusative,case_instrumental,
		case_prepositional,inst_title,inst_content,is_active FROM subjects WHERE id=$1`, id)
	var sb Subject
	err := row.Scan(&sb.ID, &sb.Title, &sb.CaseGenitive, &sb.CaseDative, &sb.CaseAccusative,
		&sb.CaseInstrumental, &sb.CasePrepositional, &sb.InstTitle, &sb.InstContent, &sb.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, ErrNotFound
	}
	return sb, err
}

func (s *SQLStore) GetPart(ctx context.Context, id int64) (Part, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,subject_id,title,answer_type,task_count,total_difficulty,inst_content
		FROM parts WHERE id=$1`, id)
	p, err := scanPart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Part{}, ErrNotFound
	}
	return p, err
}

func (s *SQLStore) ListParts(ctx context.Context, subjectID int64) ([]Part, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,subject_id,title,answer_type,task_count,total_difficulty,inst_content
		FROM parts WHERE subject_id=$1 ORDER BY title, id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Part{}
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPart(r scanner) (Part, error) {
	var p Part
	var at string
	if err := r.Scan(&p.ID, &p.SubjectID, &p.Title, &at, &p.TaskCount, &p.TotalDifficulty, &p.InstContent); err != nil {
		return Part{}, err
	}
	p.AnswerType = AnswerType(at)
	return p, nil
}

func (s *SQLStore) ListTasks(ctx context.Context, partID int64, position int, activeOnly bool) ([]Task, error) {
	q := `SELECT id,part_id,position,difficulty,content,is_active FROM tasks WHERE part_id=$1 AND position=$2`
	args := []any{partID, position}
	if activeOnly {
		q += ` AND is_active=$3`
		args = append(args, true)
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.PartID, &t.Position, &t.Difficulty, &t.Content, &t.IsActive); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListOptions(ctx context.Context, taskID int64) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,task_id,content,is_answer FROM options WHERE task_id=$1 ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Option{}
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.TaskID, &o.Content, &o.IsAnswer); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLStore) ActiveDocHeader(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,content,is_active,updated_at FROM doc_headers ORDER BY updated_at DESC`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var hs []DocHeader
	for rows.Next() {
		var h DocHeader
		if err := rows.Scan(&h.ID, &h.Content, &h.IsActive, &h.UpdatedAt); err != nil {
			return "", err
		}
		hs = append(hs, h)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return pickHeader(hs), nil
}
