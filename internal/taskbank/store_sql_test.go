package taskbank_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mind-engage/reshuffle/internal/db"
	"github.com/mind-engage/reshuffle/internal/taskbank"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "bank.db") + "?_pragma=foreign_keys(1)"
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLStore(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	exec := func(q string, args ...any) {
		t.Helper()
		if _, err := h.ExecContext(ctx, q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
	exec(`INSERT INTO subjects (id,title,inst_content,is_active) VALUES (1,'Math','Use a pen',1)`)
	exec(`INSERT INTO parts (id,subject_id,title,answer_type,task_count,total_difficulty) VALUES (11,1,'B','written',3,3)`)
	exec(`INSERT INTO parts (id,subject_id,title,answer_type,task_count,total_difficulty) VALUES (10,1,'A','choice',2,2)`)
	exec(`INSERT INTO tasks (id,part_id,position,difficulty,content,is_active) VALUES (100,10,1,1,'1+1',1)`)
	exec(`INSERT INTO tasks (id,part_id,position,difficulty,content,is_active) VALUES (101,10,1,2,'2+2',0)`)
	exec(`INSERT INTO options (id,task_id,content,is_answer) VALUES (1000,100,'2',1)`)
	exec(`INSERT INTO options (id,task_id,content,is_answer) VALUES (1001,100,'3',0)`)
	exec(`INSERT INTO doc_headers (content,is_active,updated_at) VALUES ('School #1',0,10)`)
	exec(`INSERT INTO doc_headers (content,is_active,updated_at) VALUES ('School #2',1,5)`)

	store := taskbank.NewSQLStore(h)

	s, err := store.GetSubject(ctx, 1)
	if err != nil || s.Title != "Math" || !s.IsActive || s.InstContent != "Use a pen" {
		t.Fatalf("subject=%+v err=%v", s, err)
	}
	if _, err := store.GetSubject(ctx, 99); err != taskbank.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	parts, err := store.ListParts(ctx, 1)
	if err != nil || len(parts) != 2 || parts[0].Title != "A" || parts[1].AnswerType != taskbank.AnswerWritten {
		t.Fatalf("parts=%+v err=%v", parts, err)
	}

	active, _ := store.ListTasks(ctx, 10, 1, true)
	all, _ := store.ListTasks(ctx, 10, 1, false)
	if len(active) != 1 || len(all) != 2 {
		t.Fatalf("active=%d all=%d", len(active), len(all))
	}

	opts, err := store.ListOptions(ctx, 100)
	if err != nil || len(opts) != 2 || !opts[0].IsAnswer || opts[1].IsAnswer {
		t.Fatalf("options=%+v err=%v", opts, err)
	}

	h1, _ := store.ActiveDocHeader(ctx)
	if h1 != "School #2" {
		t.Fatalf("header=%q", h1)
	}
}
