package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mind-engage/reshuffle/internal/variant"
)

func TestParseOverlay(t *testing.T) {
	ov, err := parseOverlay("a3=1, B12=false,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ov) != 2 || !ov["A3"] || ov["B12"] {
		t.Fatalf("overlay=%v", ov)
	}
	for _, bad := range []string{"A3", "A3=maybe", "3=1"} {
		if _, err := parseOverlay(bad); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
}

const bankJSON = `{
  "subjects": [{"id": 1, "title": "Biology", "is_active": true}],
  "parts": [{"id": 10, "subject_id": 1, "title": "A", "answer_type": "choice", "task_count": 2}],
  "tasks": [
    {"id": 100, "part_id": 10, "position": 1, "difficulty": 0, "content": "Cells?", "is_active": true},
    {"id": 101, "part_id": 10, "position": 2, "difficulty": 1, "content": "DNA?", "is_active": true}
  ],
  "options": [
    {"id": 1000, "task_id": 100, "content": "yes", "is_answer": true},
    {"id": 1001, "task_id": 100, "content": "no"},
    {"id": 1002, "task_id": 100, "content": "maybe"},
    {"id": 1003, "task_id": 100, "content": "never"},
    {"id": 1004, "task_id": 101, "content": "helix", "is_answer": true},
    {"id": 1005, "task_id": 101, "content": "square"},
    {"id": 1006, "task_id": 101, "content": "line"},
    {"id": 1007, "task_id": 101, "content": "ring"}
  ],
  "doc_headers": [{"id": 1, "content": "School #1", "is_active": true, "updated_at": 1}]
}`

func TestGenerateWritesArchive(t *testing.T) {
	dir := t.TempDir()
	bank := filepath.Join(dir, "bank.json")
	if err := os.WriteFile(bank, []byte(bankJSON), 0o644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	out := filepath.Join(dir, "out")
	args := []string{"-bank", bank, "-subject", "1", "-date", "01.06.2026", "-amount", "3", "-out", out, "-seed", "7"}
	if err := generate(context.Background(), args); err != nil {
		t.Fatalf("generate: %v", err)
	}

	zips, _ := filepath.Glob(filepath.Join(out, "archives", "*.zip"))
	if len(zips) != 1 {
		t.Fatalf("zips=%v", zips)
	}
	data := filepath.Join(strings.TrimSuffix(zips[0], ".zip"), "data.json")
	f, err := os.Open(data)
	if err != nil {
		t.Fatalf("open data.json: %v", err)
	}
	defer f.Close()
	doc, err := variant.ParseDocument(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Variants) != 3 || doc.Subject.Title != "Biology" || doc.DocHeader != "School #1" {
		t.Fatalf("doc=%+v", doc)
	}
}

func TestGenerateRequiresBankAndSubject(t *testing.T) {
	if err := generate(context.Background(), []string{"-subject", "1"}); err == nil {
		t.Fatalf("missing -bank accepted")
	}
	out := t.TempDir()
	bank := filepath.Join(out, "bank.json")
	_ = os.WriteFile(bank, []byte(bankJSON), 0o644)
	if err := generate(context.Background(), []string{"-bank", bank, "-subject", "9", "-out", out}); err == nil {
		t.Fatalf("unknown subject accepted")
	}
	if zips, _ := filepath.Glob(filepath.Join(out, "archives", "*.zip")); len(zips) != 0 {
		t.Fatalf("archive left behind: %v", zips)
	}
}
