package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/reshuffle/internal/archive"
	api "github.com/mind-engage/reshuffle/internal/api/http"
	authmw "github.com/mind-engage/reshuffle/internal/auth/middleware"
	"github.com/mind-engage/reshuffle/internal/checking"
	"github.com/mind-engage/reshuffle/internal/db"
	"github.com/mind-engage/reshuffle/internal/docs"
	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/lock"
	"github.com/mind-engage/reshuffle/internal/rbac"
	"github.com/mind-engage/reshuffle/internal/scan"
	"github.com/mind-engage/reshuffle/internal/storage"
	syncx "github.com/mind-engage/reshuffle/internal/sync"
	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// firstKey recognizes every photo as the first variant of the batch, with no marks.
type firstKey struct{}

func (firstKey) Recognize(_ context.Context, _ image.Image, doc variant.Document) (scan.Recognition, error) {
	v := doc.Variants[0]
	ex := grading.NewExtraction(v.UniqueKey)
	return scan.Recognition{
		Key:        scan.KeyResult{Key: v.UniqueKey, Raw: v.UniqueKey, Recognized: true, Box: layout.KeyBox},
		Variant:    v,
		Frame:      image.NewGray(image.Rect(0, 0, layout.Width, layout.Height)),
		Extraction: ex,
	}, nil
}

type env struct {
	router   chi.Router
	auth     *authmw.AuthService
	subject  taskbank.Subject
	part     taskbank.Part
	archives *archive.SQLStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	bank := taskbank.NewMemoryBank()
	subj := bank.PutSubject(taskbank.Subject{Title: "History", IsActive: true})
	part := bank.PutPart(taskbank.Part{SubjectID: subj.ID, Title: "A", AnswerType: taskbank.AnswerChoice, TaskCount: 5})
	for pos := 1; pos <= 5; pos++ {
		task := bank.PutTask(taskbank.Task{PartID: part.ID, Position: pos, Difficulty: 1, Content: "When?", IsActive: true})
		for i := 0; i < 4; i++ {
			bank.PutOption(taskbank.Option{TaskID: task.ID, Content: "year", IsAnswer: i == 2})
		}
	}

	h, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "api.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	store, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	renderer, err := layout.NewRenderer("")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	archives := archive.NewSQLStore(h)
	events := syncx.NewEventRepo(h)
	a := authmw.NewAuthService("test-secret")

	r := chi.NewRouter()
	api.Mount(r, api.Deps{
		Auth:     a,
		Bank:     bank,
		Scale:    taskbank.DefaultScale,
		Packager: docs.NewPackager(bank, store, renderer, taskbank.DefaultScale, 10, nil),
		Archives: archives,
		Store:    store,
		Checking: checking.NewService(archives, store, firstKey{}, grading.NewScorer(), lock.NewLocal(), events, nil),
		Events:   events,
		URLTTL:   time.Minute,
	})
	return &env{router: r, auth: a, subject: subj, part: part, archives: archives}
}

func (e *env) do(t *testing.T, role, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if role != "" {
		tok, err := e.auth.IssueJWT(role+"-user", role)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(s string) *bytes.Buffer { return bytes.NewBufferString(s) }

func TestPermissions(t *testing.T) {
	e := newEnv(t)
	if rec := e.do(t, "", http.MethodGet, "/archives", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	body := jsonBody(`{"subject_id":1,"date":"01.06.2026","amount":2}`)
	if rec := e.do(t, rbac.RoleOperator, http.MethodPost, "/archives", body, "application/json"); rec.Code != http.StatusForbidden {
		t.Fatalf("operator create: %d", rec.Code)
	}
	if rec := e.do(t, "", http.MethodGet, "/healthz", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}

func TestValidationEndpoints(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, rbac.RoleOperator, http.MethodGet, "/validation/part?id_sbj="+itoa(e.subject.ID), nil, "")
	var pv taskbank.PartValidation
	if err := json.NewDecoder(rec.Body).Decode(&pv); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("code=%d err=%v", rec.Code, err)
	}
	if pv.Amount != 3 || len(pv.Titles.Reserved) != 1 || pv.Titles.Reserved[0] != "A" {
		t.Fatalf("part validation=%+v", pv)
	}
	rec = e.do(t, rbac.RoleOperator, http.MethodGet, "/validation/part?id_sbj="+itoa(e.subject.ID)+"&task_count=6", nil, "")
	pv = taskbank.PartValidation{}
	_ = json.NewDecoder(rec.Body).Decode(&pv)
	if pv.TotalDifficulty == nil || pv.TotalDifficulty.Min != 0 || pv.TotalDifficulty.Max != 12 {
		t.Fatalf("total difficulty=%+v", pv.TotalDifficulty)
	}
	rec = e.do(t, rbac.RoleOperator, http.MethodGet, "/validation/part?id_sbj="+itoa(e.subject.ID)+"&id_prt="+itoa(e.part.ID), nil, "")
	_ = json.NewDecoder(rec.Body).Decode(&pv)
	if pv.Amount != 4 || len(pv.Titles.Available) != 4 {
		t.Fatalf("editing part=%+v", pv)
	}

	rec = e.do(t, rbac.RoleOperator, http.MethodGet, "/validation/task?id_prt="+itoa(e.part.ID), nil, "")
	var tv taskbank.TaskValidation
	if err := json.NewDecoder(rec.Body).Decode(&tv); err != nil || tv.AmountMin != 1 || tv.AmountMax != 5 {
		t.Fatalf("task validation=%+v err=%v", tv, err)
	}
	rec = e.do(t, rbac.RoleOperator, http.MethodGet, "/validation/task", nil, "")
	tv = taskbank.TaskValidation{}
	if err := json.NewDecoder(rec.Body).Decode(&tv); err != nil || tv.AmountMax != 0 {
		t.Fatalf("no part=%+v err=%v", tv, err)
	}
}

func TestArchiveLifecycle(t *testing.T) {
	e := newEnv(t)

	bad := jsonBody(`{"subject_id":` + itoa(e.subject.ID) + `,"date":"2026-06-01","amount":2}`)
	if rec := e.do(t, rbac.RoleAdmin, http.MethodPost, "/archives", bad, "application/json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d %s", rec.Code, rec.Body)
	}

	rec := e.do(t, rbac.RoleAdmin, http.MethodPost, "/archives",
		jsonBody(`{"subject_id":`+itoa(e.subject.ID)+`,"date":"01.06.2026","amount":2}`), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var entry archive.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entry); err != nil || entry.Amount != 2 || entry.UserID != "admin-user" {
		t.Fatalf("entry=%+v err=%v", entry, err)
	}

	rec = e.do(t, rbac.RoleOperator, http.MethodGet, "/archives", nil, "")
	var list []archive.Entry
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list) != 1 {
		t.Fatalf("list=%+v err=%v", list, err)
	}

	rec = e.do(t, rbac.RoleOperator, http.MethodGet, "/archives/"+entry.ID+"/download", nil, "")
	if loc := rec.Header().Get("Location"); rec.Code != http.StatusFound || !strings.HasSuffix(loc, entry.ID+".zip") {
		t.Fatalf("download: %d %q", rec.Code, loc)
	}
	if rec := e.do(t, rbac.RoleOperator, http.MethodGet, "/archives/nope/download", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown archive: %d", rec.Code)
	}

	// scan one photo
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, _ := mw.CreateFormFile("file", "photo.png")
	_ = png.Encode(fw, image.NewGray(image.Rect(0, 0, 30, 40)))
	mw.Close()
	rec = e.do(t, rbac.RoleOperator, http.MethodPost, "/archives/"+entry.ID+"/scans", &form, mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: %d %s", rec.Code, rec.Body)
	}
	var out checking.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil || out.Status != checking.StatusScored || out.Result.Total != 5 {
		t.Fatalf("outcome=%+v err=%v", out, err)
	}

	rec = e.do(t, rbac.RoleOperator, http.MethodGet, "/archives/"+entry.ID+"/works", nil, "")
	var works []archive.Work
	if err := json.NewDecoder(rec.Body).Decode(&works); err != nil || len(works) != 1 || works[0].Score != 0 {
		t.Fatalf("works=%+v err=%v", works, err)
	}

	path := "/archives/" + entry.ID + "/works/" + out.Key
	if rec := e.do(t, rbac.RoleOperator, http.MethodPost, path+"/corrections", jsonBody(`{"A1":true}`), "application/json"); rec.Code != http.StatusForbidden {
		t.Fatalf("operator correction: %d", rec.Code)
	}
	rec = e.do(t, rbac.RoleAdmin, http.MethodPost, path+"/corrections", jsonBody(`{"A1":true,"A2":true}`), "application/json")
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil || out.Result.Score != 2 {
		t.Fatalf("corrected=%+v err=%v", out.Result, err)
	}
	if rec := e.do(t, rbac.RoleAdmin, http.MethodPost, path+"/corrections", jsonBody(`{"C1":true}`), "application/json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad overlay: %d", rec.Code)
	}

	rec = e.do(t, rbac.RoleOperator, http.MethodGet, path+"/image?kind=captured", nil, "")
	if loc := rec.Header().Get("Location"); rec.Code != http.StatusFound || !strings.HasSuffix(loc, "/captured/"+out.Key+".png") {
		t.Fatalf("captured: %d %q", rec.Code, loc)
	}
	rec = e.do(t, rbac.RoleOperator, http.MethodGet, path+"/image", nil, "")
	if loc := rec.Header().Get("Location"); !strings.HasSuffix(loc, "/scored/"+out.Key+".png") {
		t.Fatalf("scored: %q", loc)
	}
	if rec := e.do(t, rbac.RoleOperator, http.MethodGet, path+"/image?kind=raw", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: %d", rec.Code)
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
