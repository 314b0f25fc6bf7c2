package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/reshuffle/internal/archive"
	authmw "github.com/mind-engage/reshuffle/internal/auth/middleware"
	"github.com/mind-engage/reshuffle/internal/checking"
	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/storage"
)

const maxPhotoBytes = 32 << 20

// POST /archives/{id}/scans  (multipart "file")
func ScanHandler(svc *checking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		out, err := svc.Scan(r.Context(), chi.URLParam(r, "id"), authmw.SubjectFromContext(r.Context()), f)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

// GET /archives/{id}/works
func ListWorksHandler(archives archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := archives.GetArchive(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		list, err := archives.ListWorks(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, list)
	}
}

// POST /archives/{id}/works/{key}/corrections  { "A3": true }
func CorrectWorkHandler(svc *checking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var overlay grading.Overlay
		if err := json.NewDecoder(r.Body).Decode(&overlay); err != nil || len(overlay) == 0 {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := svc.Correct(r.Context(), chi.URLParam(r, "id"), authmw.SubjectFromContext(r.Context()),
			chi.URLParam(r, "key"), overlay)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

// GET /archives/{id}/works/{key}/image?kind=captured|scored
func WorkImageHandler(archives archive.Store, store storage.ObjectStore, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		work, err := archives.GetWork(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"))
		if err != nil {
			writeErr(w, err)
			return
		}
		entry, err := archives.GetArchive(r.Context(), work.ArchiveID)
		if err != nil {
			writeErr(w, err)
			return
		}
		key := work.ImageAlias
		if kind := r.URL.Query().Get("kind"); kind != "" {
			if key, err = checking.ImageKey(entry.Prefix, work.UniqueKey, kind); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		u, err := store.PresignedURL(r.Context(), key, ttl)
		if err != nil {
			writeErr(w, err)
			return
		}
		http.Redirect(w, r, u, http.StatusFound)
	}
}
