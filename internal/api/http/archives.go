package http

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/reshuffle/internal/archive"
	authmw "github.com/mind-engage/reshuffle/internal/auth/middleware"
	"github.com/mind-engage/reshuffle/internal/docs"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/storage"
	syncx "github.com/mind-engage/reshuffle/internal/sync"
)

// POST /archives  { "subject_id": 1, "date": "01.06.2026", "amount": 30 }
func CreateArchiveHandler(pkg *docs.Packager, archives archive.Store, store storage.ObjectStore, events syncx.Sink, log *logger.Logger) http.HandlerFunc {
	log = logger.OrNop(log)
	return func(w http.ResponseWriter, r *http.Request) {
		var req docs.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		m, err := pkg.Generate(ctx, req, rand.New(rand.NewSource(time.Now().UnixNano())))
		if err != nil {
			writeErr(w, err)
			return
		}
		entry, err := archives.CreateArchive(ctx, archive.Entry{
			ID:           m.ID,
			UserID:       authmw.SubjectFromContext(ctx),
			SubjectID:    m.Document.Subject.ID,
			SubjectTitle: m.Document.Subject.Title,
			Date:         m.Document.Date,
			Prefix:       m.Prefix,
			Amount:       len(m.Document.Variants),
		})
		if err != nil {
			// an unrecorded batch is unreachable; drop its objects
			if derr := store.Delete(context.WithoutCancel(ctx), m.Prefix); derr != nil {
				log.Error("cleanup unrecorded archive", "prefix", m.Prefix, "error", derr)
			}
			writeErr(w, err)
			return
		}
		if events != nil {
			if e, err := syncx.NewEvent(syncx.ArchiveGenerated, entry.ID, entry); err == nil {
				if err := events.Append(ctx, e); err != nil {
					log.Warn("event not recorded", "type", syncx.ArchiveGenerated, "error", err)
				}
			}
		}
		writeJSONStatus(w, http.StatusCreated, entry)
	}
}

// GET /archives
func ListArchivesHandler(archives archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := archives.ListArchives(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, list)
	}
}

// GET /archives/{id}/download -> presigned URL of {prefix}.zip
func DownloadArchiveHandler(archives archive.Store, store storage.ObjectStore, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := archives.GetArchive(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		u, err := store.PresignedURL(r.Context(), docs.Manifest{Prefix: entry.Prefix}.ZipKey(), ttl)
		if err != nil {
			writeErr(w, err)
			return
		}
		http.Redirect(w, r, u, http.StatusFound)
	}
}
