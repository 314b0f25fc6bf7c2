package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/reshuffle/internal/archive"
	authmw "github.com/mind-engage/reshuffle/internal/auth/middleware"
	"github.com/mind-engage/reshuffle/internal/checking"
	"github.com/mind-engage/reshuffle/internal/docs"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/rbac"
	"github.com/mind-engage/reshuffle/internal/storage"
	syncx "github.com/mind-engage/reshuffle/internal/sync"
	"github.com/mind-engage/reshuffle/internal/taskbank"
)

type Deps struct {
	Auth     *authmw.AuthService
	Bank     taskbank.Reader
	Scale    taskbank.Scale
	Packager *docs.Packager
	Archives archive.Store
	Store    storage.ObjectStore
	Checking *checking.Service
	Events   syncx.Sink
	URLTTL   time.Duration
	Log      *logger.Logger
}

// Mount registers the API on r. Everything but login and health checks
// needs a bearer token and the route's permission.
func Mount(r chi.Router, d Deps) {
	r.Post("/auth/login", authmw.LoginHandler(d.Auth))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermBankValidate)).
			Get("/validation/part", PartValidationHandler(d.Bank, d.Scale))
		pr.With(rbac.Require(rbac.PermBankValidate)).
			Get("/validation/task", TaskValidationHandler(d.Bank))

		pr.With(rbac.Require(rbac.PermArchiveCreate)).
			Post("/archives", CreateArchiveHandler(d.Packager, d.Archives, d.Store, d.Events, d.Log))
		pr.With(rbac.Require(rbac.PermArchiveView)).
			Get("/archives", ListArchivesHandler(d.Archives))
		pr.With(rbac.Require(rbac.PermArchiveView)).
			Get("/archives/{id}/download", DownloadArchiveHandler(d.Archives, d.Store, d.URLTTL))

		pr.With(rbac.Require(rbac.PermWorkScore)).
			Post("/archives/{id}/scans", ScanHandler(d.Checking))
		pr.With(rbac.Require(rbac.PermArchiveView)).
			Get("/archives/{id}/works", ListWorksHandler(d.Archives))
		pr.With(rbac.Require(rbac.PermWorkCorrect)).
			Post("/archives/{id}/works/{key}/corrections", CorrectWorkHandler(d.Checking))
		pr.With(rbac.Require(rbac.PermArchiveView)).
			Get("/archives/{id}/works/{key}/image", WorkImageHandler(d.Archives, d.Store, d.URLTTL))
	})
}
