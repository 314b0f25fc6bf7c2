package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/reshuffle/internal/api/http"
	"github.com/mind-engage/reshuffle/internal/archive"
	auth "github.com/mind-engage/reshuffle/internal/auth/middleware"
	"github.com/mind-engage/reshuffle/internal/checking"
	"github.com/mind-engage/reshuffle/internal/config"
	"github.com/mind-engage/reshuffle/internal/db"
	"github.com/mind-engage/reshuffle/internal/docs"
	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/lock"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/ocr"
	rbac "github.com/mind-engage/reshuffle/internal/rbac"
	"github.com/mind-engage/reshuffle/internal/scan"
	storage "github.com/mind-engage/reshuffle/internal/storage"
	syncx "github.com/mind-engage/reshuffle/internal/sync"
	"github.com/mind-engage/reshuffle/internal/taskbank"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(octx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		lg.Fatal("db open failed", "error", err)
	}
	defer dbh.Close()
	bank := taskbank.NewSQLStore(dbh)
	archives := archive.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh)

	// --- Storage, OCR, locks ---
	var closers []io.Closer
	track := func(v any) {
		if c, ok := v.(io.Closer); ok {
			closers = append(closers, c)
		}
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				lg.Warn("close", "error", err)
			}
		}
	}()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		lg.Fatal("blob store", "driver", cfg.BlobDriver, "error", err)
	}
	track(store)
	reader, err := ocr.Open(ctx, ocr.Options{Driver: cfg.OCRDriver, Lang: cfg.OCRLang, Timeout: cfg.OCRTimeout}, lg)
	if err != nil {
		lg.Fatal("ocr", "driver", cfg.OCRDriver, "error", err)
	}
	track(reader)
	locks, err := lock.Open(ctx, cfg.LockDriver, cfg.RedisAddr, cfg.RedisPassword, lg)
	if err != nil {
		lg.Fatal("locks", "driver", cfg.LockDriver, "error", err)
	}
	track(locks)

	renderer, err := layout.NewRenderer(cfg.FontPath)
	if err != nil {
		lg.Fatal("fonts", "error", err)
	}
	packager := docs.NewPackager(bank, store, renderer, taskbank.DefaultScale, cfg.MaxVariants, lg)
	checker := checking.NewService(archives, store, scan.NewPipeline(reader, lg), grading.NewScorer(), locks, events, lg)

	authSvc := auth.NewAuthService(cfg.AuthSecret,
		auth.User{Name: cfg.AdminUser, PassHash: cfg.AdminPassHash, Role: rbac.RoleAdmin},
		auth.User{Name: cfg.OperatorUser, PassHash: cfg.OperatorPassHash, Role: rbac.RoleOperator},
	)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Auth:     authSvc,
		Bank:     bank,
		Scale:    taskbank.DefaultScale,
		Packager: packager,
		Archives: archives,
		Store:    store,
		Checking: checker,
		Events:   events,
		URLTTL:   cfg.DownloadURLTTL,
		Log:      lg,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	lg.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "blob", cfg.BlobDriver, "ocr", cfg.OCRDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("http server", "error", err)
	}
}
