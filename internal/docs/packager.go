// Package docs generates a batch of variants and packages its sheets,
// documents and variant data as one archive in object storage.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math/rand"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/storage"
	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

var (
	ErrRender         = errors.New("render failed")
	ErrInvalidRequest = errors.New("invalid generation request")
)

// DateLayout is the printed exam date format (dd.mm.yyyy).
const DateLayout = "02.01.2006"

// Object names inside an archive prefix.
const (
	DataFile    = "data.json"
	TasksFile   = "tasks.pdf"
	AnswersFile = "answers.pdf"
	SheetsDir   = "sheets"
	CapturedDir = "captured"
	ScoredDir   = "scored"
	archiveRoot = "archives"
)

type Request struct {
	SubjectID int64  `json:"subject_id" validate:"required,gt=0"`
	Date      string `json:"date" validate:"required,datetime=02.01.2006"`
	Amount    int    `json:"amount" validate:"required,min=1"`
}

// Manifest describes a stored batch.
type Manifest struct {
	ID       string
	Prefix   string
	Document variant.Document
}

func (m Manifest) ZipKey() string { return m.Prefix + ".zip" }

type Packager struct {
	bank      taskbank.Reader
	store     storage.ObjectStore
	renderer  *layout.Renderer
	composer  *variant.Composer
	log       *logger.Logger
	maxAmount int
	workers   int
	validate  *validator.Validate
	newPrefix func() (id, prefix string)
	clock     func() time.Time
}

func NewPackager(bank taskbank.Reader, store storage.ObjectStore, renderer *layout.Renderer, scale taskbank.Scale, maxAmount int, log *logger.Logger) *Packager {
	log = logger.OrNop(log)
	if maxAmount <= 0 {
		maxAmount = 100
	}
	return &Packager{
		bank:      bank,
		store:     store,
		renderer:  renderer,
		composer:  variant.NewComposer(bank, scale, log),
		log:       log.With("service", "Packager"),
		maxAmount: maxAmount,
		workers:   runtime.GOMAXPROCS(0),
		validate:  validator.New(),
		newPrefix: func() (string, string) {
			id := uuid.NewString()
			return id, storage.Key(archiveRoot, id)
		},
		clock: time.Now,
	}
}

// Validate checks a generation request before any work runs.
func (p *Packager) Validate(req Request) error {
	if err := p.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Amount > p.maxAmount {
		return fmt.Errorf("%w: amount %d exceeds limit %d", ErrInvalidRequest, req.Amount, p.maxAmount)
	}
	return nil
}

// Build composes and renders a batch without touching storage.
func (p *Packager) Build(ctx context.Context, req Request, rng *rand.Rand) (*Bundle, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}
	subj, err := p.bank.GetSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("subject %d: %w", req.SubjectID, err)
	}
	parts, err := p.bank.ListParts(ctx, subj.ID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("subject %q has no parts", subj.Title)
	}
	taskbank.SortParts(parts)
	shapes := make([]layout.Part, 0, len(parts))
	for _, pt := range parts {
		shapes = append(shapes, layout.Part{Slot: pt.Title, Type: pt.AnswerType, TaskCount: pt.TaskCount})
	}
	sheet, err := layout.New(shapes)
	if err != nil {
		return nil, err
	}
	header, err := p.bank.ActiveDocHeader(ctx)
	if err != nil {
		return nil, err
	}

	// Keys are minted once for the whole batch; each variant composes on its own rng.
	keys := variant.MintKeys(rng, req.Amount)
	seeds := make([]int64, req.Amount)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	variants := make([]variant.Variant, req.Amount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range variants {
		g.Go(func() error {
			v, err := p.composer.Compose(gctx, rand.New(rand.NewSource(seeds[i])), parts)
			if err != nil {
				return err
			}
			v.UniqueKey = keys[i]
			variants[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	doc := variant.Document{
		Subject:   variant.SubjectInfo{ID: subj.ID, Title: subj.Title, InstContent: subj.InstContent},
		Date:      req.Date,
		DocHeader: header,
		Variants:  variants,
	}
	b := &Bundle{Document: doc, Subject: subj, Sheets: make(map[string][]byte, len(variants))}
	if err := p.render(ctx, b, sheet); err != nil {
		return nil, err
	}
	return b, nil
}

// render draws the template once and stamps every key into a copy of it.
func (p *Packager) render(ctx context.Context, b *Bundle, sheet *layout.Sheet) error {
	tpl := p.renderer.Template(sheet, layout.Header{Subject: b.Document.Subject.Title, Date: b.Document.Date})
	out := make([][]byte, len(b.Document.Variants))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, v := range b.Document.Variants {
		g.Go(func() error {
			img := p.renderer.Render(tpl, v.UniqueKey)
			buf, err := encodePNG(img)
			if err != nil {
				return fmt.Errorf("%w: sheet %s: %v", ErrRender, v.UniqueKey, err)
			}
			out[i] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, v := range b.Document.Variants {
		b.Sheets[v.UniqueKey] = out[i]
	}
	var err error
	if b.TasksPDF, err = tasksPDF(b); err != nil {
		return fmt.Errorf("%w: tasks: %v", ErrRender, err)
	}
	if b.AnswersPDF, err = answersPDF(b.Document); err != nil {
		return fmt.Errorf("%w: answers: %v", ErrRender, err)
	}
	return nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Generate builds a batch and stores it. Nothing is left behind under the
// prefix when any step fails.
func (p *Packager) Generate(ctx context.Context, req Request, rng *rand.Rand) (Manifest, error) {
	start := p.clock()
	b, err := p.Build(ctx, req, rng)
	if err != nil {
		return Manifest{}, err
	}
	id, prefix := p.newPrefix()
	m := Manifest{ID: id, Prefix: prefix, Document: b.Document}
	if err := p.upload(ctx, b, m); err != nil {
		if derr := p.store.Delete(context.WithoutCancel(ctx), prefix); derr != nil {
			p.log.Error("cleanup after failed upload", "prefix", prefix, "error", derr)
		}
		return Manifest{}, err
	}
	p.log.Info("archive generated", "id", id, "subject", b.Subject.Title, "variants", len(b.Document.Variants), "took", p.clock().Sub(start))
	return m, nil
}

func (p *Packager) upload(ctx context.Context, b *Bundle, m Manifest) error {
	files, err := b.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := storage.PutBytes(ctx, p.store, storage.Key(m.Prefix, f.Name), f.Body); err != nil {
			return fmt.Errorf("upload %s: %w", f.Name, err)
		}
	}
	zipped, err := Zip(files)
	if err != nil {
		return err
	}
	// the zip only becomes visible under its final name once complete
	part := storage.Key(m.Prefix, "archive.zip.part")
	if err := storage.PutBytes(ctx, p.store, part, zipped); err != nil {
		return fmt.Errorf("upload zip: %w", err)
	}
	if err := p.store.Rename(ctx, part, m.ZipKey()); err != nil {
		return fmt.Errorf("publish zip: %w", err)
	}
	return nil
}

// Load reads back the variant data of a stored batch.
func Load(ctx context.Context, store storage.ObjectStore, prefix string) (variant.Document, error) {
	rc, err := store.Get(ctx, storage.Key(prefix, DataFile))
	if err != nil {
		return variant.Document{}, err
	}
	defer rc.Close()
	return variant.ParseDocument(rc)
}
