// Package checking turns a photo of a filled sheet into a stored score.
package checking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"time"

	"github.com/fogleman/gg"

	"github.com/mind-engage/reshuffle/internal/archive"
	"github.com/mind-engage/reshuffle/internal/docs"
	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/lock"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/scan"
	"github.com/mind-engage/reshuffle/internal/storage"
	syncx "github.com/mind-engage/reshuffle/internal/sync"
	"github.com/mind-engage/reshuffle/internal/variant"
)

var (
	// ErrUnknownWork is returned when a correction targets a key that was never scored.
	ErrUnknownWork = errors.New("work not scored")
	ErrBadOverlay  = errors.New("overlay names no position of the variant")
)

type Status string

const (
	StatusScored          Status = "scored"
	StatusPageNotFound    Status = "page_not_found"
	StatusKeyUnrecognized Status = "key_unrecognized"
)

// Outcome reports what happened to one submitted photo.
type Outcome struct {
	Status      Status          `json:"status"`
	Key         string          `json:"key,omitempty"`
	RawKey      string          `json:"raw_key,omitempty"`
	Result      *grading.Result `json:"result,omitempty"`
	Work        *archive.Work   `json:"work,omitempty"`
	NeedsReview []string        `json:"needs_review,omitempty"`
}

// Recognizer reads a photo against a batch; *scan.Pipeline implements it.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, doc variant.Document) (scan.Recognition, error)
}

// record is stored as {prefix}/scored/{key}.json next to the annotated image.
type record struct {
	Extraction grading.Extraction `json:"extraction"`
	Overlay    grading.Overlay    `json:"overlay"`
	Result     grading.Result     `json:"result"`
}

type Service struct {
	archives archive.Store
	store    storage.ObjectStore
	recog    Recognizer
	scorer   *grading.Scorer
	locks    lock.Locker
	events   syncx.Sink
	log      *logger.Logger
	clock    func() time.Time
}

func NewService(archives archive.Store, store storage.ObjectStore, recog Recognizer, scorer *grading.Scorer,
	locks lock.Locker, events syncx.Sink, log *logger.Logger) *Service {
	return &Service{
		archives: archives,
		store:    store,
		recog:    recog,
		scorer:   scorer,
		locks:    locks,
		events:   events,
		log:      logger.OrNop(log).With("service", "Checking"),
		clock:    time.Now,
	}
}

func capturedKey(prefix, key string) string {
	return storage.Key(prefix, docs.CapturedDir, key+".png")
}
func scoredKey(prefix, key, ext string) string {
	return storage.Key(prefix, docs.ScoredDir, key+ext)
}

// ImageKey names the stored captured or scored image of a work.
func ImageKey(prefix, key, kind string) (string, error) {
	switch kind {
	case "", "scored":
		return scoredKey(prefix, key, ".png"), nil
	case "captured":
		return capturedKey(prefix, key), nil
	default:
		return "", fmt.Errorf("unknown image kind %q", kind)
	}
}

// Scan recognizes, scores and stores one photo submitted against archiveID.
// An undetected page or unknown key is reported in Outcome, not as an error.
func (s *Service) Scan(ctx context.Context, archiveID, userID string, photo io.Reader) (Outcome, error) {
	entry, err := s.archives.GetArchive(ctx, archiveID)
	if err != nil {
		return Outcome{}, err
	}
	doc, err := docs.Load(ctx, s.store, entry.Prefix)
	if err != nil {
		return Outcome{}, fmt.Errorf("load archive %s: %w", archiveID, err)
	}
	img, err := scan.DecodePhoto(photo)
	if err != nil {
		return Outcome{}, err
	}
	rec, err := s.recog.Recognize(ctx, img, doc)
	if errors.Is(err, scan.ErrPageNotDetected) {
		s.log.Info("page not detected", "archive", archiveID)
		return Outcome{Status: StatusPageNotFound}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	kr := rec.Key
	if !kr.Recognized {
		s.log.Info("key not recognized", "archive", archiveID, "raw", kr.Raw)
		return Outcome{Status: StatusKeyUnrecognized, RawKey: kr.Raw}, nil
	}
	var res grading.Result
	if rec.ExtractErr != nil {
		s.log.Warn("answers not extracted", "archive", archiveID, "key", kr.Key, "error", rec.ExtractErr)
		res = grading.Fallback(rec.Variant, rec.ExtractErr.Error())
	} else {
		res = s.scorer.Score(ctx, rec.Variant, rec.Extraction, nil)
	}

	release, err := s.locks.Lock(ctx, archiveID+"/"+kr.Key)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	if err := s.putPNG(ctx, capturedKey(entry.Prefix, kr.Key), rec.Frame); err != nil {
		return Outcome{}, err
	}
	work, err := s.persist(ctx, entry, userID, rec.Frame, record{Extraction: rec.Extraction, Overlay: grading.Overlay{}, Result: res})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusScored, Key: kr.Key, RawKey: kr.Raw, Result: &res, Work: &work, NeedsReview: res.NeedsReview()}, nil
}

// Correct re-scores a stored work with overlay applied over any earlier corrections.
func (s *Service) Correct(ctx context.Context, archiveID, userID, key string, overlay grading.Overlay) (Outcome, error) {
	entry, err := s.archives.GetArchive(ctx, archiveID)
	if err != nil {
		return Outcome{}, err
	}
	doc, err := docs.Load(ctx, s.store, entry.Prefix)
	if err != nil {
		return Outcome{}, fmt.Errorf("load archive %s: %w", archiveID, err)
	}
	v, ok := doc.Find(key)
	if !ok {
		return Outcome{}, fmt.Errorf("%s: %w", key, ErrUnknownWork)
	}
	for _, label := range overlay.Labels() {
		if !hasPosition(v, label) {
			return Outcome{}, fmt.Errorf("%s %s: %w", key, label, ErrBadOverlay)
		}
	}

	release, err := s.locks.Lock(ctx, archiveID+"/"+key)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	rec, err := s.loadRecord(ctx, entry.Prefix, key)
	if err != nil {
		return Outcome{}, err
	}
	frame, err := s.loadPNG(ctx, capturedKey(entry.Prefix, key))
	if err != nil {
		return Outcome{}, err
	}
	rec.Overlay = rec.Overlay.Merge(overlay)
	rec.Result = s.scorer.Score(ctx, v, rec.Extraction, rec.Overlay)
	work, err := s.persist(ctx, entry, userID, frame, rec)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusScored, Key: key, Result: &rec.Result, Work: &work, NeedsReview: rec.Result.NeedsReview()}, nil
}

func hasPosition(v variant.Variant, label string) bool {
	slot, ord, err := variant.ParseLabel(label)
	if err != nil {
		return false
	}
	for _, p := range v.Parts {
		if p.Info.Title == slot {
			return ord <= p.Info.TaskCount
		}
	}
	return false
}

// persist writes the annotated image and record, then replaces the score row.
// Caller holds the key lock.
func (s *Service) persist(ctx context.Context, entry archive.Entry, userID string, frame image.Image, rec record) (archive.Work, error) {
	key := rec.Result.Key
	alias := scoredKey(entry.Prefix, key, ".png")
	if err := s.putPNG(ctx, alias, Annotate(frame, rec.Extraction, rec.Result)); err != nil {
		return archive.Work{}, err
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(rec); err != nil {
		return archive.Work{}, err
	}
	if err := storage.PutBytes(ctx, s.store, scoredKey(entry.Prefix, key, ".json"), buf.Bytes()); err != nil {
		return archive.Work{}, err
	}
	work, err := s.archives.ReplaceWork(ctx, archive.Work{
		ArchiveID:  entry.ID,
		UniqueKey:  key,
		UserID:     userID,
		Score:      rec.Result.Score,
		Total:      rec.Result.Total,
		Fallback:   rec.Result.Fallback,
		ImageAlias: alias,
		CreatedAt:  s.clock().Unix(),
	})
	if err != nil {
		return archive.Work{}, err
	}
	s.emit(ctx, work)
	s.log.Info("work scored", "archive", entry.ID, "key", key, "score", work.Score, "total", work.Total, "fallback", work.Fallback)
	return work, nil
}

func (s *Service) emit(ctx context.Context, w archive.Work) {
	if s.events == nil {
		return
	}
	e, err := syncx.NewEvent(syncx.WorkScored, w.ArchiveID+"/"+w.UniqueKey, w)
	if err == nil {
		err = s.events.Append(ctx, e)
	}
	if err != nil {
		s.log.Warn("event not recorded", "type", syncx.WorkScored, "error", err)
	}
}

func (s *Service) loadRecord(ctx context.Context, prefix, key string) (record, error) {
	rc, err := s.store.Get(ctx, scoredKey(prefix, key, ".json"))
	if errors.Is(err, storage.ErrNotExist) {
		return record{}, fmt.Errorf("%s: %w", key, ErrUnknownWork)
	}
	if err != nil {
		return record{}, err
	}
	defer rc.Close()
	var rec record
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return record{}, fmt.Errorf("scored record %s: %w", key, err)
	}
	if rec.Overlay == nil {
		rec.Overlay = grading.Overlay{}
	}
	return rec, nil
}

func (s *Service) putPNG(ctx context.Context, key string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return storage.PutBytes(ctx, s.store, key, buf.Bytes())
}

func (s *Service) loadPNG(ctx context.Context, key string) (image.Image, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return png.Decode(rc)
}

var (
	green = color.RGBA{0, 170, 0, 255}
	red   = color.RGBA{220, 0, 0, 255}
	blue  = color.RGBA{0, 0, 220, 255}
)

// Annotate outlines every evaluated position green or red and the key box blue.
func Annotate(frame image.Image, ex grading.Extraction, res grading.Result) image.Image {
	dc := gg.NewContextForImage(frame)
	for _, v := range res.Verdicts {
		r, ok := ex.Regions[v.Label]
		if !ok {
			continue
		}
		c := red
		if v.Correct {
			c = green
		}
		layout.Outline(dc, r, c)
	}
	if !ex.KeyBox.Empty() {
		layout.Outline(dc, ex.KeyBox, blue)
	}
	return dc.Image()
}
