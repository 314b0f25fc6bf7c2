package scan

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/ocr"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// Page is a sheet restored to the canonical frame. Close releases it.
type Page struct {
	bin  gocv.Mat
	Grid Grid
}

func (p *Page) Close() error { return p.bin.Close() }

// Image is the binarized canonical frame.
func (p *Page) Image() (image.Image, error) { return p.bin.ToImage() }

// Pipeline runs recognition stages with one set of parameters and one OCR engine.
type Pipeline struct {
	Pre       PreprocessParams
	Grid      GridParams
	Rectified bool // input is the sheet itself; page detection is skipped
	ocr       ocr.Reader
	extract   *Extractor
	log       *logger.Logger
}

func NewPipeline(reader ocr.Reader, log *logger.Logger) *Pipeline {
	log = logger.OrNop(log)
	return &Pipeline{
		Pre:     DefaultPreprocess(),
		Grid:    DefaultGrid(),
		ocr:     reader,
		extract: NewExtractor(reader, DefaultExtract(), log),
		log:     log.With("service", "ScanPipeline"),
	}
}

// Read restores a photo. rectified skips page detection for images that are
// already the sheet itself (rendered sheets, flatbed scans cropped to the page).
func (p *Pipeline) Read(img image.Image, rectified bool) (*Page, error) {
	var (
		bin gocv.Mat
		err error
	)
	if rectified {
		bin, err = Binarize(img, p.Pre)
	} else {
		bin, err = Canonical(img, p.Pre)
	}
	if err != nil {
		return nil, err
	}
	g := DetectGrid(bin, p.Grid)
	p.log.Debug("grid detected", "checkboxes", len(g.Checkboxes), "correction", len(g.Correction), "others", len(g.Others))
	return &Page{bin: bin, Grid: g}, nil
}

func (p *Pipeline) Key(ctx context.Context, page *Page, batch []string) (KeyResult, error) {
	return RecognizeKey(ctx, page.bin, page.Grid, p.ocr, batch)
}

func (p *Pipeline) Answers(ctx context.Context, page *Page, v variant.Variant) (grading.Extraction, error) {
	return p.extract.Extract(ctx, page.bin, page.Grid, v)
}

// Recognition is the full reading of one photo against a batch. Frame is the
// binarized canonical frame. ExtractErr is set when the key was read but the
// answers could not be; the caller decides how to score that.
type Recognition struct {
	Key        KeyResult
	Variant    variant.Variant
	Frame      image.Image
	Extraction grading.Extraction
	ExtractErr error
}

// Recognize runs every stage on a photo. ErrPageNotDetected is returned as is;
// an unrecognized key yields a Recognition with Key.Recognized false.
func (p *Pipeline) Recognize(ctx context.Context, img image.Image, doc variant.Document) (Recognition, error) {
	page, err := p.Read(img, p.Rectified)
	if err != nil {
		return Recognition{}, err
	}
	defer page.Close()

	var out Recognition
	if out.Key, err = p.Key(ctx, page, doc.Keys()); err != nil {
		return Recognition{}, err
	}
	if !out.Key.Recognized {
		return out, nil
	}
	out.Variant, _ = doc.Find(out.Key.Key)
	if out.Frame, err = page.Image(); err != nil {
		return Recognition{}, err
	}
	out.Extraction, out.ExtractErr = p.Answers(ctx, page, out.Variant)
	if out.ExtractErr != nil {
		out.Extraction = grading.NewExtraction(out.Key.Key)
	}
	out.Extraction.KeyBox = out.Key.Box
	return out, nil
}
