package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/ocr"
	"github.com/mind-engage/reshuffle/internal/variant"
)

var ErrGridMismatch = errors.New("sheet grid does not match the variant layout")

const digits = "0123456789"

type ExtractParams struct {
	MarkThreshold float64 // filled fraction of the cell interior that counts as a mark
	MarkInset     float64 // fraction trimmed from each side before measuring
	MinMatched    float64 // fraction of expected checkboxes that must be found on the sheet
	CharInset     int
	BlankInk      float64 // strips with less ink than this are not sent to OCR
}

func DefaultExtract() ExtractParams {
	return ExtractParams{MarkThreshold: 0.3, MarkInset: 0.18, MinMatched: 0.5, CharInset: 4, BlankInk: 0.01}
}

// Extractor reads marks, written answers and corrections of one sheet.
type Extractor struct {
	ocr    ocr.Reader
	params ExtractParams
	log    *logger.Logger
}

func NewExtractor(reader ocr.Reader, p ExtractParams, log *logger.Logger) *Extractor {
	return &Extractor{ocr: reader, params: p, log: logger.OrNop(log).With("service", "Extractor")}
}

// Extract reads the answers of v from a canonical sheet. Expected cells come
// from the layout of v; each is snapped to the detected cell nearest to it.
func (e *Extractor) Extract(ctx context.Context, bin gocv.Mat, g Grid, v variant.Variant) (grading.Extraction, error) {
	sheet, err := layout.ForVariant(v)
	if err != nil {
		return grading.Extraction{}, fmt.Errorf("%w: %v", ErrGridMismatch, err)
	}
	ex := grading.NewExtraction(v.UniqueKey)

	expected := sheet.AnswerBoxes()
	matched := 0
	for _, want := range expected {
		if _, ok := nearest(g.Checkboxes, want); ok {
			matched++
		}
	}
	if len(expected) > 0 && float64(matched) < e.params.MinMatched*float64(len(expected)) {
		return grading.Extraction{}, fmt.Errorf("%w: %d of %d checkboxes found", ErrGridMismatch, matched, len(expected))
	}
	e.log.Debug("grid anchored", "key", v.UniqueKey, "matched", matched, "expected", len(expected), "detected", len(g.Checkboxes))

	material := map[string]variant.Material{}
	for _, p := range v.Parts {
		for _, m := range p.Material {
			material[m.Position] = m
		}
	}

	for _, t := range sheet.Tasks() {
		if err := ctx.Err(); err != nil {
			return grading.Extraction{}, err
		}
		label := t.Name()
		region := t.Label
		switch {
		case len(t.Boxes) > 0:
			row := make([]bool, len(t.Boxes))
			for i, want := range t.Boxes {
				cell, _ := nearest(g.Checkboxes, want)
				region = region.Union(cell)
				row[i] = e.marked(bin, cell)
			}
			ex.Marks[label] = row
		case len(t.Chars) > 0:
			cells := make([]image.Rectangle, 0, len(t.Chars))
			for _, want := range t.Chars {
				cell, _ := nearest(g.Others, want)
				cells = append(cells, cell)
				region = region.Union(cell)
			}
			m, ok := material[label]
			if !ok {
				break
			}
			words := make([]string, 0, len(m.Options))
			for _, o := range m.Answers() {
				words = append(words, o.Content)
			}
			text, err := e.readStrip(ctx, bin, cells, ocr.Allowlist(words...))
			if err != nil {
				return grading.Extraction{}, fmt.Errorf("read %s: %w", label, err)
			}
			ex.Written[label] = text
		}
		ex.Regions[label] = region
	}

	for i, c := range sheet.Corrections {
		corr, ok, err := e.correction(ctx, bin, g, c)
		if err != nil {
			return grading.Extraction{}, fmt.Errorf("correction %d: %w", i+1, err)
		}
		if ok {
			ex.Corrections = append(ex.Corrections, corr)
		}
	}
	return ex, nil
}

// correction decodes one entry: exactly one slot, a position number and
// exactly one verdict. Blank or ambiguous entries are ignored.
func (e *Extractor) correction(ctx context.Context, bin gocv.Mat, g Grid, c layout.CorrectionEntry) (grading.Correction, bool, error) {
	slot := ""
	for i, want := range c.Slots {
		cell, _ := nearest(g.Correction, want)
		if e.marked(bin, cell) {
			if slot != "" {
				e.log.Warn("correction entry with several slots", "first", slot)
				return grading.Correction{}, false, nil
			}
			slot = string(rune('A' + i))
		}
	}
	okCell, _ := nearest(g.Correction, c.Correct)
	badCell, _ := nearest(g.Correction, c.Wrong)
	good, bad := e.marked(bin, okCell), e.marked(bin, badCell)
	if slot == "" || good == bad {
		return grading.Correction{}, false, nil
	}
	cells := make([]image.Rectangle, 0, len(c.Digits))
	for _, want := range c.Digits {
		cell, _ := nearest(g.Others, want)
		cells = append(cells, cell)
	}
	text, err := e.readStrip(ctx, bin, cells, digits)
	if err != nil {
		return grading.Correction{}, false, err
	}
	n, err := strconv.Atoi(strings.ReplaceAll(text, " ", ""))
	if err != nil || n < 1 {
		e.log.Warn("unreadable correction position", "slot", slot, "text", text)
		return grading.Correction{}, false, nil
	}
	return grading.Correction{Label: variant.Label(slot, n), Correct: good}, true, nil
}

// marked inverts the cell interior, dilates it and compares the inked share to the threshold.
func (e *Extractor) marked(bin gocv.Mat, cell image.Rectangle) bool {
	return MarkFill(bin, cell, e.params.MarkInset) >= e.params.MarkThreshold
}

// MarkFill is the inked fraction of a cell's interior.
func MarkFill(bin gocv.Mat, cell image.Rectangle, inset float64) float64 {
	dx, dy := int(inset*float64(cell.Dx())), int(inset*float64(cell.Dy()))
	in := image.Rect(cell.Min.X+dx, cell.Min.Y+dy, cell.Max.X-dx, cell.Max.Y-dy)
	in = in.Intersect(image.Rect(0, 0, bin.Cols(), bin.Rows()))
	if in.Empty() {
		return 0
	}
	region := bin.Region(in)
	defer region.Close()
	inv := gocv.NewMat()
	defer inv.Close()
	gocv.BitwiseNot(region, &inv)
	k := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer k.Close()
	gocv.Dilate(inv, &inv, k)
	return float64(gocv.CountNonZero(inv)) / float64(in.Dx()*in.Dy())
}

// readStrip joins the interiors of a field's character cells into one image and OCRs it.
func (e *Extractor) readStrip(ctx context.Context, bin gocv.Mat, cells []image.Rectangle, allow string) (string, error) {
	strip, err := Strip(bin, cells, e.params.CharInset)
	if err != nil {
		return "", err
	}
	if ink(strip) < e.params.BlankInk {
		return "", nil
	}
	return e.ocr.ReadText(ctx, strip, allow)
}

// Strip concatenates the inset cells left to right on a white background
// with a small margin, which line-mode OCR handles better than separate cells.
func Strip(bin gocv.Mat, cells []image.Rectangle, inset int) (image.Image, error) {
	const pad = 8
	parts := make([]image.Image, 0, len(cells))
	w, h := pad*2, 0
	for _, c := range cells {
		img, err := crop(bin, c.Inset(inset))
		if err != nil {
			return nil, err
		}
		parts = append(parts, img)
		w += img.Bounds().Dx()
		h = max(h, img.Bounds().Dy())
	}
	out := imaging.New(w, h+pad*2, color.White)
	x := pad
	for _, p := range parts {
		out = imaging.Paste(out, p, image.Pt(x, pad))
		x += p.Bounds().Dx()
	}
	return out, nil
}

func ink(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	dark := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				dark++
			}
		}
	}
	return float64(dark) / float64(b.Dx()*b.Dy())
}
