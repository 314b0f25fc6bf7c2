package scan_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"reflect"
	"testing"

	"github.com/fogleman/gg"

	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/ocr"
	"github.com/mind-engage/reshuffle/internal/scan"
	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// fakeOCR answers by allowlist, which identifies the field being read.
type fakeOCR struct {
	key    string
	byList map[string]string
	calls  int
}

func (f *fakeOCR) ReadText(_ context.Context, img image.Image, allow string) (string, error) {
	f.calls++
	if allow == variant.KeyAlphabet {
		if img.Bounds().Dx() < layout.KeyBox.Dx()/2 {
			return "", nil
		}
		return "KEY " + f.key, nil
	}
	return f.byList[allow], nil
}

func choiceMaterial(ord int) variant.Material {
	opts := make([]variant.OptionData, 4)
	for i := range opts {
		opts[i] = variant.OptionData{ID: int64(i + 1), IsAnswer: i == 0}
	}
	return variant.Material{Position: variant.Label("A", ord), Options: opts}
}

func testVariant() variant.Variant {
	a := variant.PartData{Info: variant.PartInfo{Title: "A", AnswerType: taskbank.AnswerChoice, TaskCount: 18}}
	for i := 1; i <= 18; i++ {
		a.Material = append(a.Material, choiceMaterial(i))
	}
	b := variant.PartData{
		Info: variant.PartInfo{Title: "B", AnswerType: taskbank.AnswerWritten, TaskCount: 3},
		Material: []variant.Material{
			{Position: "B1", Options: []variant.OptionData{{Content: "cat", IsAnswer: true}}},
			{Position: "B2", Options: []variant.OptionData{{Content: "dog", IsAnswer: true}}},
			{Position: "B3", Options: []variant.OptionData{{Content: "owl", IsAnswer: true}}},
		},
	}
	return variant.Variant{UniqueKey: "ABC123", Parts: []variant.PartData{a, b}}
}

// painted answers: label -> marked rows (0-based)
var painted = map[string][]int{
	"A1":  {1},
	"A3":  {0},
	"A5":  {2, 3},
	"A16": {3},
	"A18": {0},
}

func renderSheet(t *testing.T, v variant.Variant) (image.Image, *layout.Sheet) {
	t.Helper()
	r, err := layout.NewRenderer("")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	sheet, err := layout.ForVariant(v)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	dc := gg.NewContextForImage(r.Sheet(sheet, layout.Header{Subject: "Math", Date: "01.06.2026"}, v.UniqueKey))
	for label, rows := range painted {
		tc, ok := sheet.Task(label)
		if !ok {
			t.Fatalf("no task %s", label)
		}
		for _, row := range rows {
			layout.Mark(dc, tc.Boxes[row])
		}
	}
	b1, _ := sheet.Task("B1")
	for _, c := range b1.Chars[:3] {
		layout.Mark(dc, c)
	}
	corr := sheet.Corrections[0]
	layout.Mark(dc, corr.Slots[1]) // B
	layout.Mark(dc, corr.Digits[0])
	layout.Mark(dc, corr.Correct)
	return dc.Image(), sheet
}

func newFake() *fakeOCR {
	return &fakeOCR{
		key: "ABC123",
		byList: map[string]string{
			ocr.Allowlist("cat"): "CAT",
			ocr.Allowlist("dog"): "should not be read",
			"0123456789":         "2",
		},
	}
}

func TestGridMatchesLayout(t *testing.T) {
	v := testVariant()
	img, sheet := renderSheet(t, v)
	p := scan.NewPipeline(newFake(), nil)
	page, err := p.Read(img, true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer page.Close()

	if got, want := len(page.Grid.Checkboxes), len(sheet.AnswerBoxes()); got != want {
		t.Fatalf("answer checkboxes=%d want %d", got, want)
	}
	if got, want := len(page.Grid.Correction), len(sheet.CorrectionBoxes()); got != want {
		t.Fatalf("correction boxes=%d want %d", got, want)
	}
	for _, want := range sheet.AnswerBoxes() {
		found := false
		for _, got := range page.Grid.Checkboxes {
			if got.Inset(-6).In(want.Inset(-6)) && want.Inset(6).In(got.Inset(-6)) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected checkbox %v not detected", want)
		}
	}
}

func TestSyntheticRoundTrip(t *testing.T) {
	v := testVariant()
	img, _ := renderSheet(t, v)
	fake := newFake()
	p := scan.NewPipeline(fake, nil)
	page, err := p.Read(img, true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer page.Close()

	kr, err := p.Key(context.Background(), page, []string{"ZZZZZZ", "ABC123"})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if !kr.Recognized || kr.Key != "ABC123" {
		t.Fatalf("key result=%+v", kr)
	}

	ex, err := p.Answers(context.Background(), page, v)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	for i := 1; i <= 18; i++ {
		label := variant.Label("A", i)
		want := make([]bool, 4)
		for _, r := range painted[label] {
			want[r] = true
		}
		if !reflect.DeepEqual(ex.Marks[label], want) {
			t.Fatalf("%s marks=%v want %v", label, ex.Marks[label], want)
		}
	}
	if ex.Written["B1"] != "CAT" || ex.Written["B2"] != "" {
		t.Fatalf("written=%v", ex.Written)
	}
	if !reflect.DeepEqual(ex.Corrections, []grading.Correction{{Label: "B2", Correct: true}}) {
		t.Fatalf("corrections=%+v", ex.Corrections)
	}
	if _, ok := ex.Regions["A16"]; !ok {
		t.Fatalf("region for A16 missing")
	}

	res := grading.NewScorer().Score(context.Background(), v, ex, nil)
	// A3, A18 and B1 by marks, B2 by the correction row
	if res.Score != 4 || res.Total != 21 {
		t.Fatalf("score=%d/%d", res.Score, res.Total)
	}
}

func TestUnknownKeyIsNotAnError(t *testing.T) {
	v := testVariant()
	img, _ := renderSheet(t, v)
	p := scan.NewPipeline(newFake(), nil)
	page, err := p.Read(img, true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer page.Close()
	kr, err := p.Key(context.Background(), page, []string{"QQQQQQ"})
	if err != nil || kr.Recognized {
		t.Fatalf("kr=%+v err=%v", kr, err)
	}
}

func TestGridMismatch(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, layout.Width, layout.Height))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	p := scan.NewPipeline(newFake(), nil)
	page, err := p.Read(blank, true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer page.Close()
	if _, err := p.Answers(context.Background(), page, testVariant()); !errors.Is(err, scan.ErrGridMismatch) {
		t.Fatalf("err=%v want ErrGridMismatch", err)
	}
}

func TestCanonicalFindsPageInPhoto(t *testing.T) {
	v := testVariant()
	sheetImg, sheet := renderSheet(t, v)
	photo := image.NewRGBA(image.Rect(0, 0, layout.Width+240, layout.Height+200))
	draw.Draw(photo, photo.Bounds(), image.NewUniform(color.RGBA{50, 50, 60, 255}), image.Point{}, draw.Src)
	draw.Draw(photo, sheetImg.Bounds().Add(image.Pt(120, 100)), sheetImg, image.Point{}, draw.Src)

	p := scan.NewPipeline(newFake(), nil)
	page, err := p.Read(photo, false)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer page.Close()
	img, err := page.Image()
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if img.Bounds().Dx() != layout.Width || img.Bounds().Dy() != layout.Height {
		t.Fatalf("canonical bounds=%v", img.Bounds())
	}
	want := len(sheet.AnswerBoxes())
	if got := len(page.Grid.Checkboxes); got < want*9/10 {
		t.Fatalf("checkboxes=%d want about %d", got, want)
	}
}

func TestPageNotDetected(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 800, 600))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.RGBA{90, 90, 90, 255}), image.Point{}, draw.Src)
	_, err := scan.NewPipeline(newFake(), nil).Read(flat, false)
	if !errors.Is(err, scan.ErrPageNotDetected) {
		t.Fatalf("err=%v want ErrPageNotDetected", err)
	}
}

func TestRecognizeRunsEveryStage(t *testing.T) {
	v := testVariant()
	img, _ := renderSheet(t, v)
	other := testVariant()
	other.UniqueKey = "ZZZZZZ"
	doc := variant.Document{Variants: []variant.Variant{other, v}}

	p := scan.NewPipeline(newFake(), nil)
	p.Rectified = true
	rec, err := p.Recognize(context.Background(), img, doc)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if !rec.Key.Recognized || rec.Variant.UniqueKey != "ABC123" || rec.ExtractErr != nil {
		t.Fatalf("recognition key=%+v err=%v", rec.Key, rec.ExtractErr)
	}
	if b := rec.Frame.Bounds(); b.Dx() != layout.Width || b.Dy() != layout.Height {
		t.Fatalf("frame=%v", b)
	}
	if rec.Extraction.KeyBox.Empty() || rec.Extraction.Written["B1"] != "CAT" {
		t.Fatalf("extraction=%+v", rec.Extraction)
	}
}
