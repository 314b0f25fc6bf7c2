package scan

import (
	"context"
	"image"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/ocr"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// KeyResult is the outcome of reading a sheet's unique key. An unrecognized
// key is a normal result.
type KeyResult struct {
	Key        string          `json:"key"`
	Recognized bool            `json:"recognized"`
	Raw        string          `json:"raw"`
	Box        image.Rectangle `json:"box"`
}

// keyBox picks the unique key box among the non-checkbox cells: the widest
// cells, most elongated first, topmost of the three most elongated.
func keyBox(others []image.Rectangle) (image.Rectangle, bool) {
	maxW := 0
	for _, r := range others {
		maxW = max(maxW, r.Dx())
	}
	var cands []image.Rectangle
	for _, r := range others {
		if r.Dx() < maxW-layout.CheckSize || r.Dy() == 0 {
			continue
		}
		if aspect(r) >= float64(maxW)/2 {
			continue
		}
		cands = append(cands, r)
	}
	if len(cands) == 0 {
		return image.Rectangle{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool { return aspect(cands[i]) > aspect(cands[j]) })
	if len(cands) > 3 {
		cands = cands[:3]
	}
	best := cands[0]
	for _, r := range cands[1:] {
		if r.Min.Y < best.Min.Y {
			best = r
		}
	}
	return best, true
}

func aspect(r image.Rectangle) float64 { return float64(r.Dx()) / float64(r.Dy()) }

// RecognizeKey reads the key box and accepts the text only if it names a
// variant of the batch.
func RecognizeKey(ctx context.Context, bin gocv.Mat, g Grid, reader ocr.Reader, batch []string) (KeyResult, error) {
	box, ok := keyBox(g.Others)
	if !ok {
		return KeyResult{}, nil
	}
	res := KeyResult{Box: box}
	img, err := crop(bin, box.Inset(4))
	if err != nil {
		return res, err
	}
	text, err := reader.ReadText(ctx, img, variant.KeyAlphabet)
	if err != nil {
		return res, err
	}
	res.Raw = text
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return res, nil
	}
	cand := strings.ToUpper(strings.TrimSpace(fields[len(fields)-1]))
	for _, k := range batch {
		if k == cand {
			res.Key, res.Recognized = cand, true
			break
		}
	}
	return res, nil
}

// crop copies a region of a single-channel Mat into an image.Gray.
func crop(bin gocv.Mat, r image.Rectangle) (*image.Gray, error) {
	r = r.Intersect(image.Rect(0, 0, bin.Cols(), bin.Rows()))
	if r.Empty() {
		return image.NewGray(image.Rect(0, 0, 1, 1)), nil
	}
	region := bin.Region(r)
	defer region.Close()
	// Region is a view; clone so ToImage sees contiguous rows.
	c := region.Clone()
	defer c.Close()
	img, err := c.ToImage()
	if err != nil {
		return nil, err
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	out := image.NewGray(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out, nil
}
