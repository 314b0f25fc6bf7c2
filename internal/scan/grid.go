package scan

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

type GridParams struct {
	LineDivisor    int     // line kernel length = frame width / LineDivisor
	CloseLen       int     // bridging kernel; 1 leaves the image unchanged
	DilateSize     int     // merges near-touching line segments
	CheckAspect    float64 // nominal checkbox w/h
	AspectTol      float64
	MinCellArea    int
	MaxCellFrac    float64 // cells larger than this fraction of the frame are background
	RowTolFraction float64 // row clustering tolerance, fraction of mean cell height
}

func DefaultGrid() GridParams {
	return GridParams{
		LineDivisor:    40,
		CloseLen:       1,
		DilateSize:     3,
		CheckAspect:    1,
		AspectTol:      0.2,
		MinCellArea:    150,
		MaxCellFrac:    0.25,
		RowTolFraction: 0.5,
	}
}

// Grid is the cell structure found on a canonical sheet.
type Grid struct {
	Checkboxes []image.Rectangle // answer area, row clusters top to bottom, left to right
	Correction []image.Rectangle // bottommost checkbox row
	Others     []image.Rectangle // enclosed cells that are not checkbox shaped
}

// LineMask extracts the ruled lines of a binarized sheet (ink black on white).
// The result has lines white on black. The caller owns it.
func LineMask(bin gocv.Mat, p GridParams) gocv.Mat {
	inv := gocv.NewMat()
	defer inv.Close()
	gocv.BitwiseNot(bin, &inv)

	closeK := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.CloseLen, p.CloseLen))
	defer closeK.Close()
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(inv, &closed, gocv.MorphClose, closeK)

	n := bin.Cols() / p.LineDivisor
	hk := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(n, 1))
	defer hk.Close()
	vk := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(1, n))
	defer vk.Close()

	h := gocv.NewMat()
	defer h.Close()
	gocv.MorphologyEx(closed, &h, gocv.MorphOpen, hk)
	v := gocv.NewMat()
	defer v.Close()
	gocv.MorphologyEx(closed, &v, gocv.MorphOpen, vk)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.BitwiseOr(h, v, &lines)

	dk := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.DilateSize, p.DilateSize))
	defer dk.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(lines, &dilated, dk)

	mask := gocv.NewMat()
	gocv.Threshold(dilated, &mask, 127, 255, gocv.ThresholdBinary)
	return mask
}

// DetectGrid labels the regions enclosed by ruled lines and sorts them into
// checkboxes, the correction row and other cells.
func DetectGrid(bin gocv.Mat, p GridParams) Grid {
	mask := LineMask(bin, p)
	defer mask.Close()
	free := gocv.NewMat()
	defer free.Close()
	gocv.BitwiseNot(mask, &free)

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()
	n := gocv.ConnectedComponentsWithStats(free, &labels, &stats, &centroids)

	w, h := bin.Cols(), bin.Rows()
	maxArea := int(p.MaxCellFrac * float64(w*h))
	var boxes, others []image.Rectangle
	// label 0 is the line mask itself
	for i := 1; i < n; i++ {
		x := int(stats.GetIntAt(i, 0))
		y := int(stats.GetIntAt(i, 1))
		cw := int(stats.GetIntAt(i, 2))
		ch := int(stats.GetIntAt(i, 3))
		area := int(stats.GetIntAt(i, 4))
		if area < p.MinCellArea || area > maxArea {
			continue
		}
		if x == 0 || y == 0 || x+cw >= w || y+ch >= h {
			continue
		}
		r := image.Rect(x, y, x+cw, y+ch)
		if isCheckbox(r, p) {
			boxes = append(boxes, r)
		} else {
			others = append(others, r)
		}
	}

	rows := clusterRows(boxes, p.RowTolFraction)
	var g Grid
	for i, row := range rows {
		if i == len(rows)-1 {
			g.Correction = row
			continue
		}
		g.Checkboxes = append(g.Checkboxes, row...)
	}
	g.Others = others
	return g
}

func isCheckbox(r image.Rectangle, p GridParams) bool {
	if r.Dy() == 0 {
		return false
	}
	a := float64(r.Dx()) / float64(r.Dy())
	return math.Abs(a-p.CheckAspect) <= p.AspectTol
}

// clusterRows groups cells whose vertical centres lie within tol of the
// running row centre. Rows come out top to bottom, cells left to right.
func clusterRows(cells []image.Rectangle, tolFraction float64) [][]image.Rectangle {
	if len(cells) == 0 {
		return nil
	}
	meanH := 0
	for _, c := range cells {
		meanH += c.Dy()
	}
	tol := tolFraction * float64(meanH) / float64(len(cells))

	sorted := append([]image.Rectangle{}, cells...)
	sort.Slice(sorted, func(i, j int) bool { return midY(sorted[i]) < midY(sorted[j]) })

	var rows [][]image.Rectangle
	var cur []image.Rectangle
	var centre float64
	for _, c := range sorted {
		if len(cur) > 0 && math.Abs(midY(c)-centre) > tol {
			rows = append(rows, cur)
			cur = nil
		}
		cur = append(cur, c)
		centre = 0
		for _, m := range cur {
			centre += midY(m)
		}
		centre /= float64(len(cur))
	}
	rows = append(rows, cur)
	for _, r := range rows {
		sort.Slice(r, func(i, j int) bool { return r[i].Min.X < r[j].Min.X })
	}
	return rows
}

func midY(r image.Rectangle) float64 { return float64(r.Min.Y+r.Max.Y) / 2 }

func mid(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

// minSnapArea is the smallest detected/expected area ratio a cell may have
// to stand in for its layout rectangle. Strokes that cut a cell in two leave
// fragments below it.
const minSnapArea = 0.6

// nearest returns the detected cell whose centre is closest to want's
// centre, if it lies within half of want's smaller side. Fragments are
// skipped; want itself is returned when nothing qualifies.
func nearest(cells []image.Rectangle, want image.Rectangle) (image.Rectangle, bool) {
	c := mid(want)
	limit := float64(min(want.Dx(), want.Dy())) / 2
	minArea := minSnapArea * float64(want.Dx()*want.Dy())
	best, bestD := image.Rectangle{}, math.Inf(1)
	for _, r := range cells {
		if float64(r.Dx()*r.Dy()) < minArea {
			continue
		}
		m := mid(r)
		d := math.Hypot(float64(m.X-c.X), float64(m.Y-c.Y))
		if d < bestD {
			best, bestD = r, d
		}
	}
	if bestD > limit {
		return want, false
	}
	return best, true
}
