// Package scan turns a photographed answer sheet into the canonical frame
// and reads the unique key and answers back from it.
package scan

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/mind-engage/reshuffle/internal/layout"
)

var ErrPageNotDetected = errors.New("page not detected")

// maxPhotoSide bounds the working resolution of a photo.
const maxPhotoSide = 3000

type PreprocessParams struct {
	BlurSize     int
	BlurSigma    float64
	CannyLow     float32
	CannyHigh    float32
	MorphSize    int
	DilateIter   int
	ErodeIter    int
	Epsilon      float64 // polygon approximation, fraction of perimeter
	MinPageArea  float64 // fraction of the photo
	BinThreshold float32
}

func DefaultPreprocess() PreprocessParams {
	return PreprocessParams{
		BlurSize:     5,
		BlurSigma:    1,
		CannyLow:     100,
		CannyHigh:    200,
		MorphSize:    5,
		DilateIter:   2,
		ErodeIter:    1,
		Epsilon:      0.02,
		MinPageArea:  0.2,
		BinThreshold: 85,
	}
}

// DecodePhoto decodes a JPEG/PNG upload, honouring EXIF orientation.
func DecodePhoto(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > maxPhotoSide || b.Dy() > maxPhotoSide {
		img = imaging.Fit(img, maxPhotoSide, maxPhotoSide, imaging.Lanczos)
	}
	return img, nil
}

func imageToMat(img image.Image) (gocv.Mat, error) {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer mat.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBAToGray)
	return gray, nil
}

// Canonical finds the sheet in a photo, warps it into the canonical frame
// and binarizes it. The caller owns the returned Mat.
func Canonical(img image.Image, p PreprocessParams) (gocv.Mat, error) {
	gray, err := imageToMat(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer gray.Close()

	corners, err := findPage(gray, p)
	if err != nil {
		return gocv.Mat{}, err
	}

	src := gocv.NewPointVectorFromPoints([]image.Point{corners[0], corners[1], corners[3], corners[2]})
	defer src.Close()
	dst := gocv.NewPointVectorFromPoints([]image.Point{
		{0, 0}, {layout.Width, 0}, {layout.Width, layout.Height}, {0, layout.Height},
	})
	defer dst.Close()
	m := gocv.GetPerspectiveTransform(src, dst)
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(gray, &warped, m, image.Pt(layout.Width, layout.Height))

	bin := gocv.NewMat()
	gocv.Threshold(warped, &bin, p.BinThreshold, 255, gocv.ThresholdBinary)
	return bin, nil
}

// Binarize treats img as an already rectified sheet: it is scaled to the
// canonical frame and thresholded.
func Binarize(img image.Image, p PreprocessParams) (gocv.Mat, error) {
	gray, err := imageToMat(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer gray.Close()
	src := gray
	if gray.Cols() != layout.Width || gray.Rows() != layout.Height {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(gray, &scaled, image.Pt(layout.Width, layout.Height), 0, 0, gocv.InterpolationArea)
		src = scaled
	}
	bin := gocv.NewMat()
	gocv.Threshold(src, &bin, p.BinThreshold, 255, gocv.ThresholdBinary)
	return bin, nil
}

// findPage returns the page corners ordered top-left, top-right, bottom-left, bottom-right.
func findPage(gray gocv.Mat, p PreprocessParams) ([4]image.Point, error) {
	var none [4]image.Point

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Pt(p.BlurSize, p.BlurSize), p.BlurSigma, p.BlurSigma, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, p.CannyLow, p.CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.MorphSize, p.MorphSize))
	defer kernel.Close()
	for i := 0; i < p.DilateIter; i++ {
		gocv.Dilate(edges, &edges, kernel)
	}
	for i := 0; i < p.ErodeIter; i++ {
		gocv.Erode(edges, &edges, kernel)
	}

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := p.MinPageArea * float64(gray.Cols()*gray.Rows())
	best, found := 0.0, false
	var quad []image.Point
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < minArea || area <= best {
			continue
		}
		approx := gocv.ApproxPolyDP(c, p.Epsilon*gocv.ArcLength(c, true), true)
		if approx.Size() == 4 {
			best, found = area, true
			quad = approx.ToPoints()
		}
		approx.Close()
	}
	if !found {
		return none, ErrPageNotDetected
	}
	return orderCorners(quad), nil
}

// orderCorners: top-left has the smallest x+y, bottom-right the largest;
// top-right the smallest y-x, bottom-left the largest.
func orderCorners(pts []image.Point) [4]image.Point {
	var tl, tr, bl, br image.Point
	minSum, maxSum := math.MaxInt, math.MinInt
	minDiff, maxDiff := math.MaxInt, math.MinInt
	for _, p := range pts {
		if s := p.X + p.Y; s < minSum {
			minSum, tl = s, p
		}
		if s := p.X + p.Y; s > maxSum {
			maxSum, br = s, p
		}
		if d := p.Y - p.X; d < minDiff {
			minDiff, tr = d, p
		}
		if d := p.Y - p.X; d > maxDiff {
			maxDiff, bl = d, p
		}
	}
	return [4]image.Point{tl, tr, bl, br}
}
