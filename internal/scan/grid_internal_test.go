package scan

import (
	"image"
	"testing"
)

func TestNearestSkipsSplitCells(t *testing.T) {
	want := image.Rect(100, 100, 136, 156) // one 36x56 character cell

	// a tall stroke touching both borders splits the interior in two
	left := image.Rect(102, 102, 116, 154)
	right := image.Rect(120, 102, 134, 154)
	got, ok := nearest([]image.Rectangle{left, right}, want)
	if ok || got != want {
		t.Fatalf("split cell snapped to %v ok=%v, want layout rectangle", got, ok)
	}

	whole := image.Rect(102, 102, 134, 154)
	got, ok = nearest([]image.Rectangle{left, whole, right}, want)
	if !ok || got != whole {
		t.Fatalf("got %v ok=%v want %v", got, ok, whole)
	}

	// far away cells never stand in
	far := image.Rect(140, 102, 172, 154)
	if got, ok := nearest([]image.Rectangle{far}, want); ok || got != want {
		t.Fatalf("far cell accepted: %v", got)
	}
}
