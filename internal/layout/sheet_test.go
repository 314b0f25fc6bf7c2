package layout_test

import (
	"errors"
	"image"
	"testing"

	"github.com/mind-engage/reshuffle/internal/layout"
	"github.com/mind-engage/reshuffle/internal/taskbank"
)

func TestSplitKeepsRunningOrdinals(t *testing.T) {
	s, err := layout.New([]layout.Part{
		{Slot: "A", Type: taskbank.AnswerChoice, TaskCount: 20},
		{Slot: "B", Type: taskbank.AnswerWritten, TaskCount: 7},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(s.Blocks) != 3 {
		t.Fatalf("blocks=%d want 3", len(s.Blocks))
	}
	if b := s.Blocks[1]; b.Slot != "A" || b.First != 16 || len(b.Tasks) != 5 || b.Tasks[0].Name() != "A16" {
		t.Fatalf("second block=%+v", b)
	}
	if s.Blocks[2].Bounds.Min.Y-s.Blocks[1].Bounds.Min.Y != layout.BlockStride {
		t.Fatalf("stride not applied")
	}
	if _, ok := s.Task("A20"); !ok {
		t.Fatalf("A20 missing")
	}
	if _, ok := s.Task("A21"); ok {
		t.Fatalf("A21 should not exist")
	}
	b1, _ := s.Task("B1")
	b2, _ := s.Task("B2")
	b3, _ := s.Task("B3")
	if b1.Label.Min.Y != b2.Label.Min.Y || b2.Label.Min.X <= b1.Label.Min.X || b3.Label.Min.X != b1.Label.Min.X {
		t.Fatalf("written tasks not split left/right: %v %v %v", b1.Label, b2.Label, b3.Label)
	}
	if len(b1.Chars) != layout.CharCells || len(b1.Boxes) != 0 {
		t.Fatalf("written cells: chars=%d boxes=%d", len(b1.Chars), len(b1.Boxes))
	}
	a1, _ := s.Task("A1")
	if len(a1.Boxes) != layout.OptionRows {
		t.Fatalf("choice boxes=%d", len(a1.Boxes))
	}
}

func TestOverflowAndShape(t *testing.T) {
	_, err := layout.New([]layout.Part{
		{Slot: "A", Type: taskbank.AnswerChoice, TaskCount: 45},
		{Slot: "B", Type: taskbank.AnswerWritten, TaskCount: 11},
	})
	if !errors.Is(err, layout.ErrOverflow) {
		t.Fatalf("err=%v want ErrOverflow", err)
	}
	if _, err := layout.New([]layout.Part{{Slot: "A", Type: "essay", TaskCount: 1}}); !errors.Is(err, layout.ErrShape) {
		t.Fatalf("err=%v want ErrShape", err)
	}
}

func TestCellsStayInsideFrame(t *testing.T) {
	s, err := layout.New([]layout.Part{
		{Slot: "A", Type: taskbank.AnswerWritten, TaskCount: 10},
		{Slot: "B", Type: taskbank.AnswerChoice, TaskCount: 15},
		{Slot: "C", Type: taskbank.AnswerWritten, TaskCount: 10},
		{Slot: "D", Type: taskbank.AnswerChoice, TaskCount: 15},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	frame := image.Rect(0, 0, layout.Width, layout.Height)
	frames := s.Frames()
	for i, r := range frames {
		if !r.In(frame) {
			t.Fatalf("cell %v outside frame", r)
		}
		for _, o := range frames[i+1:] {
			if r.Intersect(o).Dx() > 0 && r.Intersect(o).Dy() > 0 {
				t.Fatalf("cells %v and %v overlap", r, o)
			}
		}
	}
	lastBlock := s.Blocks[len(s.Blocks)-1].Bounds
	for _, c := range s.CorrectionBoxes() {
		if c.Min.Y <= lastBlock.Max.Y {
			t.Fatalf("correction row above answer area")
		}
	}
}

func TestCheckboxesAreSquareOthersAreNot(t *testing.T) {
	s, err := layout.New([]layout.Part{
		{Slot: "A", Type: taskbank.AnswerChoice, TaskCount: 3},
		{Slot: "B", Type: taskbank.AnswerWritten, TaskCount: 2},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	square := func(r image.Rectangle) bool {
		a := float64(r.Dx()) / float64(r.Dy())
		return a > 0.8 && a < 1.2
	}
	for _, r := range append(s.AnswerBoxes(), s.CorrectionBoxes()...) {
		if !square(r) {
			t.Fatalf("checkbox %v not square", r)
		}
	}
	for _, tc := range s.Tasks() {
		if square(tc.Label) {
			t.Fatalf("label %v looks like a checkbox", tc.Label)
		}
		for _, ch := range tc.Chars {
			if square(ch) {
				t.Fatalf("char cell %v looks like a checkbox", ch)
			}
		}
	}
	if square(layout.KeyBox) {
		t.Fatalf("key box square")
	}
}
