// Package layout maps a variant's part structure onto answer-sheet cell
// coordinates. The same Sheet drives drawing at generation time and cell
// lookup at recognition time.
package layout

import (
	"errors"
	"fmt"
	"image"

	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

var (
	ErrOverflow = errors.New("parts exceed the sheet block pool")
	ErrShape    = errors.New("invalid part shape")
)

// Canonical frame: A4 at 150 dpi.
const (
	Width  = 1240
	Height = 1754
	Margin = 60

	BlockTop    = 200
	BlockStride = 320

	// choice blocks
	OptionRows  = 4
	CheckSize   = 56
	LabelHeight = 32

	// written blocks
	CharCells    = 13
	CharWidth    = 36
	TaskLabelW   = 80
	RowHeight    = 56
	TaskGap      = 24
	writtenTaskW = TaskLabelW + CharCells*CharWidth

	// correction row
	CorrectionTop     = 1560
	CorrectionEntries = 3
	CorrectionDigits  = 2
	CorrCheck         = 44
	CorrCharWidth     = 30
	CorrGap           = 40
	corrEntryW        = SlotBoxes*CorrCheck + CorrectionDigits*CorrCharWidth + 2*CorrCheck

	SlotBoxes = 4 // one per title slot
)

// KeyBox holds the printed unique key.
var KeyBox = image.Rect(780, 60, 1180, 140)

// Part is the structural shape of one exam part.
type Part struct {
	Slot      string
	Type      taskbank.AnswerType
	TaskCount int
}

// PartsOf extracts the shapes of a variant's parts in order.
func PartsOf(v variant.Variant) []Part {
	out := make([]Part, 0, len(v.Parts))
	for _, p := range v.Parts {
		out = append(out, Part{Slot: p.Info.Title, Type: p.Info.AnswerType, TaskCount: p.Info.TaskCount})
	}
	return out
}

// TaskCells are the cells of one task position.
type TaskCells struct {
	Slot    string
	Ordinal int
	Type    taskbank.AnswerType
	Label   image.Rectangle
	Boxes   []image.Rectangle // choice: one per option row, top to bottom
	Chars   []image.Rectangle // written: character cells, left to right
}

// Name is the printed label, e.g. "A16".
func (t TaskCells) Name() string { return variant.Label(t.Slot, t.Ordinal) }

type Block struct {
	Index  int
	Slot   string
	Type   taskbank.AnswerType
	First  int // ordinal of the first task in the block
	Bounds image.Rectangle
	Tasks  []TaskCells
}

// CorrectionEntry is one hand-filled override: a part slot, a position and a verdict.
type CorrectionEntry struct {
	Slots   [SlotBoxes]image.Rectangle // A..D
	Digits  [CorrectionDigits]image.Rectangle
	Correct image.Rectangle
	Wrong   image.Rectangle
}

func (c CorrectionEntry) Boxes() []image.Rectangle {
	out := append([]image.Rectangle{}, c.Slots[:]...)
	return append(out, c.Correct, c.Wrong)
}

type Sheet struct {
	Parts       []Part
	Blocks      []Block
	Corrections []CorrectionEntry
}

// New lays out parts in order, splitting each into capacity-sized blocks.
func New(parts []Part) (*Sheet, error) {
	s := &Sheet{Parts: parts}
	idx := 0
	for _, p := range parts {
		capacity := p.Type.Capacity()
		if capacity == 0 || p.TaskCount < 1 || len(p.Slot) != 1 {
			return nil, fmt.Errorf("part %q (%s, %d): %w", p.Slot, p.Type, p.TaskCount, ErrShape)
		}
		for first := 1; first <= p.TaskCount; first += capacity {
			if idx >= taskbank.BlockPool {
				return nil, fmt.Errorf("%w: part %s needs block %d", ErrOverflow, p.Slot, idx+1)
			}
			n := min(capacity, p.TaskCount-first+1)
			s.Blocks = append(s.Blocks, newBlock(idx, p, first, n))
			idx++
		}
	}
	s.Corrections = correctionRow()
	return s, nil
}

// ForVariant lays out the sheet of v.
func ForVariant(v variant.Variant) (*Sheet, error) { return New(PartsOf(v)) }

func blockOrigin(idx int) int { return BlockTop + idx*BlockStride }

func newBlock(idx int, p Part, first, n int) Block {
	y := blockOrigin(idx)
	b := Block{Index: idx, Slot: p.Slot, Type: p.Type, First: first, Tasks: make([]TaskCells, 0, n)}
	switch p.Type {
	case taskbank.AnswerChoice:
		x0 := (Width - taskbank.AnswerChoice.Capacity()*CheckSize) / 2
		for i := 0; i < n; i++ {
			x := x0 + i*CheckSize
			t := TaskCells{Slot: p.Slot, Ordinal: first + i, Type: p.Type,
				Label: image.Rect(x, y, x+CheckSize, y+LabelHeight)}
			for r := 0; r < OptionRows; r++ {
				top := y + LabelHeight + r*CheckSize
				t.Boxes = append(t.Boxes, image.Rect(x, top, x+CheckSize, top+CheckSize))
			}
			b.Tasks = append(b.Tasks, t)
		}
		b.Bounds = image.Rect(x0, y, x0+n*CheckSize, y+LabelHeight+OptionRows*CheckSize)
	case taskbank.AnswerWritten:
		// odd ordinals on the left half, even on the right
		for k := 0; k < n; k++ {
			tx := Margin + (k%2)*(writtenTaskW+TaskGap)
			ty := y + (k/2)*RowHeight
			t := TaskCells{Slot: p.Slot, Ordinal: first + k, Type: p.Type,
				Label: image.Rect(tx, ty, tx+TaskLabelW, ty+RowHeight)}
			for j := 0; j < CharCells; j++ {
				cx := tx + TaskLabelW + j*CharWidth
				t.Chars = append(t.Chars, image.Rect(cx, ty, cx+CharWidth, ty+RowHeight))
			}
			b.Tasks = append(b.Tasks, t)
		}
		cols := min(n, 2)
		b.Bounds = image.Rect(Margin, y, Margin+cols*writtenTaskW+(cols-1)*TaskGap, y+((n+1)/2)*RowHeight)
	}
	return b
}

func correctionRow() []CorrectionEntry {
	total := CorrectionEntries*corrEntryW + (CorrectionEntries-1)*CorrGap
	x := (Width - total) / 2
	y := CorrectionTop
	out := make([]CorrectionEntry, 0, CorrectionEntries)
	for e := 0; e < CorrectionEntries; e++ {
		var c CorrectionEntry
		cx := x + e*(corrEntryW+CorrGap)
		for i := range c.Slots {
			c.Slots[i] = image.Rect(cx, y, cx+CorrCheck, y+CorrCheck)
			cx += CorrCheck
		}
		for i := range c.Digits {
			c.Digits[i] = image.Rect(cx, y, cx+CorrCharWidth, y+CorrCheck)
			cx += CorrCharWidth
		}
		c.Correct = image.Rect(cx, y, cx+CorrCheck, y+CorrCheck)
		c.Wrong = image.Rect(cx+CorrCheck, y, cx+2*CorrCheck, y+CorrCheck)
		out = append(out, c)
	}
	return out
}

// Tasks lists every task position in sheet order.
func (s *Sheet) Tasks() []TaskCells {
	var out []TaskCells
	for _, b := range s.Blocks {
		out = append(out, b.Tasks...)
	}
	return out
}

// Task finds the cells of a labelled position.
func (s *Sheet) Task(label string) (TaskCells, bool) {
	for _, b := range s.Blocks {
		for _, t := range b.Tasks {
			if t.Name() == label {
				return t, true
			}
		}
	}
	return TaskCells{}, false
}

// AnswerBoxes lists every markable square of the answer area.
func (s *Sheet) AnswerBoxes() []image.Rectangle {
	var out []image.Rectangle
	for _, t := range s.Tasks() {
		out = append(out, t.Boxes...)
	}
	return out
}

// CorrectionBoxes lists every markable square of the correction row.
func (s *Sheet) CorrectionBoxes() []image.Rectangle {
	var out []image.Rectangle
	for _, c := range s.Corrections {
		out = append(out, c.Boxes()...)
	}
	return out
}

// Frames lists every drawn rectangle, key box included.
func (s *Sheet) Frames() []image.Rectangle {
	out := []image.Rectangle{KeyBox}
	for _, t := range s.Tasks() {
		out = append(out, t.Label)
		out = append(out, t.Boxes...)
		out = append(out, t.Chars...)
	}
	for _, c := range s.Corrections {
		out = append(out, c.Boxes()...)
		out = append(out, c.Digits[:]...)
	}
	return out
}
