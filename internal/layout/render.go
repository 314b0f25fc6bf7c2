package layout

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mind-engage/reshuffle/internal/taskbank"
)

const (
	lineWidth = 2
	labelSize = 18
	titleSize = 26
	keySize   = 44
)

// Header is the printed heading of a sheet.
type Header struct {
	Subject string
	Date    string
}

// Renderer draws sheets. Safe for concurrent use.
type Renderer struct {
	text *truetype.Font
	mono *truetype.Font

	mu    sync.Mutex
	faces map[string]font.Face
}

// NewRenderer loads the label font from fontPath, or Go Regular when empty.
func NewRenderer(fontPath string) (*Renderer, error) {
	raw := goregular.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		raw = b
	}
	text, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	mono, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse mono font: %w", err)
	}
	return &Renderer{text: text, mono: mono, faces: map[string]font.Face{}}, nil
}

// face returns a cached face; gg contexts only read from it while drawing under r.mu.
func (r *Renderer) face(f *truetype.Font, name string, size float64) font.Face {
	k := fmt.Sprintf("%s/%v", name, size)
	if fc, ok := r.faces[k]; ok {
		return fc
	}
	fc := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
	r.faces[k] = fc
	return fc
}

// Template draws everything of a sheet except the unique key.
func (r *Renderer) Template(s *Sheet, h Header) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(Width, Height)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)
	dc.SetLineWidth(lineWidth)

	dc.SetFontFace(r.face(r.text, "text", titleSize))
	dc.DrawString(h.Subject, Margin, 90)
	dc.DrawString(h.Date, Margin, 130)

	dc.SetFontFace(r.face(r.text, "text", labelSize))
	dc.DrawStringAnchored("Variant", float64(KeyBox.Min.X), float64(KeyBox.Min.Y-8), 0, 0)
	strokeRect(dc, KeyBox)

	for _, b := range s.Blocks {
		dc.DrawString("Part "+b.Slot, float64(Margin), float64(b.Bounds.Min.Y-12))
		if b.Type == taskbank.AnswerChoice && len(b.Tasks) > 0 {
			for row, box := range b.Tasks[0].Boxes {
				dc.DrawStringAnchored(fmt.Sprint(row+1), float64(box.Min.X-20), center(box).Y, 0.5, 0.35)
			}
		}
		for _, t := range b.Tasks {
			strokeRect(dc, t.Label)
			c := center(t.Label)
			dc.DrawStringAnchored(t.Name(), c.X, c.Y, 0.5, 0.35)
			for _, box := range t.Boxes {
				strokeRect(dc, box)
			}
			for _, ch := range t.Chars {
				strokeRect(dc, ch)
			}
		}
	}

	if len(s.Corrections) > 0 {
		dc.DrawString("Corrections", float64(Margin), float64(CorrectionTop-40))
	}
	for _, c := range s.Corrections {
		for i, box := range c.Slots {
			strokeRect(dc, box)
			dc.DrawStringAnchored(string(rune('A'+i)), center(box).X, float64(box.Min.Y-10), 0.5, 0)
		}
		for _, d := range c.Digits {
			strokeRect(dc, d)
		}
		dc.DrawStringAnchored("No.", float64(c.Digits[0].Max.X), float64(c.Digits[0].Min.Y-10), 0.5, 0)
		strokeRect(dc, c.Correct)
		dc.DrawStringAnchored("+", center(c.Correct).X, float64(c.Correct.Min.Y-10), 0.5, 0)
		strokeRect(dc, c.Wrong)
		dc.DrawStringAnchored("-", center(c.Wrong).X, float64(c.Wrong.Min.Y-10), 0.5, 0)
	}
	return dc.Image()
}

// Render stamps key into a copy of tpl.
func (r *Renderer) Render(tpl image.Image, key string) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContextForImage(tpl)
	dc.SetColor(color.Black)
	dc.SetFontFace(r.face(r.mono, "mono", keySize))
	c := center(KeyBox)
	dc.DrawStringAnchored(key, c.X, c.Y, 0.5, 0.35)
	return dc.Image()
}

// Sheet renders a complete sheet for one variant key.
func (r *Renderer) Sheet(s *Sheet, h Header, key string) image.Image {
	return r.Render(r.Template(s, h), key)
}

// Outline draws a coloured frame around rect; used to annotate scored scans.
func Outline(dc *gg.Context, rect image.Rectangle, c color.Color) {
	dc.SetColor(c)
	dc.SetLineWidth(4)
	dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
	dc.Stroke()
}

// Mark draws a cross inside rect, the way a hand-filled checkbox looks.
func Mark(dc *gg.Context, rect image.Rectangle) {
	in := rect.Inset(rect.Dx() / 7)
	dc.SetColor(color.Black)
	dc.SetLineWidth(5)
	dc.DrawLine(float64(in.Min.X), float64(in.Min.Y), float64(in.Max.X), float64(in.Max.Y))
	dc.DrawLine(float64(in.Max.X), float64(in.Min.Y), float64(in.Min.X), float64(in.Max.Y))
	dc.Stroke()
}

func strokeRect(dc *gg.Context, rect image.Rectangle) {
	dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
	dc.Stroke()
}

func center(r image.Rectangle) gg.Point {
	return gg.Point{X: float64(r.Min.X+r.Max.X) / 2, Y: float64(r.Min.Y+r.Max.Y) / 2}
}
