package grading

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"sort"
)

// Extraction is what was read off one scanned sheet. It is stored next to the
// scored image so a work can be re-scored without the photo.
type Extraction struct {
	Key         string                     `json:"key"`
	Marks       map[string][]bool          `json:"marks"`   // choice label -> marked option rows
	Written     map[string]string          `json:"written"` // written label -> recognized text
	Corrections []Correction               `json:"corrections"`
	Regions     map[string]image.Rectangle `json:"regions"` // label -> evaluated cells, canonical frame
	KeyBox      image.Rectangle            `json:"key_box"`
}

// Correction is one hand-marked entry of the sheet's correction row.
type Correction struct {
	Label   string `json:"label"`
	Correct bool   `json:"correct"`
}

// Overlay maps a position label to a human verdict that replaces the automatic one.
type Overlay map[string]bool

func NewExtraction(key string) Extraction {
	return Extraction{
		Key:     key,
		Marks:   map[string][]bool{},
		Written: map[string]string{},
		Regions: map[string]image.Rectangle{},
	}
}

// Overlay turns the sheet's correction row into an overlay; later entries win.
func (e Extraction) Overlay() Overlay {
	o := Overlay{}
	for _, c := range e.Corrections {
		o[c.Label] = c.Correct
	}
	return o
}

// Merge returns o with every entry of top applied over it.
func (o Overlay) Merge(top Overlay) Overlay {
	out := make(Overlay, len(o)+len(top))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

func (o Overlay) Labels() []string {
	out := make([]string, 0, len(o))
	for k := range o {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e Extraction) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(e)
}

func DecodeExtraction(r io.Reader) (Extraction, error) {
	e := NewExtraction("")
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}
	return e, nil
}
