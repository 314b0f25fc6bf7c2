package variant_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

func sampleDocument() variant.Document {
	return variant.Document{
		Subject: variant.SubjectInfo{ID: 1, Title: "Math"},
		Date:    "01.06.2026",
		Variants: []variant.Variant{{
			UniqueKey: "ABC123",
			Parts: []variant.PartData{{
				Info: variant.PartInfo{ID: 1, Title: "A", AnswerType: taskbank.AnswerChoice, TaskCount: 2},
				Material: []variant.Material{
					{ID: 10, Position: "A1", Options: []variant.OptionData{{ID: 1, IsAnswer: true}, {ID: 2}}},
					{ID: 11, Position: "A2", Options: []variant.OptionData{{ID: 3}, {ID: 4, IsAnswer: true}}},
				},
			}},
		}},
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	d := sampleDocument()
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := variant.ParseDocument(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, ok := got.Find("ABC123")
	if !ok {
		t.Fatalf("variant not found")
	}
	m := v.Parts[0].ByOrdinal()[2]
	if m.ID != 11 || len(m.Answers()) != 1 || m.Answers()[0].ID != 4 {
		t.Fatalf("material=%+v", m)
	}
	if _, ok := got.Find("ZZZZZZ"); ok {
		t.Fatalf("unexpected variant")
	}
}

func TestParseDocumentRejectsMalformed(t *testing.T) {
	cases := map[string]func(d *variant.Document){
		"bad key":        func(d *variant.Document) { d.Variants[0].UniqueKey = "abc" },
		"duplicate key":  func(d *variant.Document) { d.Variants = append(d.Variants, d.Variants[0]) },
		"no variants":    func(d *variant.Document) { d.Variants = nil },
		"answer type":    func(d *variant.Document) { d.Variants[0].Parts[0].Info.AnswerType = "essay" },
		"slot":           func(d *variant.Document) { d.Variants[0].Parts[0].Info.Title = "E" },
		"foreign label":  func(d *variant.Document) { d.Variants[0].Parts[0].Material[0].Position = "B1" },
		"beyond count":   func(d *variant.Document) { d.Variants[0].Parts[0].Material[1].Position = "A3" },
		"repeated label": func(d *variant.Document) { d.Variants[0].Parts[0].Material[1].Position = "A1" },
		"pool": func(d *variant.Document) {
			d.Variants[0].Parts[0].Info.AnswerType = taskbank.AnswerWritten
			d.Variants[0].Parts[0].Info.TaskCount = 41
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := sampleDocument()
			mutate(&d)
			var buf bytes.Buffer
			if err := d.Encode(&buf); err != nil {
				t.Fatalf("encode: %v", err)
			}
			if _, err := variant.ParseDocument(&buf); !errors.Is(err, variant.ErrMalformed) {
				t.Fatalf("err=%v want ErrMalformed", err)
			}
		})
	}
	if _, err := variant.ParseDocument(strings.NewReader("{")); !errors.Is(err, variant.ErrMalformed) {
		t.Fatalf("truncated json: err=%v", err)
	}
}

func TestParseLabel(t *testing.T) {
	slot, n, err := variant.ParseLabel("C12")
	if err != nil || slot != "C" || n != 12 {
		t.Fatalf("got %s %d %v", slot, n, err)
	}
	for _, bad := range []string{"", "A", "A0", "Ax"} {
		if _, _, err := variant.ParseLabel(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
