package grading_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/mind-engage/reshuffle/internal/grading"
	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// choice part A with 4 tasks, answer on row 1..4 in order; written part B with 2 tasks.
func sampleVariant() variant.Variant {
	a := variant.PartData{Info: variant.PartInfo{Title: "A", AnswerType: taskbank.AnswerChoice, TaskCount: 4}}
	for i := 1; i <= 4; i++ {
		opts := make([]variant.OptionData, 4)
		for j := range opts {
			opts[j] = variant.OptionData{ID: int64(j), IsAnswer: j == i-1}
		}
		a.Material = append(a.Material, variant.Material{Position: variant.Label("A", i), Options: opts})
	}
	b := variant.PartData{
		Info: variant.PartInfo{Title: "B", AnswerType: taskbank.AnswerWritten, TaskCount: 3},
		Material: []variant.Material{
			{Position: "B1", Options: []variant.OptionData{{Content: "Colour", IsAnswer: true}, {Content: "color", IsAnswer: true}}},
			{Position: "B2", Options: []variant.OptionData{{Content: "3.5", IsAnswer: true}}},
			// B3 is a gap
		},
	}
	return variant.Variant{UniqueKey: "K00001", Parts: []variant.PartData{a, b}}
}

func marks(rows ...int) []bool {
	out := make([]bool, 4)
	for _, r := range rows {
		out[r-1] = true
	}
	return out
}

func TestScore(t *testing.T) {
	v := sampleVariant()
	ex := grading.NewExtraction("K00001")
	ex.Marks["A1"] = marks(1)    // correct
	ex.Marks["A2"] = marks(1)    // wrong row
	ex.Marks["A3"] = marks(3, 4) // multi mark
	// A4 blank
	ex.Written["B1"] = " COLOR "
	ex.Written["B2"] = "3,50"

	res := grading.NewScorer().Score(context.Background(), v, ex, nil)
	if res.Fallback {
		t.Fatalf("unexpected fallback: %s", res.Reason)
	}
	if res.Total != 7 || res.Score != 3 {
		t.Fatalf("score=%d/%d want 3/7: %+v", res.Score, res.Total, res.Verdicts)
	}
	got := map[string]bool{}
	for _, vd := range res.Verdicts {
		got[vd.Label] = vd.Correct
	}
	want := map[string]bool{"A1": true, "A2": false, "A3": false, "A4": false, "B1": true, "B2": true, "B3": false}
	for k, w := range want {
		if got[k] != w {
			t.Fatalf("%s=%v want %v", k, got[k], w)
		}
	}
}

func TestOverlayFlipsA3ToCorrect(t *testing.T) {
	v := sampleVariant()
	ex := grading.NewExtraction("K00001")
	ex.Marks["A3"] = marks(1)

	res := grading.NewScorer().Score(context.Background(), v, ex, grading.Overlay{"A3": true})
	var a3 grading.Verdict
	for _, vd := range res.Verdicts {
		if vd.Label == "A3" {
			a3 = vd
		}
	}
	if !a3.Correct || a3.Auto || !a3.Overridden {
		t.Fatalf("A3=%+v", a3)
	}
	if res.Score != 1 {
		t.Fatalf("score=%d want 1", res.Score)
	}
}

func TestSheetCorrectionsAndExplicitOverlay(t *testing.T) {
	v := sampleVariant()
	ex := grading.NewExtraction("K00001")
	ex.Marks["A1"] = marks(1)
	ex.Corrections = []grading.Correction{{Label: "A1", Correct: false}, {Label: "B3", Correct: true}}

	res := grading.NewScorer().Score(context.Background(), v, ex, nil)
	if res.Score != 1 { // A1 revoked, B3 granted
		t.Fatalf("score=%d want 1", res.Score)
	}
	res = grading.NewScorer().Score(context.Background(), v, ex, grading.Overlay{"A1": true})
	if res.Score != 2 {
		t.Fatalf("explicit overlay should win over the sheet: score=%d", res.Score)
	}
}

func TestNearMissIsFlaggedNotCredited(t *testing.T) {
	v := sampleVariant()
	ex := grading.NewExtraction("K00001")
	ex.Written["B1"] = "colr"
	res := grading.NewScorer(grading.WithMaxEditDistance(1)).Score(context.Background(), v, ex, nil)
	if res.Score != 0 {
		t.Fatalf("score=%d", res.Score)
	}
	review := res.NeedsReview()
	found := false
	for _, l := range review {
		if l == "B1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("B1 not flagged: %v", review)
	}
}

func TestWrittenKeepsSignsAndSeparators(t *testing.T) {
	cases := []struct {
		answer, read string
		want         bool
	}{
		{"-5", "5", false},
		{"3.5", "35", false},
		{"1/2", "12", false},
		{"-5", " - 5", true},
		{"1/2", "1/2", true},
		{"3.5", "3,5", true},
	}
	for _, tc := range cases {
		v := variant.Variant{UniqueKey: "K00002", Parts: []variant.PartData{{
			Info:     variant.PartInfo{Title: "B", AnswerType: taskbank.AnswerWritten, TaskCount: 1},
			Material: []variant.Material{{Position: "B1", Options: []variant.OptionData{{Content: tc.answer, IsAnswer: true}}}},
		}}}
		ex := grading.NewExtraction("K00002")
		ex.Written["B1"] = tc.read
		res := grading.NewScorer().Score(context.Background(), v, ex, nil)
		if got := res.Score == 1; got != tc.want {
			t.Fatalf("answer=%q read=%q: score=%d/%d", tc.answer, tc.read, res.Score, res.Total)
		}
	}
}

func TestUnknownAnswerTypeFallsBack(t *testing.T) {
	v := sampleVariant()
	v.Parts[0].Info.AnswerType = "essay"
	res := grading.NewScorer().Score(context.Background(), v, grading.NewExtraction(""), nil)
	if !res.Fallback || res.Score != 0 || res.Total != 7 {
		t.Fatalf("res=%+v", res)
	}
}

func TestExtractionRoundTrip(t *testing.T) {
	ex := grading.NewExtraction("K00001")
	ex.Marks["A1"] = marks(2)
	ex.Corrections = []grading.Correction{{Label: "A1", Correct: true}}
	var buf bytes.Buffer
	if err := ex.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := grading.DecodeExtraction(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Marks["A1"][1] || got.Overlay()["A1"] != true {
		t.Fatalf("got=%+v", got)
	}
}
