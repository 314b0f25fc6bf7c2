package grading

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// Verdict is the outcome for one position of a variant.
type Verdict struct {
	Label      string   `json:"label"`
	Correct    bool     `json:"correct"`
	Auto       bool     `json:"auto"`       // automatic verdict before any overlay
	Overridden bool     `json:"overridden"` // an overlay decided this position
	Answer     string   `json:"answer,omitempty"`
	Feedback   []string `json:"feedback,omitempty"`
}

// Result is the score of one sheet. Fallback results carry no verdicts.
type Result struct {
	Key      string    `json:"key"`
	Score    int       `json:"score"`
	Total    int       `json:"total"`
	Fallback bool      `json:"fallback"`
	Reason   string    `json:"reason,omitempty"`
	Verdicts []Verdict `json:"verdicts,omitempty"`
}

// NeedsReview lists positions a human should look at.
func (r Result) NeedsReview() []string {
	var out []string
	for _, v := range r.Verdicts {
		if !v.Correct && len(v.Feedback) > 0 {
			out = append(out, v.Label)
		}
	}
	return out
}

// Strategy decides one position of a given answer type.
type Strategy interface {
	Grade(ctx context.Context, m variant.Material, ex Extraction) (Verdict, error)
}

// Engine options

type Option func(*config)

type config struct {
	MaxEditDistance int // near misses of written answers are flagged, never credited
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// Scorer routes each position to the strategy of its part's answer type.
type Scorer struct {
	strategies map[taskbank.AnswerType]Strategy
}

// NewScorer installs the built-in strategies.
func NewScorer(opts ...Option) *Scorer {
	cfg := &config{MaxEditDistance: 1}
	for _, o := range opts {
		o(cfg)
	}
	return &Scorer{
		strategies: map[taskbank.AnswerType]Strategy{
			taskbank.AnswerChoice:  choiceStrategy{},
			taskbank.AnswerWritten: writtenStrategy{maxEdit: cfg.MaxEditDistance},
		},
	}
}

// Total is the number of scorable positions of v.
func Total(v variant.Variant) int {
	n := 0
	for _, p := range v.Parts {
		n += p.Info.TaskCount
	}
	return n
}

// Fallback is the zero score used when a sheet could not be read.
func Fallback(v variant.Variant, reason string) Result {
	return Result{Key: v.UniqueKey, Total: Total(v), Fallback: true, Reason: reason}
}

// Score grades ex against v. overlay is applied over the sheet's own
// correction row. A strategy failure yields a Fallback result, never an error.
func (s *Scorer) Score(ctx context.Context, v variant.Variant, ex Extraction, overlay Overlay) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fallback(v, fmt.Sprint("scoring panic: ", r))
		}
	}()
	ov := ex.Overlay().Merge(overlay)
	res = Result{Key: v.UniqueKey, Total: Total(v)}
	for _, p := range v.Parts {
		strat, ok := s.strategies[p.Info.AnswerType]
		if !ok {
			return Fallback(v, "no strategy for "+string(p.Info.AnswerType))
		}
		byOrd := p.ByOrdinal()
		for ord := 1; ord <= p.Info.TaskCount; ord++ {
			label := variant.Label(p.Info.Title, ord)
			vd := Verdict{Label: label}
			if m, ok := byOrd[ord]; ok {
				var err error
				vd, err = strat.Grade(ctx, m, ex)
				if err != nil {
					return Fallback(v, fmt.Sprintf("%s: %v", label, err))
				}
			} else {
				vd.Feedback = []string{"no task at this position"}
			}
			vd.Auto = vd.Correct
			if c, ok := ov[label]; ok {
				vd.Correct, vd.Overridden = c, true
			}
			if vd.Correct {
				res.Score++
			}
			res.Verdicts = append(res.Verdicts, vd)
		}
	}
	return res
}

// --- Strategies ---

// choiceStrategy credits exactly one mark on the row of the correct option.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, m variant.Material, ex Extraction) (Verdict, error) {
	vd := Verdict{Label: m.Position}
	marks := ex.Marks[m.Position]
	answer, marked := -1, 0
	for i, o := range m.Options {
		if o.IsAnswer {
			answer = i
		}
	}
	for i, on := range marks {
		if on {
			marked++
			vd.Answer += strconv.Itoa(i + 1)
		}
	}
	switch {
	case answer < 0:
		vd.Feedback = append(vd.Feedback, "task has no correct option")
	case marked == 0:
		// blank
	case marked > 1:
		vd.Feedback = append(vd.Feedback, "several options marked")
	default:
		vd.Correct = answer < len(marks) && marks[answer]
	}
	return vd, nil
}

// writtenStrategy matches normalized text against any accepted spelling.
type writtenStrategy struct{ maxEdit int }

func (s writtenStrategy) Grade(_ context.Context, m variant.Material, ex Extraction) (Verdict, error) {
	text := ex.Written[m.Position]
	vd := Verdict{Label: m.Position, Answer: text}
	got := foldAnswer(text)
	if got == "" {
		return vd, nil
	}
	near := false
	for _, o := range m.Answers() {
		want := foldAnswer(o.Content)
		if want == got || numericEqual(o.Content, text) {
			vd.Correct = true
			return vd, nil
		}
		if s.maxEdit > 0 && editDistance(want, got) <= s.maxEdit {
			near = true
		}
	}
	if near {
		vd.Feedback = append(vd.Feedback, "close match (fuzzy)")
	}
	return vd, nil
}
