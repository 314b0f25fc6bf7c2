package variant

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/taskbank"
)

const (
	choiceWrong   = 3
	choiceCorrect = 1
)

// Composer picks one task per position and the options presented for it.
type Composer struct {
	bank  taskbank.Reader
	scale taskbank.Scale
	log   *logger.Logger
}

func NewComposer(bank taskbank.Reader, scale taskbank.Scale, log *logger.Logger) *Composer {
	return &Composer{bank: bank, scale: scale, log: logger.OrNop(log).With("service", "Composer")}
}

// Compose builds one variant (without its unique key) over the given parts.
// rng must not be shared with other goroutines.
func (c *Composer) Compose(ctx context.Context, rng *rand.Rand, parts []taskbank.Part) (Variant, error) {
	v := Variant{Parts: make([]PartData, 0, len(parts))}
	for _, p := range parts {
		pd, err := c.composePart(ctx, rng, p)
		if err != nil {
			return Variant{}, fmt.Errorf("part %s: %w", p.Title, err)
		}
		v.Parts = append(v.Parts, pd)
	}
	return v, nil
}

func (c *Composer) composePart(ctx context.Context, rng *rand.Rand, p taskbank.Part) (PartData, error) {
	var levels []int
	if p.TotalDifficulty > 0 {
		var err error
		levels, err = Allocate(rng, p.TaskCount, p.TotalDifficulty, c.scale)
		if err != nil {
			return PartData{}, err
		}
	} else {
		// no target: any mix of levels
		levels = Uniform(rng, p.TaskCount, c.scale)
	}

	pd := PartData{
		Info: PartInfo{
			ID:              p.ID,
			Title:           p.Title,
			AnswerType:      p.AnswerType,
			TaskCount:       p.TaskCount,
			DifficultyTotal: p.TotalDifficulty,
			InstContent:     p.InstContent,
		},
		Material: make([]Material, 0, p.TaskCount),
	}
	for pos := 1; pos <= p.TaskCount; pos++ {
		if err := ctx.Err(); err != nil {
			return PartData{}, err
		}
		tasks, err := c.bank.ListTasks(ctx, p.ID, pos, true)
		if err != nil {
			return PartData{}, err
		}
		if len(tasks) == 0 {
			c.log.Warn("no active task for position", "part", p.ID, "position", Label(p.Title, pos))
			continue
		}
		t := pickTask(rng, tasks, levels[pos-1])
		opts, err := c.bank.ListOptions(ctx, t.ID)
		if err != nil {
			return PartData{}, err
		}
		pd.Material = append(pd.Material, Material{
			ID:         t.ID,
			Position:   Label(p.Title, pos),
			Difficulty: t.Difficulty,
			Content:    t.Content,
			Options:    SelectOptions(rng, p.AnswerType, opts),
		})
		pd.Info.DifficultyGenerated += t.Difficulty
	}
	return pd, nil
}

// pickTask prefers tasks at the allocated level and falls back to any task at the position.
func pickTask(rng *rand.Rand, tasks []taskbank.Task, level int) taskbank.Task {
	matching := make([]taskbank.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Difficulty == level {
			matching = append(matching, t)
		}
	}
	if len(matching) == 0 {
		matching = tasks
	}
	return matching[rng.Intn(len(matching))]
}

// SelectOptions chooses the presented options of a task.
// choice: one correct and three incorrect, shuffled; fewer when the bank has fewer.
// written: every correct option, as accepted spellings, in bank order.
func SelectOptions(rng *rand.Rand, typ taskbank.AnswerType, opts []taskbank.Option) []OptionData {
	var correct, wrong []OptionData
	for _, o := range opts {
		od := OptionData{ID: o.ID, Content: o.Content, IsAnswer: o.IsAnswer}
		if o.IsAnswer {
			correct = append(correct, od)
		} else {
			wrong = append(wrong, od)
		}
	}
	if typ == taskbank.AnswerWritten {
		if correct == nil {
			return []OptionData{}
		}
		return correct
	}
	out := make([]OptionData, 0, choiceCorrect+choiceWrong)
	out = append(out, sample(rng, correct, choiceCorrect)...)
	out = append(out, sample(rng, wrong, choiceWrong)...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func sample(rng *rand.Rand, in []OptionData, k int) []OptionData {
	cp := append([]OptionData(nil), in...)
	rng.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	if len(cp) > k {
		cp = cp[:k]
	}
	return cp
}
