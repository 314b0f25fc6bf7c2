package taskbank

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Scale is the closed range of difficulty levels tasks are tagged with.
type Scale struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DefaultScale: 0 easy, 1 medium, 2 hard.
var DefaultScale = Scale{Min: 0, Max: 2}

func (s Scale) Contains(d int) bool { return d >= s.Min && d <= s.Max }

// Levels lists the scale in ascending order.
func (s Scale) Levels() []int {
	out := make([]int, 0, s.Max-s.Min+1)
	for d := s.Min; d <= s.Max; d++ {
		out = append(out, d)
	}
	return out
}

// Range is the total difficulty achievable by n tasks.
func (s Scale) Range(n int) (lo, hi int) {
	return n * s.Min, n * s.Max
}

var validate = validator.New()

// ValidatePart checks a part definition against the other parts of its subject.
// A part with ID != 0 present in others is treated as being edited and excluded.
func ValidatePart(others []Part, p Part, scale Scale) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid part: %w", err)
	}
	used := 0
	for _, o := range others {
		if o.ID != 0 && o.ID == p.ID {
			continue
		}
		if o.Title == p.Title {
			return fmt.Errorf("slot %s: %w", p.Title, ErrNoSlot)
		}
		used += o.Blocks()
	}
	if used+p.Blocks() > BlockPool {
		return fmt.Errorf("part needs %d blocks, %d of %d left", p.Blocks(), BlockPool-used, BlockPool)
	}
	if p.TotalDifficulty != 0 {
		lo, hi := scale.Range(p.TaskCount)
		if p.TotalDifficulty < lo || p.TotalDifficulty > hi {
			return fmt.Errorf("total difficulty %d outside [%d, %d] for %d tasks", p.TotalDifficulty, lo, hi, p.TaskCount)
		}
	}
	return nil
}

// ValidateTask checks a task against the part it belongs to.
func ValidateTask(p Part, t Task, scale Scale) error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if t.PartID != p.ID {
		return fmt.Errorf("task belongs to part %d, not %d", t.PartID, p.ID)
	}
	if t.Position < 1 || t.Position > p.TaskCount {
		return fmt.Errorf("position %d outside [1, %d]", t.Position, p.TaskCount)
	}
	if !scale.Contains(t.Difficulty) {
		return fmt.Errorf("difficulty %d outside [%d, %d]", t.Difficulty, scale.Min, scale.Max)
	}
	return nil
}

// DifficultyRange bounds the total difficulty of a part.
type DifficultyRange struct {
	TaskCount int `json:"task_count"`
	Min       int `json:"min"`
	Max       int `json:"max"`
}

// PartValidation describes what a new or edited part of a subject may use.
type PartValidation struct {
	Difficulties    []int            `json:"difficulties"`
	TotalDifficulty *DifficultyRange `json:"total_difficulty,omitempty"`
	Amount       int                `json:"amount"` // blocks still free
	Capacities   map[AnswerType]int `json:"capacities"`
	Titles       struct {
		Available []string `json:"available"`
		Reserved  []string `json:"reserved"`
	} `json:"titles"`
}

// DescribePart reports free slots and block capacity for subjectID, ignoring partID (0 for a new part).
// The total difficulty range is given for taskCount, or for the edited part's count when taskCount is 0.
func DescribePart(ctx context.Context, r Reader, subjectID, partID int64, taskCount int, scale Scale) (PartValidation, error) {
	var out PartValidation
	out.Difficulties = scale.Levels()
	out.Capacities = map[AnswerType]int{
		AnswerChoice:  AnswerChoice.Capacity(),
		AnswerWritten: AnswerWritten.Capacity(),
	}
	reserved := map[string]bool{}
	used := 0
	if subjectID != 0 {
		parts, err := r.ListParts(ctx, subjectID)
		if err != nil {
			return out, err
		}
		for _, p := range parts {
			if p.ID == partID {
				if taskCount == 0 {
					taskCount = p.TaskCount
				}
				continue
			}
			reserved[p.Title] = true
			used += p.Blocks()
		}
	}
	out.Titles.Available = []string{}
	out.Titles.Reserved = []string{}
	for _, s := range Slots {
		if reserved[s] {
			out.Titles.Reserved = append(out.Titles.Reserved, s)
		} else {
			out.Titles.Available = append(out.Titles.Available, s)
		}
	}
	out.Amount = BlockPool - used
	if out.Amount < 0 {
		out.Amount = 0
	}
	if taskCount > 0 {
		lo, hi := scale.Range(taskCount)
		out.TotalDifficulty = &DifficultyRange{TaskCount: taskCount, Min: lo, Max: hi}
	}
	return out, nil
}

type TaskValidation struct {
	AmountMin int `json:"amount_min"`
	AmountMax int `json:"amount_max"`
}

// DescribeTask reports the allowed position range for tasks of partID (0/0 without a part).
func DescribeTask(ctx context.Context, r Reader, partID int64) (TaskValidation, error) {
	if partID == 0 {
		return TaskValidation{}, nil
	}
	p, err := r.GetPart(ctx, partID)
	if err != nil {
		return TaskValidation{}, err
	}
	return TaskValidation{AmountMin: 1, AmountMax: p.TaskCount}, nil
}
