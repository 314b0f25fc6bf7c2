package taskbank

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrNoSlot   = errors.New("no title slot available")
)

type AnswerType string

const (
	AnswerChoice  AnswerType = "choice"
	AnswerWritten AnswerType = "written"
)

// Capacity is how many task positions one sheet block of the answer type holds.
func (t AnswerType) Capacity() int {
	switch t {
	case AnswerChoice:
		return 15
	case AnswerWritten:
		return 10
	default:
		return 0
	}
}

func (t AnswerType) Valid() bool { return t.Capacity() > 0 }

// Title slots a subject's parts are drawn from; each slot is one sheet section.
var Slots = []string{"A", "B", "C", "D"}

// BlockPool is the number of sheet blocks shared by all parts of a subject.
const BlockPool = 4

// Blocks is the number of sheet blocks a part with n tasks spans.
func Blocks(t AnswerType, n int) int {
	c := t.Capacity()
	if c == 0 || n <= 0 {
		return 0
	}
	return (n + c - 1) / c
}

type Subject struct {
	ID                int64  `json:"id"`
	Title             string `json:"title" validate:"required,max=64"`
	CaseGenitive      string `json:"case_genitive,omitempty"`
	CaseDative        string `json:"case_dative,omitempty"`
	CaseAccusative    string `json:"case_accusative,omitempty"`
	CaseInstrumental  string `json:"case_instrumental,omitempty"`
	CasePrepositional string `json:"case_prepositional,omitempty"`
	InstTitle         string `json:"inst_title,omitempty"`
	InstContent       string `json:"inst_content,omitempty"`
	IsActive          bool   `json:"is_active"`
}

type Part struct {
	ID              int64      `json:"id"`
	SubjectID       int64      `json:"subject_id" validate:"required"`
	Title           string     `json:"title" validate:"required,oneof=A B C D"`
	AnswerType      AnswerType `json:"answer_type" validate:"required,oneof=choice written"`
	TaskCount       int        `json:"task_count" validate:"required,min=1,max=60"`
	TotalDifficulty int        `json:"total_difficulty" validate:"min=0"`
	InstContent     string     `json:"inst_content,omitempty"`
}

// Capacity of one sheet block for this part's answer type.
func (p Part) Capacity() int { return p.AnswerType.Capacity() }

// Blocks is the number of sheet blocks the part spans.
func (p Part) Blocks() int { return Blocks(p.AnswerType, p.TaskCount) }

type Task struct {
	ID         int64  `json:"id"`
	PartID     int64  `json:"part_id" validate:"required"`
	Position   int    `json:"position" validate:"required,min=1"`
	Difficulty int    `json:"difficulty" validate:"min=0"`
	Content    string `json:"content"`
	IsActive   bool   `json:"is_active"`
}

type Option struct {
	ID       int64  `json:"id"`
	TaskID   int64  `json:"task_id"`
	Content  string `json:"content"`
	IsAnswer bool   `json:"is_answer"`
}

type DocHeader struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	IsActive  bool   `json:"is_active"`
	UpdatedAt int64  `json:"updated_at"`
}
