package variant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mind-engage/reshuffle/internal/taskbank"
)

// ErrMalformed is returned when a stored document does not match the expected shape.
var ErrMalformed = errors.New("malformed variant document")

// Document is the machine-readable batch written at generation time (data.json)
// and read back when scans are scored. Key names and nesting are a stable contract.
type Document struct {
	Subject   SubjectInfo `json:"subject"`
	Date      string      `json:"date"`
	DocHeader string      `json:"doc_header"`
	Variants  []Variant   `json:"variants"`
}

type SubjectInfo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	InstContent string `json:"inst_content"`
}

type Variant struct {
	UniqueKey string     `json:"unique_key"`
	Parts     []PartData `json:"parts"`
}

type PartData struct {
	Info     PartInfo   `json:"info"`
	Material []Material `json:"material"`
}

type PartInfo struct {
	ID                  int64               `json:"id"`
	Title               string              `json:"title"`
	AnswerType          taskbank.AnswerType `json:"answer_type"`
	TaskCount           int                 `json:"task_count"`
	DifficultyTotal     int                 `json:"difficulty_total"`
	DifficultyGenerated int                 `json:"difficulty_generated"`
	InstContent         string              `json:"inst_content"`
}

type Material struct {
	ID         int64        `json:"id"`
	Position   string       `json:"position"` // slot + ordinal, e.g. "A3"
	Difficulty int          `json:"difficulty"`
	Content    string       `json:"content"`
	Options    []OptionData `json:"options"`
}

type OptionData struct {
	ID       int64  `json:"id"`
	Content  string `json:"content"`
	IsAnswer bool   `json:"is_answer"`
}

// Label is the display label of a position within a part: slot letter + ordinal.
func Label(slot string, ordinal int) string {
	return slot + strconv.Itoa(ordinal)
}

// ParseLabel splits "A12" into ("A", 12).
func ParseLabel(label string) (string, int, error) {
	if len(label) < 2 {
		return "", 0, fmt.Errorf("label %q: %w", label, ErrMalformed)
	}
	n, err := strconv.Atoi(label[1:])
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("label %q: %w", label, ErrMalformed)
	}
	return label[:1], n, nil
}

// Ordinal is the 1-based position of the material within its part.
func (m Material) Ordinal() int {
	_, n, _ := ParseLabel(m.Position)
	return n
}

// Answers returns the options flagged as correct.
func (m Material) Answers() []OptionData {
	out := []OptionData{}
	for _, o := range m.Options {
		if o.IsAnswer {
			out = append(out, o)
		}
	}
	return out
}

// ByOrdinal indexes a part's material by ordinal; gaps are absent.
func (p PartData) ByOrdinal() map[int]Material {
	out := make(map[int]Material, len(p.Material))
	for _, m := range p.Material {
		out[m.Ordinal()] = m
	}
	return out
}

// Find returns the variant with the given key.
func (d Document) Find(key string) (Variant, bool) {
	for _, v := range d.Variants {
		if v.UniqueKey == key {
			return v, true
		}
	}
	return Variant{}, false
}

// Keys lists the unique keys of the batch in order.
func (d Document) Keys() []string {
	out := make([]string, 0, len(d.Variants))
	for _, v := range d.Variants {
		out = append(out, v.UniqueKey)
	}
	return out
}

// Validate checks structure so that malformed stored JSON fails at load time.
func (d Document) Validate() error {
	if len(d.Variants) == 0 {
		return fmt.Errorf("no variants: %w", ErrMalformed)
	}
	keys := map[string]bool{}
	for _, v := range d.Variants {
		if !ValidKey(v.UniqueKey) {
			return fmt.Errorf("unique key %q: %w", v.UniqueKey, ErrMalformed)
		}
		if keys[v.UniqueKey] {
			return fmt.Errorf("duplicate unique key %q: %w", v.UniqueKey, ErrMalformed)
		}
		keys[v.UniqueKey] = true
		if err := validateParts(v.Parts); err != nil {
			return fmt.Errorf("variant %s: %w", v.UniqueKey, err)
		}
	}
	return nil
}

func validateParts(parts []PartData) error {
	slots := map[string]bool{}
	blocks := 0
	for _, p := range parts {
		in := p.Info
		if !in.AnswerType.Valid() {
			return fmt.Errorf("part %q answer type %q: %w", in.Title, in.AnswerType, ErrMalformed)
		}
		if len(in.Title) != 1 || !strings.Contains(strings.Join(taskbank.Slots, ""), in.Title) {
			return fmt.Errorf("part title %q: %w", in.Title, ErrMalformed)
		}
		if slots[in.Title] {
			return fmt.Errorf("duplicate part %q: %w", in.Title, ErrMalformed)
		}
		slots[in.Title] = true
		if in.TaskCount < 1 {
			return fmt.Errorf("part %q task count %d: %w", in.Title, in.TaskCount, ErrMalformed)
		}
		blocks += taskbank.Blocks(in.AnswerType, in.TaskCount)
		seen := map[int]bool{}
		for _, m := range p.Material {
			slot, n, err := ParseLabel(m.Position)
			if err != nil {
				return err
			}
			if slot != in.Title || n > in.TaskCount || seen[n] {
				return fmt.Errorf("part %q position %q: %w", in.Title, m.Position, ErrMalformed)
			}
			seen[n] = true
		}
	}
	if blocks > taskbank.BlockPool {
		return fmt.Errorf("%d blocks exceed pool of %d: %w", blocks, taskbank.BlockPool, ErrMalformed)
	}
	return nil
}

// ParseDocument decodes and validates a stored batch.
func ParseDocument(r io.Reader) (Document, error) {
	var d Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := d.Validate(); err != nil {
		return Document{}, err
	}
	return d, nil
}

// Encode writes the document as indented JSON.
func (d Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
