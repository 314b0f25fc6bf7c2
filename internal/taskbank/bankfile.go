package taskbank

import (
	"encoding/json"
	"fmt"
	"io"
)

// BankFile is the JSON export format accepted by LoadBank.
type BankFile struct {
	Subjects   []Subject   `json:"subjects"`
	Parts      []Part      `json:"parts"`
	Tasks      []Task      `json:"tasks"`
	Options    []Option    `json:"options"`
	DocHeaders []DocHeader `json:"doc_headers"`
}

// LoadBank reads a BankFile into a MemoryBank, validating parts and tasks on the way in.
func LoadBank(r io.Reader, scale Scale) (*MemoryBank, error) {
	var f BankFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}
	m := NewMemoryBank()
	for _, s := range f.Subjects {
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("subject %d: %w", s.ID, err)
		}
		m.PutSubject(s)
	}
	bySubject := map[int64][]Part{}
	parts := map[int64]Part{}
	for _, p := range f.Parts {
		if _, ok := m.subjects[p.SubjectID]; !ok {
			return nil, fmt.Errorf("part %d: subject %d: %w", p.ID, p.SubjectID, ErrNotFound)
		}
		if err := ValidatePart(bySubject[p.SubjectID], p, scale); err != nil {
			return nil, fmt.Errorf("part %d: %w", p.ID, err)
		}
		p = m.PutPart(p)
		bySubject[p.SubjectID] = append(bySubject[p.SubjectID], p)
		parts[p.ID] = p
	}
	for _, t := range f.Tasks {
		p, ok := parts[t.PartID]
		if !ok {
			return nil, fmt.Errorf("task %d: part %d: %w", t.ID, t.PartID, ErrNotFound)
		}
		if err := ValidateTask(p, t, scale); err != nil {
			return nil, fmt.Errorf("task %d: %w", t.ID, err)
		}
		m.PutTask(t)
	}
	for _, o := range f.Options {
		if _, ok := m.tasks[o.TaskID]; !ok {
			return nil, fmt.Errorf("option %d: task %d: %w", o.ID, o.TaskID, ErrNotFound)
		}
		m.PutOption(o)
	}
	for _, h := range f.DocHeaders {
		m.PutDocHeader(h)
	}
	return m, nil
}
