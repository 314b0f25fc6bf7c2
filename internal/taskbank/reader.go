package taskbank

import (
	"context"
	"sort"
	"sync"
)

// Reader is the read-only view of the task bank the generator consumes.
// No caching: callers always see the current bank.
type Reader interface {
	GetSubject(ctx context.Context, id int64) (Subject, error)
	GetPart(ctx context.Context, id int64) (Part, error)
	ListParts(ctx context.Context, subjectID int64) ([]Part, error)
	ListTasks(ctx context.Context, partID int64, position int, activeOnly bool) ([]Task, error)
	ListOptions(ctx context.Context, taskID int64) ([]Option, error)
	ActiveDocHeader(ctx context.Context) (string, error)
}

// MemoryBank is an in-process Reader. The CLI loads it from a JSON file and tests seed it directly.
type MemoryBank struct {
	mu       sync.RWMutex
	subjects map[int64]Subject
	parts    map[int64]Part
	tasks    map[int64]Task
	options  map[int64]Option
	headers  []DocHeader
	seq      int64
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		subjects: map[int64]Subject{},
		parts:    map[int64]Part{},
		tasks:    map[int64]Task{},
		options:  map[int64]Option{},
	}
}

func (m *MemoryBank) next(id int64) int64 {
	if id > m.seq {
		m.seq = id
		return id
	}
	if id != 0 {
		return id
	}
	m.seq++
	return m.seq
}

func (m *MemoryBank) PutSubject(s Subject) Subject {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.next(s.ID)
	m.subjects[s.ID] = s
	return s
}

func (m *MemoryBank) PutPart(p Part) Part {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.next(p.ID)
	m.parts[p.ID] = p
	return p
}

func (m *MemoryBank) PutTask(t Task) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.next(t.ID)
	m.tasks[t.ID] = t
	return t
}

func (m *MemoryBank) PutOption(o Option) Option {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.next(o.ID)
	m.options[o.ID] = o
	return o
}

func (m *MemoryBank) PutDocHeader(h DocHeader) DocHeader {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = m.next(h.ID)
	if h.IsActive {
		for i := range m.headers {
			m.headers[i].IsActive = false
		}
	}
	m.headers = append(m.headers, h)
	return h
}

func (m *MemoryBank) GetSubject(_ context.Context, id int64) (Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subjects[id]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryBank) GetPart(_ context.Context, id int64) (Part, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parts[id]
	if !ok {
		return Part{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryBank) ListParts(_ context.Context, subjectID int64) ([]Part, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Part{}
	for _, p := range m.parts {
		if p.SubjectID == subjectID {
			out = append(out, p)
		}
	}
	SortParts(out)
	return out, nil
}

func (m *MemoryBank) ListTasks(_ context.Context, partID int64, position int, activeOnly bool) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Task{}
	for _, t := range m.tasks {
		if t.PartID != partID || t.Position != position {
			continue
		}
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryBank) ListOptions(_ context.Context, taskID int64) ([]Option, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Option{}
	for _, o := range m.options {
		if o.TaskID == taskID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryBank) ActiveDocHeader(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pickHeader(m.headers), nil
}

// pickHeader returns the active header, or the most recently updated one when none is flagged.
func pickHeader(hs []DocHeader) string {
	var best *DocHeader
	for i := range hs {
		h := &hs[i]
		if h.IsActive {
			return h.Content
		}
		if best == nil || h.UpdatedAt > best.UpdatedAt {
			best = h
		}
	}
	if best == nil {
		return ""
	}
	return best.Content
}

// SortParts orders parts by title slot, which is also their order on the sheet.
func SortParts(ps []Part) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Title != ps[j].Title {
			return ps[i].Title < ps[j].Title
		}
		return ps[i].ID < ps[j].ID
	})
}
