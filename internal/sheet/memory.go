package sheet

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryBackend keeps worksheets in process memory. It behaves like a
// remote store that trims trailing empty cells from every row.
type MemoryBackend struct {
	order  []string
	sheets map[string][][]string
	mx     sync.Mutex
}

// NewMemoryBackend returns an empty in-memory resource.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sheets: make(map[string][][]string)}
}

// MemoryDialer returns a Dialer that hands out one MemoryBackend per resource.
func MemoryDialer() Dialer {
	var mx sync.Mutex
	resources := make(map[string]*MemoryBackend)
	return func(_ context.Context, resource string) (Backend, error) {
		mx.Lock()
		defer mx.Unlock()
		b, ok := resources[resource]
		if !ok {
			b = NewMemoryBackend()
			resources[resource] = b
		}
		return b, nil
	}
}

func (m *MemoryBackend) Worksheets(_ context.Context) ([]string, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return slices.Clone(m.order), nil
}

func (m *MemoryBackend) Create(_ context.Context, worksheet string, header []string) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if _, ok := m.sheets[worksheet]; ok {
		return fmt.Errorf("worksheet %q already exists", worksheet)
	}
	m.order = append(m.order, worksheet)
	m.sheets[worksheet] = [][]string{trimRow(header)}
	return nil
}

func (m *MemoryBackend) ReadAll(_ context.Context, worksheet string) ([][]string, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	rows, ok := m.sheets[worksheet]
	if !ok {
		return nil, NewNotFound("read", worksheet, "worksheet")
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

func (m *MemoryBackend) Append(_ context.Context, worksheet string, row []string) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	rows, ok := m.sheets[worksheet]
	if !ok {
		return NewNotFound("append", worksheet, "worksheet")
	}
	m.sheets[worksheet] = append(rows, trimRow(row))
	return nil
}

func (m *MemoryBackend) ReplaceAll(_ context.Context, worksheet string, header []string, rows [][]string) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if _, ok := m.sheets[worksheet]; !ok {
		return NewNotFound("replace", worksheet, "worksheet")
	}
	next := make([][]string, 0, len(rows)+1)
	next = append(next, trimRow(header))
	for _, r := range rows {
		next = append(next, trimRow(r))
	}
	m.sheets[worksheet] = next
	return nil
}

func (m *MemoryBackend) UpdateRow(_ context.Context, worksheet string, index int, row []string) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	rows, ok := m.sheets[worksheet]
	if !ok {
		return NewNotFound("update", worksheet, "worksheet")
	}
	pos := index + HeaderRows
	if pos >= len(rows) {
		return NewNotFound("update", worksheet, fmt.Sprintf("row %d", index))
	}
	rows[pos] = trimRow(row)
	return nil
}

func (m *MemoryBackend) DeleteRow(_ context.Context, worksheet string, index int) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	rows, ok := m.sheets[worksheet]
	if !ok {
		return NewNotFound("delete", worksheet, "worksheet")
	}
	pos := index + HeaderRows
	if pos >= len(rows) {
		return NewNotFound("delete", worksheet, fmt.Sprintf("row %d", index))
	}
	m.sheets[worksheet] = slices.Delete(rows, pos, pos+1)
	return nil
}

// trimRow copies row without trailing empty cells.
func trimRow(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return slices.Clone(row[:end])
}
