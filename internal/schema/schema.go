package schema

import (
	"fmt"
	"sort"

	"github.com/fvbommel/sortorder"

	"github.com/roach88/petlog/internal/coerce"
)

// Built-in worksheet names.
const (
	Training = "Training"
	Feeding  = "Feeding"
	Tasks    = "Tasks"
	TaskLogs = "TaskLogs"
)

// Column is one declared worksheet column.
type Column struct {
	Name string
	Kind coerce.Kind
}

// Worksheet is a declared worksheet layout.
type Worksheet struct {
	Name    string
	Columns []Column
}

// Header returns the column names in on-sheet order.
func (w Worksheet) Header() []string {
	header := make([]string, len(w.Columns))
	for i, c := range w.Columns {
		header[i] = c.Name
	}
	return header
}

// Kind returns the declared kind of col, KindString for undeclared columns.
func (w Worksheet) Kind(col string) coerce.Kind {
	for _, c := range w.Columns {
		if c.Name == col {
			return c.Kind
		}
	}
	return coerce.KindString
}

// Has reports whether col is declared.
func (w Worksheet) Has(col string) bool {
	for _, c := range w.Columns {
		if c.Name == col {
			return true
		}
	}
	return false
}

// WithHeader returns a layout that follows header's order, keeping declared
// kinds for known columns. Sheets edited by hand may reorder or add columns;
// reads follow what is actually on the sheet.
func (w Worksheet) WithHeader(header []string) Worksheet {
	out := Worksheet{Name: w.Name, Columns: make([]Column, len(header))}
	for i, name := range header {
		out.Columns[i] = Column{Name: name, Kind: w.Kind(name)}
	}
	return out
}

func (w Worksheet) validate() error {
	if len(w.Columns) == 0 {
		return fmt.Errorf("worksheet %q: no columns", w.Name)
	}
	seen := make(map[string]bool, len(w.Columns))
	for _, c := range w.Columns {
		if seen[c.Name] {
			return fmt.Errorf("worksheet %q: duplicate column %q", w.Name, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Registry maps worksheet names to layouts.
type Registry struct {
	sheets map[string]Worksheet
}

// Lookup returns the layout declared for name.
func (r *Registry) Lookup(name string) (Worksheet, bool) {
	w, ok := r.sheets[name]
	return w, ok
}

// Resolve returns the layout for name. Undeclared worksheets become
// all-string layouts so any tab can still be read.
func (r *Registry) Resolve(name string, header []string) Worksheet {
	w, ok := r.sheets[name]
	if !ok {
		w = Worksheet{Name: name}
	}
	if header == nil {
		return w
	}
	return w.WithHeader(header)
}

// Names returns declared worksheet names in natural order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sheets))
	for name := range r.sheets {
		names = append(names, name)
	}
	sort.Sort(sortorder.Natural(names))
	return names
}

// Len returns the number of declared worksheets.
func (r *Registry) Len() int {
	return len(r.sheets)
}
