package records

import (
	"context"
	"maps"

	"github.com/roach88/petlog/internal/coerce"
)

// Record maps column names to coerced values.
type Record map[string]coerce.Value

// Clone returns a copy that shares nothing with r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Row is a record together with its snapshot index.
type Row struct {
	Index  int
	Record Record
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{Index: r.Index, Record: r.Record.Clone()}
	}
	return out
}

type operationKey struct{}

// WithOperation tags every journal entry written under ctx with id, so the
// mutations of one logical change can be listed together.
func WithOperation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationKey{}, id)
}

// OperationFrom returns the operation id set by WithOperation.
func OperationFrom(ctx context.Context) string {
	id, _ := ctx.Value(operationKey{}).(string)
	return id
}
