package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind names the store mutation an entry records.
type Kind string

const (
	KindAppend  Kind = "append"
	KindReplace Kind = "replace"
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
)

// NoIndex marks entries that do not address a single row.
const NoIndex = -1

// Entry is one journaled mutation.
type Entry struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	OperationID string          `json:"operation_id"`
	Worksheet   string          `json:"worksheet"`
	Kind        Kind            `json:"kind"`
	RowIndex    int             `json:"row_index"`
	Cells       [][]string      `json:"cells"`
	Patch       json.RawMessage `json:"patch,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// Filter narrows List.
type Filter struct {
	// Worksheet limits entries to one worksheet when set.
	Worksheet string
	// Limit keeps only the most recent entries when positive.
	Limit int
}

// Record appends e and returns it with ID, Seq and RecordedAt filled in.
// An empty OperationID defaults to the entry's own id.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Worksheet == "" {
		return Entry{}, errors.New("record entry: worksheet cannot be empty")
	}
	switch e.Kind {
	case KindAppend, KindReplace, KindUpdate, KindDelete:
	default:
		return Entry{}, fmt.Errorf("record entry: unknown kind %q", e.Kind)
	}

	if e.ID == "" {
		e.ID = j.ids.Generate()
	}
	if e.OperationID == "" {
		e.OperationID = e.ID
	}
	if e.Cells == nil {
		e.Cells = [][]string{}
	}
	e.RecordedAt = j.clock.Now().UTC()

	cells, err := json.Marshal(e.Cells)
	if err != nil {
		return Entry{}, fmt.Errorf("record entry: marshal cells: %w", err)
	}
	var patch sql.NullString
	if len(e.Patch) > 0 {
		patch = sql.NullString{String: string(e.Patch), Valid: true}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("record entry: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM entries`).Scan(&e.Seq); err != nil {
		return Entry{}, fmt.Errorf("record entry: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries
		(id, seq, operation_id, worksheet, kind, row_index, cells, patch, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Seq,
		e.OperationID,
		e.Worksheet,
		string(e.Kind),
		e.RowIndex,
		string(cells),
		patch,
		e.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record entry: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("record entry: commit: %w", err)
	}
	return e, nil
}

// List returns entries in seq order. Returns an empty slice, not nil, when
// nothing matches.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT id, seq, operation_id, worksheet, kind, row_index, cells, patch, recorded_at
		FROM entries`
	var args []any
	if f.Worksheet != "" {
		query += ` WHERE worksheet = ?`
		args = append(args, f.Worksheet)
	}
	if f.Limit > 0 {
		// newest N, re-sorted ascending below
		query = `SELECT * FROM (` + query + ` ORDER BY seq DESC LIMIT ?)`
		args = append(args, f.Limit)
	}
	query += ` ORDER BY seq ASC`

	return j.query(ctx, "list entries", query, args...)
}

// Operation returns the entries sharing operationID, in seq order.
func (j *Journal) Operation(ctx context.Context, operationID string) ([]Entry, error) {
	return j.query(ctx, "read operation", `
		SELECT id, seq, operation_id, worksheet, kind, row_index, cells, patch, recorded_at
		FROM entries
		WHERE operation_id = ?
		ORDER BY seq ASC
	`, operationID)
}

// LastSeq returns the highest seq written, or 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := j.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM entries`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func (j *Journal) query(ctx context.Context, what, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", what, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", what, err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		kind       string
		cells      string
		patch      sql.NullString
		recordedAt string
	)
	if err := rows.Scan(&e.ID, &e.Seq, &e.OperationID, &e.Worksheet, &kind, &e.RowIndex, &cells, &patch, &recordedAt); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Kind = Kind(kind)

	if err := json.Unmarshal([]byte(cells), &e.Cells); err != nil {
		return Entry{}, fmt.Errorf("unmarshal cells of %s: %w", e.ID, err)
	}
	if patch.Valid {
		e.Patch = json.RawMessage(patch.String)
	}

	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse recorded_at of %s: %w", e.ID, err)
	}
	e.RecordedAt = t
	return e, nil
}
