package cli

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
)

// ErrStaleSnapshot means the exported rows no longer match the worksheet.
var ErrStaleSnapshot = errors.New("worksheet changed since the snapshot was taken")

// SnapshotFile is the editable YAML form of a worksheet's last rows. The
// index of each row is its position at snapshot time; keep it when editing.
type SnapshotFile struct {
	Worksheet string `yaml:"worksheet" json:"worksheet"`
	// Last is the K the snapshot was taken with.
	Last int `yaml:"last,omitempty" json:"last,omitempty"`
	// From and To bound the exported indices, To exclusive.
	From int `yaml:"from" json:"from"`
	To   int `yaml:"to" json:"to"`
	// Digest is the rowsDigest of the exported rows.
	Digest string `yaml:"digest,omitempty" json:"digest,omitempty"`
	// Header is only read by replace; empty means the declared header.
	Header []string      `yaml:"header,omitempty" json:"header,omitempty"`
	Rows   []SnapshotRow `yaml:"rows" json:"rows"`
}

// SnapshotRow is one row of a SnapshotFile.
type SnapshotRow struct {
	Index  int               `yaml:"index" json:"index"`
	Fields map[string]string `yaml:"fields" json:"fields"`
}

// ReadSnapshotFile parses a snapshot or replace file.
func ReadSnapshotFile(path string) (*SnapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var f SnapshotFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Rows == nil {
		f.Rows = []SnapshotRow{}
	}
	return &f, nil
}

// rows decodes the file's rows against w. A column left out of a row keeps
// its value from the base row with the same index.
func (f *SnapshotFile) rows(store *records.Store, w schema.Worksheet, base []records.Row) []records.Row {
	prev := make(map[int]records.Record, len(base))
	for _, r := range base {
		prev[r.Index] = r.Record
	}

	out := make([]records.Row, len(f.Rows))
	for i, r := range f.Rows {
		rec := store.Decode(w, r.Fields)
		for name, v := range prev[r.Index] {
			if _, ok := r.Fields[name]; !ok {
				rec[name] = v
			}
		}
		out[i] = records.Row{Index: r.Index, Record: rec}
	}
	return out
}

// window returns the rows of all whose index is in [from, to).
func window(all []records.Row, from, to int) []records.Row {
	out := []records.Row{}
	for _, r := range all {
		if r.Index >= from && r.Index < to {
			out = append(out, r)
		}
	}
	return out
}

// rowsDigest fingerprints rows as cell text in w's column order, with
// their indices.
func rowsDigest(store *records.Store, w schema.Worksheet, rows []records.Row) (string, error) {
	type digestRow struct {
		Index int      `json:"i"`
		Cells []string `json:"c"`
	}
	header := w.Header()
	doc := struct {
		Header []string    `json:"h"`
		Rows   []digestRow `json:"r"`
	}{Header: header, Rows: make([]digestRow, len(rows))}

	for i, r := range rows {
		text := store.Text(w, r.Record)
		cells := make([]string, len(header))
		for j, col := range header {
			cells[j] = text[col]
		}
		doc.Rows[i] = digestRow{Index: r.Index, Cells: cells}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("digest rows: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Last int
	Out  string
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot <worksheet>",
		Short: "Export the last rows of a worksheet for editing",
		Long: `Write the last K rows of a worksheet as YAML. Edit the values, drop
rows to delete them, then apply the file with "petlog reconcile".

Keep the index, from, to and digest entries as written. A column removed
from a row is left unchanged; set it to "" to clear the cell.

Examples:
  petlog snapshot feeding --last 10 --out feeding.yaml
  petlog snapshot Training --last 5`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Last, "last", "n", 10, "number of rows to export")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default stdout)")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, name string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	if opts.Last < 1 {
		return NewExitError(ExitCommandError, "--last must be at least 1")
	}

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ws := worksheetName(a, name)
	rows, err := a.Store.Tail(ctx, ws, opts.Last)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+ws, err)
	}
	w, err := a.Store.Worksheet(ctx, ws)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+ws, err)
	}

	digest, err := rowsDigest(a.Store, w, rows)
	if err != nil {
		return WrapExitError(ExitFailure, "encode snapshot", err)
	}
	snap := SnapshotFile{Worksheet: ws, Last: opts.Last, Digest: digest, Rows: make([]SnapshotRow, len(rows))}
	if len(rows) > 0 {
		snap.From = rows[0].Index
		snap.To = rows[len(rows)-1].Index + 1
	}
	for i, row := range rows {
		snap.Rows[i] = SnapshotRow{Index: row.Index, Fields: a.Store.Text(w, row.Record)}
	}

	if opts.Out == "" {
		if opts.Format == "json" {
			return opts.formatter(cmd).Success(snap)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return WrapExitError(ExitFailure, "encode snapshot", err)
		}
		return enc.Close()
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return WrapExitError(ExitFailure, "encode snapshot", err)
	}
	if err := enc.Close(); err != nil {
		return WrapExitError(ExitFailure, "encode snapshot", err)
	}
	if err := os.WriteFile(opts.Out, buf.Bytes(), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write snapshot", err)
	}

	return opts.formatter(cmd).Render(map[string]interface{}{"worksheet": ws, "rows": len(rows), "path": opts.Out}, func(out io.Writer) {
		fmt.Fprintf(out, "✓ Wrote %d %s row(s) to %s\n", len(rows), ws, opts.Out)
	})
}
