package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/petlog/internal/cache"
	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/journal"
	"github.com/roach88/petlog/internal/schema"
	"github.com/roach88/petlog/internal/sheet"
)

// Journal receives one entry per successful mutation.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// Snapshot is one read of a worksheet: its layout as found on the sheet and
// its data rows.
type Snapshot struct {
	Worksheet schema.Worksheet
	Rows      []Row

	// headerless is set when the worksheet has no header row yet.
	headerless bool
}

// Store reads and writes records of one resource.
type Store struct {
	client   *sheet.Client
	resource string
	registry *schema.Registry
	codec    *coerce.Codec
	cache    *cache.Cache[Snapshot]
	journal  Journal
	logger   *slog.Logger

	mx       sync.Mutex
	readErrs map[string]error
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry sets the worksheet layouts. Defaults to schema.Builtin().
func WithRegistry(r *schema.Registry) Option {
	return func(s *Store) { s.registry = r }
}

// WithCodec sets the cell codec. Defaults to coerce.DefaultTokens.
func WithCodec(c *coerce.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithCache shares a read cache. Defaults to a private cache with
// cache.DefaultTTL.
func WithCache(c *cache.Cache[Snapshot]) Option {
	return func(s *Store) { s.cache = c }
}

// WithJournal records every mutation in j.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store for resource.
func New(client *sheet.Client, resource string, opts ...Option) *Store {
	s := &Store{
		client:   client,
		resource: resource,
		readErrs: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = schema.Builtin()
	}
	if s.codec == nil {
		s.codec = coerce.NewCodec(coerce.DefaultTokens)
	}
	if s.cache == nil {
		s.cache = cache.New[Snapshot](cache.DefaultTTL, nil)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Resource returns the resource name.
func (s *Store) Resource() string { return s.resource }

// Codec returns the cell codec.
func (s *Store) Codec() *coerce.Codec { return s.codec }

// Registry returns the worksheet layouts.
func (s *Store) Registry() *schema.Registry { return s.registry }

// Ensure creates a declared worksheet with its header if it is missing.
func (s *Store) Ensure(ctx context.Context, ws string) (bool, error) {
	w, ok := s.registry.Lookup(ws)
	if !ok {
		return false, sheet.NewSchemaMismatch("ensure", ws, "no declared layout")
	}
	_, created, err := s.client.Ensure(ctx, s.resource, ws, w.Header())
	if err != nil {
		return false, err
	}
	if created {
		s.cache.InvalidateAll()
	}
	return created, nil
}

// ReadAll returns every data row of ws. It never fails: on error it logs,
// returns an empty slice and keeps the error for LastReadError.
func (s *Store) ReadAll(ctx context.Context, ws string) []Row {
	rows, err := s.Load(ctx, ws)

	s.mx.Lock()
	if err != nil {
		s.readErrs[ws] = err
	} else {
		delete(s.readErrs, ws)
	}
	s.mx.Unlock()

	if err != nil {
		s.logger.Warn("read failed, showing no rows", "worksheet", ws, "error", err)
		return []Row{}
	}
	return rows
}

// LastReadError returns the error of the most recent failed ReadAll of ws,
// or nil if the last ReadAll succeeded.
func (s *Store) LastReadError(ws string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.readErrs[ws]
}

// Load returns every data row of ws, or the read error.
func (s *Store) Load(ctx context.Context, ws string) ([]Row, error) {
	snap, err := s.snapshot(ctx, ws)
	if err != nil {
		return nil, err
	}
	return cloneRows(snap.Rows), nil
}

// Tail returns the last k rows of ws with their snapshot indices.
func (s *Store) Tail(ctx context.Context, ws string, k int) ([]Row, error) {
	snap, err := s.snapshot(ctx, ws)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Row{}, nil
	}
	start := max(len(snap.Rows)-k, 0)
	return cloneRows(snap.Rows[start:]), nil
}

// Worksheet returns the layout of ws as currently found on the sheet.
func (s *Store) Worksheet(ctx context.Context, ws string) (schema.Worksheet, error) {
	snap, err := s.snapshot(ctx, ws)
	if err != nil {
		return schema.Worksheet{}, err
	}
	return snap.Worksheet, nil
}

// Append writes rec after the last row. Every key of rec must be a column
// of the current header; columns missing from rec are written empty. A
// record with no values is rejected. A declared worksheet with no header
// row gets its declared header written first.
func (s *Store) Append(ctx context.Context, ws string, rec Record) error {
	snap, err := s.snapshot(ctx, ws)
	if err != nil {
		return err
	}
	cells, err := s.encode("append", snap.Worksheet, rec)
	if err != nil {
		return err
	}
	if blankRow(cells) {
		return sheet.NewSchemaMismatch("append", ws, "record has no values")
	}

	h, err := s.client.Open(ctx, s.resource, ws)
	if err != nil {
		return err
	}
	if snap.headerless {
		err = h.ReplaceAll(ctx, snap.Worksheet.Header(), [][]string{cells})
	} else {
		err = h.Append(ctx, cells)
	}
	if err != nil {
		return err
	}

	s.written(ctx, journal.Entry{
		Worksheet: ws,
		Kind:      journal.KindAppend,
		RowIndex:  journal.NoIndex,
		Cells:     [][]string{cells},
	})
	return nil
}

// ReplaceAll clears ws and writes header and recs. If the write fails after
// the worksheet changed, the error is a sheet PartialWrite.
func (s *Store) ReplaceAll(ctx context.Context, ws string, header []string, recs []Record) error {
	if err := checkHeader("replace", ws, header); err != nil {
		return err
	}
	w := s.registry.Resolve(ws, header)

	data := make([][]string, len(recs))
	for i, rec := range recs {
		cells, err := s.encode("replace", w, rec)
		if err != nil {
			var se *sheet.Error
			if errors.As(err, &se) {
				se.Message = fmt.Sprintf("record %d: %s", i, se.Message)
			}
			return err
		}
		data[i] = cells
	}

	h, err := s.client.Open(ctx, s.resource, ws)
	if err != nil {
		return err
	}
	before, err := h.ReadAll(ctx)
	if err != nil {
		return err
	}

	if err := h.ReplaceAll(ctx, header, data); err != nil {
		return s.replaceFailed(ctx, h, before, err)
	}

	s.written(ctx, journal.Entry{
		Worksheet: ws,
		Kind:      journal.KindReplace,
		RowIndex:  journal.NoIndex,
		Cells:     append([][]string{slices.Clone(header)}, data...),
	})
	return nil
}

// replaceFailed decides whether a failed replace left the worksheet changed.
func (s *Store) replaceFailed(ctx context.Context, h *sheet.Handle, before [][]string, cause error) error {
	if sheet.IsPartialWrite(cause) {
		s.cache.InvalidateAll()
		return cause
	}
	after, err := h.ReadAll(ctx)
	if err == nil && equalRows(before, after) {
		return cause
	}
	s.cache.InvalidateAll()
	s.logger.Error("replace left worksheet modified", "worksheet", h.Worksheet, "error", cause)
	return sheet.NewPartialWrite("replace", h.Worksheet, cause)
}

// UpdateByIndex overwrites the row at a snapshot index with rec.
func (s *Store) UpdateByIndex(ctx context.Context, ws string, index int, rec Record) error {
	snap, err := s.snapshot(ctx, ws)
	if err != nil {
		return err
	}
	cells, err := s.encode("update", snap.Worksheet, rec)
	if err != nil {
		return err
	}

	h, err := s.client.Open(ctx, s.resource, ws)
	if err != nil {
		return err
	}
	if err := h.UpdateRow(ctx, index, cells); err != nil {
		return err
	}

	s.written(ctx, journal.Entry{
		Worksheet: ws,
		Kind:      journal.KindUpdate,
		RowIndex:  index,
		Cells:     [][]string{cells},
		Patch:     PatchFrom(ctx),
	})
	return nil
}

// DeleteByIndex removes the row at a snapshot index. Later rows shift up.
func (s *Store) DeleteByIndex(ctx context.Context, ws string, index int) error {
	snap, err := s.snapshot(ctx, ws)
	if err != nil {
		return err
	}

	h, err := s.client.Open(ctx, s.resource, ws)
	if err != nil {
		return err
	}
	if err := h.DeleteRow(ctx, index); err != nil {
		return err
	}

	// keep the removed cells so the journal can restore them
	var removed [][]string
	if index >= 0 && index < len(snap.Rows) {
		if cells, err := s.encode("delete", snap.Worksheet, snap.Rows[index].Record); err == nil {
			removed = [][]string{cells}
		}
	}
	s.written(ctx, journal.Entry{
		Worksheet: ws,
		Kind:      journal.KindDelete,
		RowIndex:  index,
		Cells:     removed,
	})
	return nil
}

// Encode renders rec as cells in w's column order.
func (s *Store) Encode(w schema.Worksheet, rec Record) ([]string, error) {
	return s.encode("encode", w, rec)
}

// Decode parses text fields into a record using w's column kinds.
func (s *Store) Decode(w schema.Worksheet, fields map[string]string) Record {
	rec := make(Record, len(fields))
	for name, raw := range fields {
		rec[name] = s.codec.Parse(raw, w.Kind(name))
	}
	return rec
}

// Text returns the canonical cell text of every column of w in rec.
func (s *Store) Text(w schema.Worksheet, rec Record) map[string]string {
	out := make(map[string]string, len(w.Columns))
	for _, col := range w.Columns {
		if col.Name == "" {
			continue
		}
		out[col.Name] = s.formatCell(rec[col.Name], col.Kind)
	}
	return out
}

func (s *Store) snapshot(ctx context.Context, ws string) (Snapshot, error) {
	return s.cache.GetOrFetch(ctx, ws, func(ctx context.Context) (Snapshot, error) {
		h, err := s.client.Open(ctx, s.resource, ws)
		if err != nil {
			return Snapshot{}, err
		}
		raw, err := h.ReadAll(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		snap, err := s.decodeSheet(ws, raw)
		if err != nil {
			return Snapshot{}, err
		}
		s.logger.Debug("worksheet fetched", "worksheet", ws, "rows", len(snap.Rows))
		return snap, nil
	})
}

func (s *Store) decodeSheet(ws string, raw [][]string) (Snapshot, error) {
	// an empty worksheet takes its declared layout, if any
	if len(raw) == 0 || (len(raw) == 1 && blankRow(raw[0])) {
		return Snapshot{Worksheet: s.registry.Resolve(ws, nil), Rows: []Row{}, headerless: true}, nil
	}
	header := raw[0]
	if err := checkDuplicates("read", ws, header); err != nil {
		return Snapshot{}, err
	}
	w := s.registry.Resolve(ws, header)

	rows := []Row{}
	if len(raw) > 1 {
		rows = make([]Row, 0, len(raw)-1)
		for i, cells := range raw[1:] {
			rows = append(rows, Row{Index: i, Record: s.decodeRow(w, cells)})
		}
	}
	return Snapshot{Worksheet: w, Rows: rows}, nil
}

// decodeRow pads short rows with empty text and ignores cells past the header.
func (s *Store) decodeRow(w schema.Worksheet, cells []string) Record {
	rec := make(Record, len(w.Columns))
	for i, col := range w.Columns {
		if col.Name == "" {
			continue
		}
		raw := ""
		if i < len(cells) {
			raw = cells[i]
		}
		rec[col.Name] = s.codec.Parse(raw, col.Kind)
	}
	return rec
}

func (s *Store) encode(op string, w schema.Worksheet, rec Record) ([]string, error) {
	var unknown []string
	for name := range rec {
		if name == "" || !w.Has(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, sheet.NewSchemaMismatch(op, w.Name,
			fmt.Sprintf("columns not in header: %s", strings.Join(unknown, ", ")))
	}

	cells := make([]string, len(w.Columns))
	for i, col := range w.Columns {
		if v, ok := rec[col.Name]; ok && col.Name != "" {
			cells[i] = s.formatCell(v, col.Kind)
		}
	}
	return cells, nil
}

// formatCell renders v for a column of kind. Values of another kind are
// re-read as that kind when they can be.
func (s *Store) formatCell(v coerce.Value, kind coerce.Kind) string {
	text := s.codec.Format(v)
	if v.Valid && v.Kind != kind {
		return s.codec.Normalize(text, kind)
	}
	return text
}

// written invalidates the cache and journals e.
func (s *Store) written(ctx context.Context, e journal.Entry) {
	s.cache.InvalidateAll()
	s.logger.Debug("worksheet written", "worksheet", e.Worksheet, "kind", e.Kind, "index", e.RowIndex)

	if s.journal == nil {
		return
	}
	e.OperationID = OperationFrom(ctx)
	if _, err := s.journal.Record(ctx, e); err != nil {
		s.logger.Error("journal write failed", "worksheet", e.Worksheet, "kind", e.Kind, "error", err)
	}
}

func checkHeader(op, ws string, header []string) error {
	if len(header) == 0 {
		return sheet.NewSchemaMismatch(op, ws, "header cannot be empty")
	}
	for i, name := range header {
		if name == "" {
			return sheet.NewSchemaMismatch(op, ws, fmt.Sprintf("header column %d is blank", i+1))
		}
	}
	return checkDuplicates(op, ws, header)
}

func checkDuplicates(op, ws string, header []string) error {
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if name == "" {
			continue
		}
		if seen[name] {
			return sheet.NewSchemaMismatch(op, ws, fmt.Sprintf("duplicate header column %q", name))
		}
		seen[name] = true
	}
	return nil
}

func blankRow(cells []string) bool {
	return !slices.ContainsFunc(cells, func(c string) bool { return c != "" })
}

func equalRows(a, b [][]string) bool {
	return slices.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) })
}

type patchKey struct{}

// WithPatch attaches a JSON patch describing the next update, for the journal.
func WithPatch(ctx context.Context, patch json.RawMessage) context.Context {
	return context.WithValue(ctx, patchKey{}, patch)
}

// PatchFrom returns the patch set by WithPatch.
func PatchFrom(ctx context.Context) json.RawMessage {
	p, _ := ctx.Value(patchKey{}).(json.RawMessage)
	return p
}
