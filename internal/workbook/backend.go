package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/petlog/internal/sheet"
)

// defaultSheet is the placeholder tab of a fresh excelize workbook.
const defaultSheet = "Sheet1"

// Backend is a sheet.Backend over one workbook blob.
type Backend struct {
	blob   Blob
	logger *slog.Logger
	mx     sync.Mutex
}

// New returns a Backend storing its workbook in blob.
func New(blob Blob, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{blob: blob, logger: logger}
}

// Check delegates to the blob when it can verify credentials.
func (b *Backend) Check(ctx context.Context) error {
	if chk, ok := b.blob.(sheet.Checker); ok {
		return chk.Check(ctx)
	}
	return nil
}

func (b *Backend) Worksheets(ctx context.Context) ([]string, error) {
	var names []string
	err := b.view(ctx, func(f *excelize.File) error {
		for _, name := range f.GetSheetList() {
			if name == defaultSheet && isPlaceholder(f) {
				continue
			}
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

func (b *Backend) Create(ctx context.Context, worksheet string, header []string) error {
	return b.mutate(ctx, func(f *excelize.File) error {
		idx, err := f.GetSheetIndex(worksheet)
		if err != nil {
			return err
		}
		if idx >= 0 && !(worksheet == defaultSheet && isPlaceholder(f)) {
			return fmt.Errorf("worksheet %q already exists", worksheet)
		}
		placeholder := isPlaceholder(f)
		if idx < 0 {
			if _, err := f.NewSheet(worksheet); err != nil {
				return fmt.Errorf("create worksheet %q: %w", worksheet, err)
			}
		}
		if err := writeRow(f, worksheet, 1, header); err != nil {
			return err
		}
		if placeholder && worksheet != defaultSheet {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return fmt.Errorf("drop placeholder sheet: %w", err)
			}
		}
		return nil
	})
}

func (b *Backend) ReadAll(ctx context.Context, worksheet string) ([][]string, error) {
	var rows [][]string
	err := b.view(ctx, func(f *excelize.File) error {
		var err error
		rows, err = readRows(f, worksheet, "read")
		return err
	})
	return rows, err
}

// Append writes row below the last non-empty row. An all-empty row is not
// kept, since GetRows trims trailing empty rows.
func (b *Backend) Append(ctx context.Context, worksheet string, row []string) error {
	return b.mutate(ctx, func(f *excelize.File) error {
		rows, err := readRows(f, worksheet, "append")
		if err != nil {
			return err
		}
		return writeRow(f, worksheet, len(rows)+1, row)
	})
}

func (b *Backend) ReplaceAll(ctx context.Context, worksheet string, header []string, data [][]string) error {
	return b.mutate(ctx, func(f *excelize.File) error {
		rows, err := readRows(f, worksheet, "replace")
		if err != nil {
			return err
		}
		for r := len(rows); r >= 1; r-- {
			if err := f.RemoveRow(worksheet, r); err != nil {
				return fmt.Errorf("clear row %d: %w", r, err)
			}
		}
		if err := writeRow(f, worksheet, 1, header); err != nil {
			return err
		}
		for i, row := range data {
			if err := writeRow(f, worksheet, sheet.PhysicalRow(i), row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) UpdateRow(ctx context.Context, worksheet string, index int, row []string) error {
	return b.mutate(ctx, func(f *excelize.File) error {
		rows, err := readRows(f, worksheet, "update")
		if err != nil {
			return err
		}
		pos := index + sheet.HeaderRows
		if pos >= len(rows) {
			return sheet.NewNotFound("update", worksheet, fmt.Sprintf("row %d", index))
		}
		// overwrite stale trailing cells of a longer old row
		padded := row
		if old := len(rows[pos]); old > len(row) {
			padded = make([]string, old)
			copy(padded, row)
		}
		return writeRow(f, worksheet, sheet.PhysicalRow(index), padded)
	})
}

func (b *Backend) DeleteRow(ctx context.Context, worksheet string, index int) error {
	return b.mutate(ctx, func(f *excelize.File) error {
		rows, err := readRows(f, worksheet, "delete")
		if err != nil {
			return err
		}
		if index+sheet.HeaderRows >= len(rows) {
			return sheet.NewNotFound("delete", worksheet, fmt.Sprintf("row %d", index))
		}
		if err := f.RemoveRow(worksheet, sheet.PhysicalRow(index)); err != nil {
			return fmt.Errorf("remove row %d: %w", sheet.PhysicalRow(index), err)
		}
		return nil
	})
}

// view runs fn against the current workbook without saving.
func (b *Backend) view(ctx context.Context, fn func(*excelize.File) error) error {
	b.mx.Lock()
	defer b.mx.Unlock()

	f, err := b.load(ctx)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// mutate runs fn and saves the workbook in one write.
func (b *Backend) mutate(ctx context.Context, fn func(*excelize.File) error) error {
	b.mx.Lock()
	defer b.mx.Unlock()

	f, err := b.load(ctx)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serialize workbook: %w", err)
	}
	if err := b.blob.Save(ctx, buf.Bytes()); err != nil {
		return err
	}
	b.logger.Debug("workbook saved", "location", b.blob.Location(), "bytes", buf.Len())
	return nil
}

func (b *Backend) load(ctx context.Context) (*excelize.File, error) {
	data, err := b.blob.Load(ctx)
	if errors.Is(err, ErrNoBlob) {
		return excelize.NewFile(), nil
	}
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", b.blob.Location(), err)
	}
	return f, nil
}

// readRows returns all rows of worksheet, or NotFound.
func readRows(f *excelize.File, worksheet, op string) ([][]string, error) {
	idx, err := f.GetSheetIndex(worksheet)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, sheet.NewNotFound(op, worksheet, "worksheet")
	}
	rows, err := f.GetRows(worksheet)
	if err != nil {
		return nil, fmt.Errorf("read rows of %q: %w", worksheet, err)
	}
	return rows, nil
}

// writeRow writes cells as text starting at column A of the 1-based row.
func writeRow(f *excelize.File, worksheet string, row int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(worksheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d of %q: %w", row, worksheet, err)
	}
	return nil
}

// isPlaceholder reports whether f still has only the untouched default tab.
func isPlaceholder(f *excelize.File) bool {
	list := f.GetSheetList()
	if len(list) != 1 || list[0] != defaultSheet {
		return false
	}
	rows, err := f.GetRows(defaultSheet)
	return err == nil && len(rows) == 0
}
