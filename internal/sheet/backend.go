package sheet

import "context"

// HeaderRows is the number of header rows above the data rows.
const HeaderRows = 1

// PhysicalRow maps a zero-based data-row index to the 1-based sheet row.
func PhysicalRow(index int) int {
	return index + HeaderRows + 1
}

// Backend is a remote tabular API bound to one resource.
//
// ReadAll returns the header as the first row. Rows may be shorter than the
// header when the store trims trailing empty cells. Data-row indices passed
// to UpdateRow and DeleteRow are zero-based and exclude the header.
type Backend interface {
	Worksheets(ctx context.Context) ([]string, error)
	Create(ctx context.Context, worksheet string, header []string) error
	ReadAll(ctx context.Context, worksheet string) ([][]string, error)
	Append(ctx context.Context, worksheet string, row []string) error
	ReplaceAll(ctx context.Context, worksheet string, header []string, rows [][]string) error
	UpdateRow(ctx context.Context, worksheet string, index int, row []string) error
	DeleteRow(ctx context.Context, worksheet string, index int) error
}

// Checker is implemented by backends that can verify their credentials.
type Checker interface {
	Check(ctx context.Context) error
}
