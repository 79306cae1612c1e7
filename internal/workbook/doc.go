// Package workbook implements sheet.Backend on top of an .xlsx workbook.
//
// The workbook is held in a Blob (a local file or an S3 object). Every call
// loads the current workbook, applies one change with excelize and saves the
// whole workbook back in a single write, so each operation, including
// ReplaceAll, is all-or-nothing from the caller's point of view.
//
// Cells are written as text; typing is the job of the coerce package.
package workbook
