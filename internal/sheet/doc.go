// Package sheet is the client side of a row-oriented remote tabular store.
//
// A Backend speaks to one resource (a spreadsheet or workbook) and exposes
// worksheets as header + data rows of text cells. The Client wraps a
// Backend obtained from a shared Connection and adds the failure policy:
//
//   - RateLimited is retried with exponential backoff (base delay doubling
//     each attempt) up to RetryPolicy.MaxAttempts; exhaustion surfaces
//     Unavailable wrapping the last cause.
//   - NotFound, SchemaMismatch and PartialWrite are returned immediately.
//   - Unclassified backend errors are reported as Unavailable.
//
// # Row indices
//
// Data-row indices are zero-based positions in the data-row sequence as
// last read. Physical sheet row = index + HeaderRows + 1 (1-based). An index
// is only meaningful until the next write to the same worksheet; nothing in
// this package detects a stale index.
package sheet
