// Package records is the typed record store over a worksheet resource.
//
// A Store reads worksheets into rows of coerced values, appends and
// rewrites rows, and addresses single rows by their snapshot index: the
// zero-based position of a data row at the time it was read. An index is
// only meaningful until the next write to the same worksheet; the store does
// not detect stale indices.
//
// Reads go through a TTL cache. Every successful mutation invalidates the
// whole cache and, when a journal is attached, records what was written.
package records
