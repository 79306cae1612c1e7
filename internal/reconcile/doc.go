// Package reconcile turns an edited copy of a worksheet snapshot into the
// minimal set of row deletions and updates, and applies them.
//
// Rows are matched by snapshot index. Rows missing from the edited copy are
// deleted, highest index first, so each deletion leaves the indices still to
// be deleted valid. Rows whose canonical text changed are updated.
package reconcile
