// Package journal provides an append-only SQLite audit log of store mutations.
//
// Every append, replace, update and delete performed by the record store is
// written here with the cells it sent to the sheet. The journal is what a
// user restores from after a PartialWrite.
//
// # Ordering
//
//   - Entries are ordered by seq INTEGER, never by recorded_at
//   - seq is assigned inside the insert transaction as MAX(seq)+1
//   - All queries use ORDER BY seq ASC
//
// # Identity
//
// Entry ids and operation ids are UUIDv7 strings. Entries written by one
// logical operation (for example a reconcile that deletes two rows and
// updates one) share an operation id.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal
