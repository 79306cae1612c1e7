// Package coerce converts raw spreadsheet text cells into typed values.
//
// Coercion never fails. A cell that cannot be interpreted as the requested
// kind yields a Value with Valid == false that still carries the raw text,
// so aggregations can skip it and write-back can preserve it.
//
// # Canonical text
//
//   - date:  YYYY-MM-DD
//   - time:  HH:MM
//   - bool:  the configured affirmative/negative token pair
//   - int:   base-10 digits
//   - float: shortest decimal representation
//
// Input is NFC-normalized and full-width characters are folded before
// parsing, so mixed-locale sheets round-trip to the same canonical form.
package coerce
