// Package logbook holds the typed pet-care entries stored in the four
// built-in worksheets and the series the dashboard charts are drawn from.
//
// Each entry type converts to and from a records.Record. Conversions from a
// record are lenient: unreadable cells become zero values and are reported
// as ValidationErrors, so one bad cell never hides a whole row.
package logbook
