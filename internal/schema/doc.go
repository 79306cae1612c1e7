// Package schema holds the declared worksheet layouts.
//
// Layouts are written in CUE. The built-in worksheets (Training, Feeding,
// Tasks, TaskLogs) are embedded; additional *.cue files can declare more
// worksheets and are unified with the built-ins, so a file that redeclares a
// built-in with different columns is a conflict rather than an override.
//
// A Worksheet's column order is the wire contract for positional appends.
package schema
