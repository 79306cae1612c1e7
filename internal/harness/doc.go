// Package harness runs scripted logbook scenarios against a real store.
//
// A scenario drives records.Store and the reconciler through a list of
// steps, then checks the final worksheets, the journal and the feeding
// totals. Runs are deterministic: journal ids, operation ids and
// timestamps come from testutil, so a run can be compared against a
// golden file.
//
// # Scenario Format
//
//	name: delete_then_edit
//	description: "Deleting a row shifts later edits down"
//	backend: memory            # or workbook (xlsx files in the run dir)
//	setup:
//	  - op: append
//	    worksheet: Feeding
//	    fields: { Date: "2024-01-01", Amount: "100" }
//	flow:
//	  - op: reconcile
//	    worksheet: Feeding
//	    last: 3
//	    delete: [1]
//	    set:
//	      - index: 2
//	        fields: { Amount: "120" }
//	    expect:
//	      deleted: [1]
//	      updated: [2]
//	assertions:
//	  - type: row_count
//	    worksheet: Feeding
//	    count: 2
//	  - type: journal_order
//	    kinds: [append, delete, update]
//
// Setup steps must succeed. Flow steps are checked against their expect
// clause; a flow step without one must succeed.
//
// # Assertion Types
//
//   - sheet_rows: the data rows of a worksheet, as canonical cell text
//   - row_count: the number of data rows of a worksheet
//   - journal_count: how many entries of a kind were journaled
//   - journal_order: journal kinds appear in this order, gaps allowed
//   - feeding_totals: daily feeding sums keyed by date
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
package harness
