package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/petlog/internal/coerce"
)

func TestBuiltin_Worksheets(t *testing.T) {
	reg := Builtin()

	assert.Equal(t, []string{"Feeding", "TaskLogs", "Tasks", "Training"}, reg.Names())

	feeding, ok := reg.Lookup(Feeding)
	require.True(t, ok)
	assert.Equal(t, []string{"Date", "Time", "Type", "Amount", "Finished", "Notes"}, feeding.Header())
	assert.Equal(t, coerce.KindDate, feeding.Kind("Date"))
	assert.Equal(t, coerce.KindTime, feeding.Kind("Time"))
	assert.Equal(t, coerce.KindFloat, feeding.Kind("Amount"))
	assert.Equal(t, coerce.KindBool, feeding.Kind("Finished"))
	assert.Equal(t, coerce.KindString, feeding.Kind("Notes"))

	training, ok := reg.Lookup(Training)
	require.True(t, ok)
	assert.Equal(t, []string{"Date", "Duration", "StressLevel", "Notes"}, training.Header())

	tasks, ok := reg.Lookup(Tasks)
	require.True(t, ok)
	assert.Equal(t, []string{"TaskName", "Frequency", "Description", "Status"}, tasks.Header())

	logs, ok := reg.Lookup(TaskLogs)
	require.True(t, ok)
	assert.Equal(t, coerce.KindInt, logs.Kind("Success"))
}

func TestCompile_ExtraWorksheet(t *testing.T) {
	src := Source{Filename: "walks.cue", Data: []byte(`
worksheets: Walks: columns: [
	{name: "Date", type: "date"},
	{name: "Minutes", type: "int"},
	{name: "Route"},
]
`)}

	reg, err := Compile(src)
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Len())

	walks, ok := reg.Lookup("Walks")
	require.True(t, ok)
	assert.Equal(t, []string{"Date", "Minutes", "Route"}, walks.Header())
	assert.Equal(t, coerce.KindInt, walks.Kind("Minutes"))
}

func TestCompile_RejectsUnknownType(t *testing.T) {
	src := Source{Filename: "bad.cue", Data: []byte(`
worksheets: Bad: columns: [{name: "X", type: "decimal"}]
`)}

	_, err := Compile(src)
	require.Error(t, err)
}

func TestCompile_RejectsConflictingBuiltin(t *testing.T) {
	src := Source{Filename: "conflict.cue", Data: []byte(`
worksheets: Training: columns: [{name: "When", type: "date"}]
`)}

	_, err := Compile(src)
	require.Error(t, err)
}

func TestCompile_RejectsDuplicateColumn(t *testing.T) {
	src := Source{Filename: "dup.cue", Data: []byte(`
worksheets: Dup: columns: [{name: "A"}, {name: "A"}]
`)}

	_, err := Compile(src)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "duplicate column")
}

func TestCompile_SyntaxErrorHasPosition(t *testing.T) {
	src := Source{Filename: "broken.cue", Data: []byte("worksheets: {")}

	_, err := Compile(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vet.cue"), []byte(`
worksheets: VetVisits: columns: [{name: "Date", type: "date"}, {name: "Reason"}]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not cue"), 0644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	_, ok := reg.Lookup("VetVisits")
	assert.True(t, ok)

	reg, err = LoadDir("")
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())
}

func TestResolve_FollowsSheetHeader(t *testing.T) {
	reg := Builtin()

	ws := reg.Resolve(Feeding, []string{"Amount", "Date", "Extra"})
	assert.Equal(t, []string{"Amount", "Date", "Extra"}, ws.Header())
	assert.Equal(t, coerce.KindFloat, ws.Kind("Amount"))
	assert.Equal(t, coerce.KindString, ws.Kind("Extra"))

	unknown := reg.Resolve("Scratch", []string{"A", "B"})
	assert.Equal(t, "Scratch", unknown.Name)
	assert.Equal(t, coerce.KindString, unknown.Kind("A"))
	assert.False(t, unknown.Has("C"))
}
