package schema

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/petlog/internal/coerce"
)

//go:embed schemas.cue
var builtinCUE string

// Source is one CUE document contributing worksheet layouts.
type Source struct {
	Filename string
	Data     []byte
}

// CompileError represents a schema error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Builtin returns the registry of embedded worksheets.
// Panics if the embedded document does not compile.
func Builtin() *Registry {
	r, err := Compile()
	if err != nil {
		panic(fmt.Sprintf("schema: embedded worksheets: %v", err))
	}
	return r
}

// Compile unifies the embedded worksheets with extra sources.
func Compile(extra ...Source) (*Registry, error) {
	ctx := cuecontext.New()

	v := ctx.CompileString(builtinCUE, cue.Filename("schemas.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	for _, src := range extra {
		ev := ctx.CompileBytes(src.Data, cue.Filename(src.Filename))
		if err := ev.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		v = v.Unify(ev)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	return compileWorksheets(v)
}

// LoadDir compiles the embedded worksheets plus every *.cue file in dir.
// An empty dir means built-ins only.
func LoadDir(dir string) (*Registry, error) {
	if dir == "" {
		return Compile()
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scan schemas dir: %w", err)
	}
	sort.Strings(paths)

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", p, err)
		}
		sources = append(sources, Source{Filename: p, Data: data})
	}
	return Compile(sources...)
}

func compileWorksheets(v cue.Value) (*Registry, error) {
	reg := &Registry{sheets: make(map[string]Worksheet)}

	wsVal := v.LookupPath(cue.ParsePath("worksheets"))
	if !wsVal.Exists() {
		return reg, nil
	}
	iter, err := wsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ws, err := compileWorksheet(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		reg.sheets[ws.Name] = ws
	}
	return reg, nil
}

func compileWorksheet(name string, v cue.Value) (Worksheet, error) {
	ws := Worksheet{Name: name}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return ws, &CompileError{
			Field:   "worksheets." + name + ".columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}
	colIter, err := colsVal.List()
	if err != nil {
		return ws, formatCUEError(err)
	}
	for colIter.Next() {
		colVal := colIter.Value()

		colName, err := colVal.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return ws, formatCUEError(err)
		}

		typeVal := colVal.LookupPath(cue.ParsePath("type"))
		if def, ok := typeVal.Default(); ok {
			typeVal = def
		}
		typeName, err := typeVal.String()
		if err != nil {
			return ws, formatCUEError(err)
		}
		kind, err := coerce.ParseKind(typeName)
		if err != nil {
			return ws, &CompileError{
				Field:   fmt.Sprintf("worksheets.%s.%s.type", name, colName),
				Message: err.Error(),
				Pos:     typeVal.Pos(),
			}
		}
		ws.Columns = append(ws.Columns, Column{Name: strings.TrimSpace(colName), Kind: kind})
	}

	if err := ws.validate(); err != nil {
		return ws, &CompileError{Field: "worksheets." + name, Message: err.Error(), Pos: v.Pos()}
	}
	return ws, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
