// Package executor runs generated geometry programs inside an embedded Go
// interpreter. Each run gets a fresh interpreter whose only importable
// packages are the csg kernel and math; nothing from the host process is
// reachable.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"reflect"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"shape-studio/tools/csg"
	"shape-studio/tools/logger"
)

// EntryPoint is the function every program must define
const EntryPoint = "create_object"

// ErrDefinesMain rejects programs that declare func main in package main.
// The interpreter would run it while evaluating the source.
var ErrDefinesMain = errors.New("program declares func main; only the entry point is called")

// Options configures an Executor
type Options struct {
	EntryPoints   []string      // names tried in order, default [create_object]
	MeshCells     int           // grid cells along the longest axis when meshing
	Timeout       time.Duration // bound on one Execute call
	WeldTolerance float64       // vertex weld distance for mesh repair
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		EntryPoints:   []string{EntryPoint},
		MeshCells:     csg.DefaultCells,
		Timeout:       60 * time.Second,
		WeldTolerance: 1e-9,
	}
}

// Executor turns program text into a solid
type Executor struct {
	opts Options
	log  *logger.Logger
}

// New creates an executor. Zero-valued options fall back to defaults.
func New(opts Options, log *logger.Logger) *Executor {
	def := DefaultOptions()
	if len(opts.EntryPoints) == 0 {
		opts.EntryPoints = def.EntryPoints
	}
	if opts.MeshCells <= 0 {
		opts.MeshCells = def.MeshCells
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.WeldTolerance <= 0 {
		opts.WeldTolerance = def.WeldTolerance
	}
	if log == nil {
		log = logger.Default()
	}
	return &Executor{opts: opts, log: log.WithPrefix("executor")}
}

// Execute runs program and returns the solid built by its entry point.
// Failures are *DefinitionError, *ExecutionError or *TypeConflictError, all
// carrying the program text.
func (e *Executor) Execute(ctx context.Context, program string) (*csg.Solid, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	var output bytes.Buffer
	in := interp.New(interp.Options{
		Stdout:               &output,
		Stderr:               &output,
		SourcecodeFilesystem: noSources{},
	})
	if err := in.Use(symbols()); err != nil {
		return nil, fmt.Errorf("failed to load kernel symbols: %w", err)
	}

	if packageName(program) == "main" && declaresMain(program) {
		return nil, &ExecutionError{Program: program, Err: ErrDefinesMain}
	}
	if err := evaluate(ctx, in, program); err != nil {
		return nil, &ExecutionError{Program: program, Output: output.String(), Err: err}
	}

	name, fn, err := e.lookup(ctx, in, program)
	if err != nil {
		return nil, err
	}

	ret, err := call(ctx, fn)
	if output.Len() > 0 {
		e.log.Debug("program output:\n%s", output.String())
	}
	if err != nil {
		return nil, &ExecutionError{Program: program, Output: output.String(), Err: fmt.Errorf("%s(): %w", name, err)}
	}

	shape, err := asShape(ret)
	if err != nil {
		return nil, &TypeConflictError{Program: program, Name: name, Got: err.Error()}
	}
	if err := shape.Err(); err != nil {
		return nil, &ExecutionError{Program: program, Output: output.String(), Err: err}
	}

	solid := &csg.Solid{Shape: shape}
	if shape.IsEmpty() {
		e.log.Warn("%s() returned an empty shape", name)
		solid.Mesh = shape.Mesh(e.opts.MeshCells)
		return solid, nil
	}
	solid.Mesh = shape.Mesh(e.opts.MeshCells).Repair(e.opts.WeldTolerance)
	if err := solid.Mesh.Validate(); err != nil {
		return nil, &ExecutionError{Program: program, Err: fmt.Errorf("mesh repair produced an invalid mesh: %w", err)}
	}
	return solid, nil
}

// lookup resolves the first declared entry point that is bound to a
// zero-argument, single-result function
func (e *Executor) lookup(ctx context.Context, in *interp.Interpreter, program string) (string, reflect.Value, error) {
	pkg := packageName(program)
	def := &DefinitionError{Program: program, Name: e.opts.EntryPoints[0]}
	for _, name := range e.opts.EntryPoints {
		ref := name
		if pkg != "main" {
			ref = pkg + "." + name
		}
		v, err := in.EvalWithContext(ctx, ref)
		if err != nil || !v.IsValid() {
			def.Reason = "not bound"
			continue
		}
		if v.Kind() != reflect.Func {
			def.Name, def.Reason = name, fmt.Sprintf("bound to a %s, not a function", v.Kind())
			continue
		}
		if t := v.Type(); t.NumIn() != 0 || t.NumOut() != 1 {
			def.Name, def.Reason = name, fmt.Sprintf("has signature %s, want func() *csg.Shape", t)
			continue
		}
		if name != e.opts.EntryPoints[0] {
			e.log.Warn("using fallback entry point %s()", name)
		}
		return name, v, nil
	}
	return "", reflect.Value{}, def
}

func evaluate(ctx context.Context, in *interp.Interpreter, program string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = in.EvalWithContext(ctx, program)
	return err
}

// call invokes fn, converting panics into errors and giving up when ctx
// expires. An abandoned call keeps running in its goroutine; its result
// is dropped.
func call(ctx context.Context, fn reflect.Value) (reflect.Value, error) {
	type result struct {
		value reflect.Value
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out := fn.Call(nil)
		done <- result{value: out[0]}
	}()
	select {
	case <-ctx.Done():
		return reflect.Value{}, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

func asShape(v reflect.Value) (*csg.Shape, error) {
	if !v.IsValid() {
		return nil, errors.New("nothing")
	}
	if (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && v.IsNil() {
		return nil, fmt.Errorf("nil %s", v.Type())
	}
	shape, ok := v.Interface().(*csg.Shape)
	if !ok {
		return nil, fmt.Errorf("%T", v.Interface())
	}
	return shape, nil
}

// packageName returns the package clause of program, or main when the
// program has none or does not parse
func packageName(program string) string {
	f, err := parser.ParseFile(token.NewFileSet(), "", program, parser.PackageClauseOnly)
	if err != nil || f.Name == nil {
		return "main"
	}
	return f.Name.Name
}

// declaresMain reports whether program has a top-level func main. Programs
// that do not parse are left for the interpreter to report.
func declaresMain(program string) bool {
	f, err := parser.ParseFile(token.NewFileSet(), "", program, parser.SkipObjectResolution)
	if err != nil {
		return false
	}
	for _, decl := range f.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv == nil && fn.Name.Name == "main" {
			return true
		}
	}
	return false
}

// symbols is the complete import surface offered to programs
func symbols() interp.Exports {
	exports := interp.Exports{}
	for path, syms := range csg.Symbols {
		exports[path] = syms
	}
	exports["math/math"] = stdlib.Symbols["math/math"]
	return exports
}

// noSources refuses every source lookup so programs cannot import packages
// from disk
type noSources struct{}

func (noSources) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
