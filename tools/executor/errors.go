package executor

import (
	"errors"
	"fmt"
)

// DefinitionError means the program ran but bound no callable entry point
type DefinitionError struct {
	Program string
	Name    string
	Reason  string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("program does not define a callable %s(): %s", e.Name, e.Reason)
}

// ExecutionError means running the program text, or calling its entry
// point, failed
type ExecutionError struct {
	Program string
	Output  string // captured interpreter stdout/stderr
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("program execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TypeConflictError means the entry point returned something other than a
// shape handle
type TypeConflictError struct {
	Program string
	Name    string
	Got     string
}

func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("%s() must return *csg.Shape, got %s", e.Name, e.Got)
}

// ProgramText returns the offending program carried by any executor error
func ProgramText(err error) (string, bool) {
	var (
		def  *DefinitionError
		exec *ExecutionError
		typ  *TypeConflictError
	)
	switch {
	case errors.As(err, &def):
		return def.Program, true
	case errors.As(err, &exec):
		return exec.Program, true
	case errors.As(err, &typ):
		return typ.Program, true
	}
	return "", false
}
