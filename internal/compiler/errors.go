package compiler

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a scene that cannot be turned into ir values.
type CompileError struct {
	// Entry locates the list element, e.g. "layers[2]". Empty for
	// scene-level errors and for entries compiled on their own.
	Entry string

	// Field is the offending field inside the entry.
	Field string

	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	field := e.Field
	if e.Entry != "" {
		field = e.Entry + "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), field, e.Message)
	}
	return fmt.Sprintf("%s: %s", field, e.Message)
}

// inEntry tags err with the list element it came from, once.
func inEntry(err error, list string, index int) error {
	var ce *CompileError
	if errors.As(err, &ce) && ce.Entry == "" {
		ce.Entry = fmt.Sprintf("%s[%d]", list, index)
	}
	return err
}

// formatCUEError turns a CUE evaluation error into a CompileError naming the
// CUE path of the first failure. Further failures are only counted.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	format, args := first.Msg()
	ce := &CompileError{
		Field:   strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if ce.Field == "" {
		ce.Field = "cue"
	}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		ce.Pos = pos[0]
	}
	if len(errs) > 1 {
		ce.Message += fmt.Sprintf(" (and %d more)", len(errs)-1)
	}
	return ce
}
