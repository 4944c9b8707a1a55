// Package formula compiles and evaluates the row-level expressions used by the
// pipeline operators: derived fields, filter predicates and cell aggregations.
//
// An expression is parsed once into a tree and evaluated against any number of
// rows. Compilation failures are reported as *SyntaxError; failures that depend
// on row data, such as dividing by zero, are reported per row as *EvalError.
package formula

import "fmt"

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Source string
	Pos    int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula %q: syntax error at %d: %s", e.Source, e.Pos, e.Msg)
}

// EvalError reports a failure evaluating an expression against one row.
type EvalError struct {
	Source string
	Msg    string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("formula %q: %s", e.Source, e.Msg)
}
