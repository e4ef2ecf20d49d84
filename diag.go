// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package prepack

import "fmt"

// Location is a 1-based line/column source position. The string front
// end reports line 1 with the column counting bytes from the start of
// the expression.
type Location struct {
	Line int
	Col  int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

// Diagnostic codes for compile-time soundness doubts.
const (
	CodeUnknownConversion = "PP0002" // operand may have unknown valueOf/toString
	CodeNotAnObject       = "PP0003" // in/instanceof right operand may not be an object
	CodeBadObjectBehavior = "PP0004" // in/instanceof right operand may trap
)

// Severity of a diagnostic.
type Severity byte

const (
	// RecoverableError marks a soundness doubt the policy may resolve
	// by assuming best-case behavior.
	RecoverableError Severity = iota
)

func (s Severity) String() string {
	return "RecoverableError"
}

// Diagnostic is a compile-time soundness doubt raised by the purity
// analyzer. Loc points at the operand whose analysis failed and may be
// nil.
type Diagnostic struct {
	Code     string
	Message  string
	Loc      *Location
	Severity Severity
}

func (d Diagnostic) String() string {
	if d.Loc != nil {
		return fmt.Sprintf("%s at %s: %s", d.Code, d.Loc, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Outcome is the diagnostic policy's decision. Recover means the caller
// substitutes the documented conservative assumption and continues;
// every other outcome aborts the compilation unit.
type Outcome byte

const (
	Recover Outcome = iota
	Abort
)

// ErrorHandler is the host's diagnostic policy.
type ErrorHandler interface {
	HandleError(d Diagnostic) Outcome
}

// HandlerFunc adapts a function to ErrorHandler.
type HandlerFunc func(d Diagnostic) Outcome

func (f HandlerFunc) HandleError(d Diagnostic) Outcome { return f(d) }

// FatalError aborts the surrounding compilation unit. It is returned
// when the diagnostic policy declines to recover; no partial value
// accompanies it.
type FatalError struct {
	Diag Diagnostic
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Diag.String()
}

// ThrowError is a target-language throw completion: an exception the
// evaluated program itself raises at run time. It travels on a channel
// distinct from compiler diagnostics and is never recoverable by the
// diagnostic policy.
type ThrowError struct {
	Value Value
	Loc   *Location
}

func (e *ThrowError) Error() string {
	if e.Loc != nil {
		return fmt.Sprintf("Uncaught %s (at %s)", e.Value, e.Loc)
	}
	return "Uncaught " + e.Value.String()
}

func throwTypeError(loc *Location, format string, args ...interface{}) error {
	return &ThrowError{
		Value: String("TypeError: " + fmt.Sprintf(format, args...)),
		Loc:   loc,
	}
}

// Context carries the ambient collaborators for an evaluation.
type Context struct {
	UserData any
	Handler  ErrorHandler
	Resolver Resolver
}

// escalate routes a soundness doubt through the diagnostic policy. A
// Recover outcome returns nil and the caller applies its documented
// conservative assumption; anything else (including a missing handler)
// aborts the compilation unit.
func escalate(ctx *Context, code, msg string, loc *Location) error {
	d := Diagnostic{Code: code, Message: msg, Loc: loc, Severity: RecoverableError}
	if ctx != nil && ctx.Handler != nil && ctx.Handler.HandleError(d) == Recover {
		return nil
	}
	return &FatalError{Diag: d}
}
