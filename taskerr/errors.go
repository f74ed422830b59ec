// Package taskerr implements the tagged error model shared by the parser,
// evaluator, task executor, and dispatcher. It is grounded on
// original_source/src/system/errors.py's TaskError/reason-code taxonomy,
// adapted to Go's explicit-error-return idiom instead of exceptions.
package taskerr

import "fmt"

// Kind is the top-level error taxonomy from spec.md §7.
type Kind string

const (
	KindSyntax           Kind = "SyntaxError"
	KindUnboundSymbol     Kind = "UnboundSymbol"
	KindArityMismatch     Kind = "ArityMismatch"
	KindType              Kind = "TypeError"
	KindTaskFailure       Kind = "TaskFailure"
	KindToolExecution     Kind = "ToolExecutionError"
)

// Reason enumerates the fixed set of TaskFailure reason codes from spec.md §7.
type Reason string

const (
	ReasonContextRetrievalFailure Reason = "context_retrieval_failure"
	ReasonInputValidationFailure  Reason = "input_validation_failure"
	ReasonTemplateNotFound        Reason = "template_not_found"
	ReasonSubtaskFailure          Reason = "subtask_failure"
	ReasonExecutionTimeout        Reason = "execution_timeout"
	ReasonOutputFormatFailure     Reason = "output_format_failure"
	ReasonUnexpectedError         Reason = "unexpected_error"
)

// Error is the structured error value carried through evaluation. Every
// error records the offending expression (its printed form) and optional
// structured details, matching spec.md §3's "Error kinds" contract.
type Error struct {
	Kind    Kind
	Reason  Reason // only meaningful when Kind == KindTaskFailure
	Message string
	Expr    string         // offending expression, printed form; may be empty
	Details map[string]any // optional structured details

	// Iteration and Phase are set by director-evaluator-loop / iterative-loop
	// when an error propagates out of a phase call, per spec.md §7's
	// propagation policy ("loop constructs additionally annotate the error
	// with the iteration number and the failing phase").
	Iteration int
	Phase     string
}

func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s: %s (phase=%s iteration=%d)", e.Kind, e.Message, e.Phase, e.Iteration)
	}
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Kind, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithIteration returns a copy of e annotated with loop iteration/phase
// context, used by director-evaluator-loop and iterative-loop when a phase
// call fails (spec.md §7).
func (e *Error) WithIteration(phase string, iteration int) *Error {
	cp := *e
	cp.Phase = phase
	cp.Iteration = iteration
	return &cp
}

func newErr(kind Kind, expr, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Expr: expr}
}

func Syntax(expr, format string, args ...any) *Error {
	return newErr(KindSyntax, expr, format, args...)
}

func UnboundSymbol(expr, name string) *Error {
	return newErr(KindUnboundSymbol, expr, "unbound symbol: %s", name)
}

func ArityMismatch(expr, format string, args ...any) *Error {
	return newErr(KindArityMismatch, expr, format, args...)
}

func TypeError(expr, format string, args ...any) *Error {
	return newErr(KindType, expr, format, args...)
}

func ToolExecution(expr, format string, args ...any) *Error {
	return newErr(KindToolExecution, expr, format, args...)
}

// TaskFailure builds a TaskFailure error with the given reason code, matching
// original_source's create_task_failure.
func TaskFailure(expr string, reason Reason, format string, args ...any) *Error {
	return &Error{
		Kind:    KindTaskFailure,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
		Expr:    expr,
	}
}

// WithDetails attaches structured details and returns e for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// ToDict renders the error the way original_source's TaskError.to_dict does,
// for embedding under TaskResult.Notes["error"].
func (e *Error) ToDict() map[string]any {
	result := map[string]any{
		"type":    string(e.Kind),
		"message": e.Message,
	}
	if e.Reason != "" {
		result["reason"] = string(e.Reason)
	}
	if e.Details != nil {
		result["details"] = e.Details
	}
	return result
}

// AsError converts any error into a *Error, wrapping non-taskerr errors as
// an unexpected TaskFailure the way the dispatcher's outer boundary does
// (spec.md §7: "the dispatcher ... never raises; it converts all exceptions
// into TaskFailure(reason=unexpected_error)").
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*Error); ok {
		return te
	}
	return TaskFailure("", ReasonUnexpectedError, "%s", err.Error())
}
