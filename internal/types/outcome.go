package types

// FailureReason classifies why a best-effort stage produced no value.
type FailureReason string

const (
	FailureNone            FailureReason = ""
	FailureTimeout         FailureReason = "timeout"
	FailureUpstream        FailureReason = "upstream_error"
	FailureBudgetExhausted FailureReason = "budget_exhausted"
	FailureDisabled        FailureReason = "disabled"
	FailureEmptyResult     FailureReason = "empty_result"
)

// Outcome carries either a value or a classified failure for stages that
// must never abort a request.
type Outcome[T any] struct {
	Value  T
	Reason FailureReason
	Err    error
}

// Succeeded wraps a value.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// FailedWith wraps a failure. The value is the zero value of T unless set by the caller.
func FailedWith[T any](v T, reason FailureReason, err error) Outcome[T] {
	return Outcome[T]{Value: v, Reason: reason, Err: err}
}

// Failed reports whether the stage ended with a failure reason.
func (o Outcome[T]) Failed() bool {
	return o.Reason != FailureNone
}
