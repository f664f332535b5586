package dispatch

import "fmt"

// FollowUpCreationError is the fatal outcome of a dispatch: an
// unexpected failure while executing the effect, auditing it, or
// creating the follow-up thought. Validation, authorization, and store
// failures are NOT this error; they are recovered locally and reported
// through the follow-up thought. Callers detect it with errors.As and
// must treat the dispatch's completion contract as unverified.
type FollowUpCreationError struct {
	ThoughtID string
	Cause     error
}

func (e *FollowUpCreationError) Error() string {
	return fmt.Sprintf("dispatch for thought %s failed fatally: %v", e.ThoughtID, e.Cause)
}

func (e *FollowUpCreationError) Unwrap() error { return e.Cause }

// ParameterValidationError reports malformed or incomplete action
// parameters. It is always recovered locally; the type exists so tests
// and logs can name the failure class.
type ParameterValidationError struct {
	Action string
	Cause  error
}

func (e *ParameterValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for %s action: %v", e.Action, e.Cause)
}

func (e *ParameterValidationError) Unwrap() error { return e.Cause }
