package athenaq

import (
	"errors"
	"fmt"
	"time"

	"github.com/kent-id/athenaq/retry"
)

// RemoteError is a remote call that failed for good: either permanently on the first
// attempt, or transiently until retries ran out. Err is the service error, untouched.
type RemoteError struct {
	Op    string
	Class retry.Class
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("athena %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// QueryExecutionError means the query itself reached FAILED or CANCELLED.
type QueryExecutionError struct {
	ExecutionID string
	State       ExecutionState
	Reason      string
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution %s finished with state %s: %s", e.ExecutionID, e.State, e.Reason)
}

// PollTimeoutError means the query did not reach a terminal state within the polling budget.
type PollTimeoutError struct {
	ExecutionID string
	Elapsed     time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("query execution %s still running after %s", e.ExecutionID, e.Elapsed)
}

// IsTransient reports whether err is a remote failure that exhausted its retries.
func IsTransient(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Class == retry.Transient
}

// IsPermanent reports whether err is a remote failure that was not retried.
func IsPermanent(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Class == retry.Permanent
}
