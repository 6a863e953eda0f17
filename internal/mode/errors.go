package mode

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed Controller.
var ErrClosed = errors.New("mode controller closed")

// SignInRequiredError is returned by EnableRemote when no account is signed in.
// The controller state is unchanged.
type SignInRequiredError struct{}

func (e *SignInRequiredError) Error() string {
	return "remote sync requires a signed-in account"
}

// RemoteUnavailableError is returned by EnableRemote when the account check
// fails. The controller is back in Local.
type RemoteUnavailableError struct {
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Err == nil {
		return "remote store unavailable"
	}
	return fmt.Sprintf("remote store unavailable: %v", e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}

// IsSignInRequired returns true if err is a SignInRequiredError.
func IsSignInRequired(err error) bool {
	var se *SignInRequiredError
	return errors.As(err, &se)
}

// IsRemoteUnavailable returns true if err is a RemoteUnavailableError.
func IsRemoteUnavailable(err error) bool {
	var re *RemoteUnavailableError
	return errors.As(err, &re)
}

// TaskFailure describes a deferred write that failed on replay.
type TaskFailure struct {
	TaskID string
	Op     string
	Kind   string
	ID     string
	Err    error
}

func (f TaskFailure) Error() string {
	return fmt.Sprintf("deferred %s %s %s (task %s): %v", f.Op, f.Kind, f.ID, f.TaskID, f.Err)
}

func (f TaskFailure) Unwrap() error {
	return f.Err
}
