package dispatch

import (
	"errors"
	"fmt"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/envelope"
	"github.com/abshkbh/agentctl/pkg/transport"
)

var (
	// ErrAuthRejected matches every *AuthError.
	ErrAuthRejected = errors.New("access denied by agent")

	// ErrConfirmationRequired is returned when a destructive action is sent
	// through Dispatch instead of DispatchConfirmed.
	ErrConfirmationRequired = errors.New("destructive action requires confirmation")
)

// AuthError is an HTTP 403 from the agent. The body is never decoded.
type AuthError struct {
	Action action.Action
	Token  string
	// Derived tokens go stale at midnight, which is the usual cause.
	Derived bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v for %q", ErrAuthRejected, e.Action)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthRejected
}

// Hint tells the operator what to check.
func (e *AuthError) Hint() string {
	if e.Derived {
		return fmt.Sprintf("check token %s (derived from today's date, the agent may be on a different day)", e.Token)
	}
	return fmt.Sprintf("check token %s", e.Token)
}

// AppError is a well formed response in which the agent reported failure.
type AppError struct {
	Action  action.Action
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Kind names the error class of err for reporting.
func Kind(err error) string {
	var (
		transportErr *transport.Error
		decodeErr    *envelope.DecodeError
		appErr       *AppError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.As(err, &transportErr):
		return "transport_failure"
	case errors.As(err, &decodeErr):
		return "decode_failure"
	case errors.As(err, &appErr):
		return "app_error"
	default:
		return "invalid_request"
	}
}

// Describe renders err for an operator, including the token hint on 403s.
func Describe(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return fmt.Sprintf("%v (%s)", err, authErr.Hint())
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
