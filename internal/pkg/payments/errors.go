package payments

import (
	"errors"
	"fmt"
)

// Sentinel errors for the payment subsystem. Callers branch with errors.Is;
// HTTP handlers translate them into user-facing statuses.
var (
	// ErrNotFound means the referenced invitation or subscription does not exist.
	ErrNotFound = errors.New("payments: not found")

	// ErrGone means the invitation exists but is no longer usable
	// (expired, completed or canceled).
	ErrGone = errors.New("payments: gone")

	// ErrAlreadyCanceled means the subscription is in its terminal state.
	ErrAlreadyCanceled = errors.New("payments: subscription already canceled")

	// ErrProviderUnavailable wraps network errors and provider 5xx responses.
	// The caller may retry the whole operation.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
)

// ValidationError reports bad caller input. Not retryable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "payments: validation: " + e.Message
	}
	return fmt.Sprintf("payments: validation: %s: %s", e.Field, e.Message)
}

// PreconditionError reports a state the coach must fix before the operation
// can succeed, with a remediation hint.
type PreconditionError struct {
	Reason string
	Hint   string
}

func (e *PreconditionError) Error() string {
	return "payments: precondition failed: " + e.Reason
}

// ConflictError reports an ownership mismatch. Both ids are carried so the
// authorization failure can be logged for audit.
type ConflictError struct {
	CoachID  uint
	OwnerID  uint
	Resource string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payments: conflict: %s owned by coach %d, requested by coach %d", e.Resource, e.OwnerID, e.CoachID)
}

// ProviderError is a non-retryable 4xx response from the payment provider.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payments: provider error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}
