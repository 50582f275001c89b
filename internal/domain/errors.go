package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	ErrEmptyBatch            = fmt.Errorf("%w: batch must include at least one unit", ErrValidation)
	ErrNoRecipients          = errors.New("unit has no eligible recipients")
	ErrMissingSourceDocument = errors.New("source document is missing")
	ErrUnitBusy              = errors.New("unit is being processed by another task")
	ErrEnqueueFailed         = errors.New("unit task could not be enqueued")
)

// TaskErrorKind classifies a unit task failure.
type TaskErrorKind string

const (
	TaskErrorTransientRender     TaskErrorKind = "TRANSIENT_RENDER_FAILURE"
	TaskErrorTransientStorage    TaskErrorKind = "TRANSIENT_STORAGE_FAILURE"
	TaskErrorNoRecipients        TaskErrorKind = "NON_TRANSIENT_NO_RECIPIENTS"
	TaskErrorMissingSource       TaskErrorKind = "NON_TRANSIENT_MISSING_SOURCE"
	TaskErrorNotificationFailure TaskErrorKind = "NOTIFICATION_SEND_FAILURE"
)

func (k TaskErrorKind) String() string { return string(k) }

// TaskError is the classified failure of one unit task attempt.
type TaskError struct {
	Kind      TaskErrorKind
	Message   string
	Transient bool
	Cause     error
}

func (e *TaskError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, strings.ToLower(e.Kind.String()))
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *TaskError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewRenderFailure(message string, cause error) *TaskError {
	return &TaskError{Kind: TaskErrorTransientRender, Message: message, Transient: true, Cause: cause}
}

func NewStorageFailure(message string, cause error) *TaskError {
	return &TaskError{Kind: TaskErrorTransientStorage, Message: message, Transient: true, Cause: cause}
}

func NewNoRecipients(unitID string) *TaskError {
	return &TaskError{
		Kind:    TaskErrorNoRecipients,
		Message: fmt.Sprintf("unit %s", unitID),
		Cause:   ErrNoRecipients,
	}
}

func NewMissingSource(message string) *TaskError {
	return &TaskError{Kind: TaskErrorMissingSource, Message: message, Cause: ErrMissingSourceDocument}
}

// NewNotificationFailure reports that no recipient could be reached. transient is false when
// every recipient was rejected permanently.
func NewNotificationFailure(message string, transient bool, cause error) *TaskError {
	return &TaskError{Kind: TaskErrorNotificationFailure, Message: message, Transient: transient, Cause: cause}
}

// IsNonTransient reports whether retrying err cannot succeed.
func IsNonTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoRecipients) || errors.Is(err, ErrMissingSourceDocument) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return !taskErr.Transient
	}

	return false
}

// FailureReason returns a short label for a failed task, used in the ledger.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Kind.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "ATTEMPT_TIMEOUT"
	}
	if errors.Is(err, ErrUnitBusy) {
		return "UNIT_BUSY"
	}
	if errors.Is(err, ErrEnqueueFailed) {
		return "ENQUEUE_FAILURE"
	}
	return "UNKNOWN"
}
