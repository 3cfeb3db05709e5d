package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors.
var (
	ErrTemplateNotFound   = errors.New("template not found")
	ErrInstanceNotFound   = errors.New("task instance not found")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrDuplicateID        = errors.New("record with this ID already exists")
	ErrInvalidInterval    = errors.New("recurrence interval must be at least 1")
	ErrInvalidCount       = errors.New("occurrence count must be at least 1")
	ErrInvalidUntil       = errors.New("until date is required")
	ErrInvalidWeekday     = errors.New("invalid weekday")
	ErrInvalidMonthDay    = errors.New("invalid day of month")
	ErrInvalidExpression  = errors.New("invalid cron expression")
	ErrUnknownRecurrence  = errors.New("unknown recurrence rule")
	ErrSnoozeLimitReached = errors.New("snooze limit reached")
)

// TransitionError reports a lifecycle transition rejected by its guard.
type TransitionError struct {
	Entity string
	Action string
	From   string
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s: %s", e.Action, e.Entity, e.From, e.Reason)
}

// FieldError is one failed configuration check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult collects configuration errors.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
	r.Valid = false
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Result: r}
}

// ValidationError wraps a failed ValidationResult.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}
