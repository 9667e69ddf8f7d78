package domain

import (
	"errors"
	"fmt"
	"strings"

	"ncrtrack/pkg/platform/sentinel"
)

// Error taxonomy for the record core. Infrastructure layers return sentinel
// errors; services translate them into these so transports can map each to a
// stable user-visible response.
//
//   - ErrBusy: write lock timed out, retryable.
//   - ErrNotFound: record or table absent. Find-style reads return empty
//     instead of this; it only surfaces when a specific record was addressed.
//   - PermissionDeniedError: names every denied section, not just the first.
//   - ValidationError: names the offending fields and the rule violated.
//   - BackendError: unexpected backend failure, fatal for the call.
var (
	ErrBusy     = fmt.Errorf("system busy, try again in a moment: %w", sentinel.ErrBusy)
	ErrNotFound = fmt.Errorf("record not found: %w", sentinel.ErrNotFound)
)

// PermissionDeniedError aggregates every section the actor may not edit.
// Not retryable without a role change.
type PermissionDeniedError struct {
	Sections []Section
}

func (e *PermissionDeniedError) Error() string {
	names := make([]string, len(e.Sections))
	for i, s := range e.Sections {
		names[i] = string(s)
	}
	return "no edit permission for: " + strings.Join(names, ", ")
}

// Violation is one failed validation rule on one field.
type Violation struct {
	Field string
	Rule  string
}

// ValidationError rejects a submission before any write happens.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Rule
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the distinct field names in violation order.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]bool, len(e.Violations))
	var fields []string
	for _, v := range e.Violations {
		if !seen[v.Field] {
			seen[v.Field] = true
			fields = append(fields, v.Field)
		}
	}
	return fields
}

// BackendError wraps an unexpected backend failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return "backend unavailable during " + e.Op + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller should retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, sentinel.ErrBusy)
}
