// Package jherrors provides the judge host's unified error taxonomy.
//
// Most fallible calls across the host return a *JobError rather than a bare
// error, so the Orchestrator and Event Router can branch on Code without
// parsing message strings, and so result envelopes carry a stable,
// machine-readable cause.
package jherrors

import (
	"errors"
	"fmt"
)

// Code is a unique, stable error code (§7).
type Code string

const (
	CodeInvalidInput        Code = "InvalidInput"
	CodeInvalidPackage      Code = "InvalidPackage"
	CodeChecksumMismatch    Code = "ChecksumMismatch"
	CodeAlreadyRegistered   Code = "AlreadyRegistered"
	CodeBuildFailed         Code = "BuildFailed"
	CodeQueueFull           Code = "QueueFull"
	CodeRateLimited         Code = "RateLimited"
	CodeCircularDependency  Code = "CircularDependency"
	CodeDependencyTimeout   Code = "DependencyTimeout"
	CodeHookTimeout         Code = "HookTimeout"
	CodeHookFailed          Code = "HookFailed"
	CodeEvaluationTimeout   Code = "EvaluationTimeout"
	CodeRuntimeError        Code = "RuntimeError"
	CodeTransientNetwork    Code = "TransientNetworkError"
	CodeNotFound            Code = "NotFound"
	CodeInternal            Code = "Internal"
)

// Retryable reports whether the Event Router / Reporter may retry an
// operation that failed with this code, per the §4.2/§4.6 retry policy.
func (c Code) Retryable() bool {
	return c == CodeTransientNetwork
}

// JobError is a structured error carrying a stable Code, a human-readable
// Message, and optional field-level Details, with the underlying cause
// preserved for errors.Is/As.
type JobError struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *JobError) Unwrap() error {
	return e.Err
}

// WithDetails adds a key/value pair to Details and returns the receiver for
// chaining.
func (e *JobError) WithDetails(key string, value any) *JobError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a JobError with no wrapped cause.
func New(code Code, message string) *JobError {
	return &JobError{Code: code, Message: message}
}

// Wrap creates a JobError that preserves err in its chain.
func Wrap(code Code, message string, err error) *JobError {
	return &JobError{Code: code, Message: message, Err: err}
}

// Constructors for the §7 taxonomy.

func InvalidInput(field, reason string) *JobError {
	return New(CodeInvalidInput, "invalid input").WithDetails("field", field).WithDetails("reason", reason)
}

func InvalidPackage(reason string) *JobError {
	return New(CodeInvalidPackage, reason)
}

func ChecksumMismatch(expected, actual string) *JobError {
	return New(CodeChecksumMismatch, "checksum mismatch").
		WithDetails("expected", expected).WithDetails("actual", actual)
}

func AlreadyRegistered(problemID string) *JobError {
	return New(CodeAlreadyRegistered, "problem already registered").WithDetails("problem_id", problemID)
}

func BuildFailed(containerID string, err error) *JobError {
	return Wrap(CodeBuildFailed, "image build failed", err).WithDetails("container_id", containerID)
}

func QueueFull(size int) *JobError {
	return New(CodeQueueFull, "queue is full").WithDetails("size", size)
}

func RateLimited(teamID string, limit int) *JobError {
	return New(CodeRateLimited, "rate limit exceeded").
		WithDetails("team_id", teamID).WithDetails("limit", limit)
}

func CircularDependency(containerID string) *JobError {
	return New(CodeCircularDependency, "circular container dependency").WithDetails("container_id", containerID)
}

func DependencyTimeout(containerID string) *JobError {
	return New(CodeDependencyTimeout, fmt.Sprintf("DependencyTimeout: %s", containerID)).
		WithDetails("container_id", containerID)
}

func HookTimeout(hook string) *JobError {
	return New(CodeHookTimeout, "hook timed out").WithDetails("hook", hook)
}

func HookFailed(hook string, exitCode int, err error) *JobError {
	return Wrap(CodeHookFailed, "hook failed", err).
		WithDetails("hook", hook).WithDetails("exit_code", exitCode)
}

func EvaluationTimeout() *JobError {
	return New(CodeEvaluationTimeout, "evaluation deadline exceeded")
}

func RuntimeError(op string, err error) *JobError {
	return Wrap(CodeRuntimeError, "container runtime error", err).WithDetails("operation", op)
}

func TransientNetworkError(op string, err error) *JobError {
	return Wrap(CodeTransientNetwork, "transient network error", err).WithDetails("operation", op)
}

func NotFound(resource, id string) *JobError {
	return New(CodeNotFound, "resource not found").WithDetails("resource", resource).WithDetails("id", id)
}

func Internal(message string, err error) *JobError {
	return Wrap(CodeInternal, message, err)
}

// Is reports whether err's chain contains a *JobError with the given code.
func Is(err error, code Code) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Code == code
	}
	return false
}

// As extracts a *JobError from err's chain, if present.
func As(err error) (*JobError, bool) {
	var je *JobError
	ok := errors.As(err, &je)
	return je, ok
}
