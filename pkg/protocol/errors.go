package protocol

import "fmt"

// ValidationError reports a missing or malformed required field. It maps to
// a 400 at the HTTP boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("missing required field %s", e.Field)
}

// NotFoundError reports an unknown session, project, or task id. It maps to
// a 404 at the HTTP boundary.
type NotFoundError struct {
	Kind string // "session", "project", "task", "process"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConflictError reports a spawn request for a project that already has a
// live worker process. It maps to a 409 at the HTTP boundary.
type ConflictError struct {
	ProjectName string
	PID         int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("worker already running for project %s (pid %d)", e.ProjectName, e.PID)
}

// TimeoutError reports a pending question that expired without an answer.
type TimeoutError struct {
	QuestionID string
	Timeout    string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("question %s timed out after %s", e.QuestionID, e.Timeout)
}

// SpawnError wraps the underlying OS error from a failed process launch.
type SpawnError struct {
	ProjectName string
	Err         error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn worker for project %s: %v", e.ProjectName, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// BridgeUnavailableError reports a routing attempt while the outward
// channel is disabled.
type BridgeUnavailableError struct {
	Reason string
}

func (e *BridgeUnavailableError) Error() string {
	return fmt.Sprintf("bridge unavailable: %s", e.Reason)
}
