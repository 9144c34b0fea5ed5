// Package pipeline contains the pure business logic for pipeline tasks.
// This is part of the Functional Core - no I/O, only data and pure functions.
package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle state of a pipeline task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further stage may run for a task in this status.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StageStatus is the recorded outcome of one stage execution.
type StageStatus string

const (
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "success"
	StageFailed    StageStatus = "failed"
)

var (
	// ErrAcquisitionExhausted is returned when no creator yields an unprocessed item.
	ErrAcquisitionExhausted = errors.New("acquisition exhausted: no unprocessed content found for any creator")

	// ErrTaskAlreadyRunning is returned when a task already has an in-flight execution.
	ErrTaskAlreadyRunning = errors.New("task is already running")

	// ErrInvalidTransition marks a rejected task status change.
	ErrInvalidTransition = errors.New("invalid transition")
)

// StageFailure describes a stage that failed during execution.
type StageFailure struct {
	Stage string
	Err   error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// StatusTransitionResult captures the new status and the completion timestamp
// that accompanies terminal statuses.
type StatusTransitionResult struct {
	NewStatus   TaskStatus
	CompletedAt *time.Time
}

// ApplyStatusTransition applies a status change and returns its side effects.
// Terminal statuses stamp CompletedAt with now.
func ApplyStatusTransition(newStatus TaskStatus, now time.Time) StatusTransitionResult {
	result := StatusTransitionResult{NewStatus: newStatus}
	if newStatus.IsTerminal() {
		result.CompletedAt = &now
	}
	return result
}

// InitialStatus returns the status of a freshly created task.
func InitialStatus() TaskStatus {
	return StatusPending
}
