// Package publish contains the pure business logic for publish records.
// Guards are pure functions that evaluate transitions without side effects.
package publish

import (
	"errors"
	"fmt"
)

// Status is the state of one publish record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ErrInvalidTransition marks a rejected record status change.
var ErrInvalidTransition = errors.New("invalid transition")

// PublishFailure describes an upload error isolated to one record.
type PublishFailure struct {
	PublishID string
	AccountID string
	Err       error
}

func (e *PublishFailure) Error() string {
	return fmt.Sprintf("publish %s to account %s failed: %v", e.PublishID, e.AccountID, e.Err)
}

func (e *PublishFailure) Unwrap() error { return e.Err }

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, r.Reason)
}

// TransitionContext provides context for record transition guards.
type TransitionContext struct {
	PublishID string
	Status    Status
}

// CanStartUpload evaluates whether an upload worker may pick up the record.
// Rules:
// - Status must be pending
func CanStartUpload(ctx TransitionContext) GuardResult {
	if ctx.Status != StatusPending {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only upload pending records (publish %s is %s)", ctx.PublishID, ctx.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// CanFinishUpload evaluates whether an upload outcome may be recorded.
// Rules:
// - Status must be uploading
// - Outcome must be success or failed
func CanFinishUpload(ctx TransitionContext, outcome Status) GuardResult {
	if outcome != StatusSuccess && outcome != StatusFailed {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("upload outcome must be success or failed (got %s)", outcome),
		}
	}
	if ctx.Status != StatusUploading {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only finish uploading records (publish %s is %s)", ctx.PublishID, ctx.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// CanRetry evaluates whether a record can be sent back to pending.
// Rules:
// - Success is terminal
// - Only failed or cancelled records can be retried
func CanRetry(ctx TransitionContext) GuardResult {
	switch ctx.Status {
	case StatusFailed, StatusCancelled:
		return GuardResult{Allowed: true}
	case StatusSuccess:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("publish %s already succeeded and cannot be retried", ctx.PublishID),
		}
	default:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only retry failed or cancelled records (publish %s is %s)", ctx.PublishID, ctx.Status),
		}
	}
}

// CanCancel evaluates whether a record can be cancelled.
// Rules:
// - Status must be pending or uploading (pre-success)
func CanCancel(ctx TransitionContext) GuardResult {
	if ctx.Status != StatusPending && ctx.Status != StatusUploading {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only cancel pending or uploading records (publish %s is %s)", ctx.PublishID, ctx.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// CanTransition reports whether from -> to is an edge of the record state machine.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusUploading || to == StatusCancelled
	case StatusUploading:
		return to == StatusSuccess || to == StatusFailed || to == StatusCancelled
	case StatusFailed, StatusCancelled:
		return to == StatusPending
	default:
		return false
	}
}
