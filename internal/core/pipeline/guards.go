package pipeline

import "fmt"

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

// StatusContext provides context for task lifecycle guards.
type StatusContext struct {
	TaskID   string
	Status   TaskStatus
	InFlight bool
}

// CanStartTask evaluates whether a task execution may begin.
// Rules:
// - No other execution may be in flight
// - Status must be pending, or failed/cancelled when resuming
func CanStartTask(ctx StatusContext, resume bool) GuardResult {
	if ctx.InFlight || ctx.Status == StatusRunning {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("task %s is already running", ctx.TaskID),
		}
	}

	switch ctx.Status {
	case StatusPending:
		return GuardResult{Allowed: true}
	case StatusFailed, StatusCancelled:
		if resume {
			return GuardResult{Allowed: true}
		}
	}

	if resume {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only resume failed or cancelled tasks (task %s is %s)", ctx.TaskID, ctx.Status),
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("can only start pending tasks (task %s is %s)", ctx.TaskID, ctx.Status),
	}
}

// CanCancelTask evaluates whether a task can be cancelled.
// Rules:
// - Status must be pending or running
func CanCancelTask(ctx StatusContext) GuardResult {
	if ctx.Status != StatusPending && ctx.Status != StatusRunning {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only cancel pending or running tasks (task %s is %s)", ctx.TaskID, ctx.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// CanPublishTask evaluates whether a task result may be fanned out.
// Rules:
// - Task must be completed
// - At least one account is required
func CanPublishTask(ctx StatusContext, accountCount int) GuardResult {
	if ctx.Status != StatusCompleted {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only publish completed tasks (task %s is %s)", ctx.TaskID, ctx.Status),
		}
	}
	if accountCount == 0 {
		return GuardResult{
			Allowed: false,
			Reason:  "at least one account is required",
		}
	}
	return GuardResult{Allowed: true}
}
