// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"

	"github.com/example/reelforge/internal/ports/primary"
)

// TaskAdapter translates CLI operations to TaskService calls.
type TaskAdapter struct {
	service primary.TaskService
	out     io.Writer
}

// NewTaskAdapter creates a new TaskAdapter with the given service.
func NewTaskAdapter(service primary.TaskService, out io.Writer) *TaskAdapter {
	return &TaskAdapter{
		service: service,
		out:     out,
	}
}

// Create stores a task. Unless deferred it is executed in the foreground
// and its result printed.
func (a *TaskAdapter) Create(ctx context.Context, pipelineType string, params map[string]any, deferred bool) error {
	resp, err := a.service.CreateTask(ctx, primary.CreateTaskRequest{
		PipelineType: pipelineType,
		Params:       params,
		Deferred:     true,
	})
	if err != nil {
		return err
	}

	if deferred {
		fmt.Fprintf(a.out, "✓ Created task %s (pending)\n", resp.TaskID)
		return nil
	}

	fmt.Fprintf(a.out, "✓ Created task %s, running %s pipeline\n", resp.TaskID, pipelineType)
	return a.Run(ctx, resp.TaskID)
}

// Run executes a pending task in the foreground.
func (a *TaskAdapter) Run(ctx context.Context, taskID string) error {
	result, err := a.service.ExecuteTask(ctx, taskID)
	if result != nil {
		a.printOutcome(result)
	}
	return err
}

// List lists tasks with their publish summary.
func (a *TaskAdapter) List(ctx context.Context, filters primary.TaskFilters) error {
	list, err := a.service.ListTasks(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(list.Tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-12s %-10s %-20s %s\n", "ID", "PIPELINE", "STATUS", "CREATED", "PUBLISH")
	fmt.Fprintln(a.out, "──────────────────────────────────────────────────────────────────────────────────────────────")
	for _, t := range list.Tasks {
		fmt.Fprintf(a.out, "%-38s %-12s %s %-20s %s\n",
			t.TaskID, t.PipelineType, statusColor(t.Status, 10), formatTime(t.CreatedAt), t.PublishSummary)
	}
	fmt.Fprintf(a.out, "\n%d task(s)\n", list.Total)

	return nil
}

// Status prints the polling view of a task.
func (a *TaskAdapter) Status(ctx context.Context, taskID string) error {
	status, err := a.service.GetTaskStatus(ctx, taskID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "\nTask:     %s\n", status.TaskID)
	fmt.Fprintf(a.out, "Pipeline: %s\n", status.PipelineType)
	fmt.Fprintf(a.out, "Status:   %s\n", statusColor(status.Status, 0))
	if status.CurrentStage != "" {
		fmt.Fprintf(a.out, "Stage:    %s\n", status.CurrentStage)
	}

	stages := make([]string, 0, len(status.Progress))
	for stage := range status.Progress {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	if len(stages) > 0 {
		fmt.Fprintln(a.out, "Progress:")
		for _, stage := range stages {
			fmt.Fprintf(a.out, "  %-8s %s\n", stage, statusColor(status.Progress[stage], 0))
		}
	}

	if status.Error != "" {
		fmt.Fprintf(a.out, "Error:    %s\n", color.New(color.FgRed).Sprint(status.Error))
	}
	fmt.Fprintf(a.out, "Created:  %s\n", formatTime(status.CreatedAt))
	if status.CompletedAt != nil {
		fmt.Fprintf(a.out, "Finished: %s\n", formatTime(*status.CompletedAt))
	}
	fmt.Fprintln(a.out)

	return nil
}

// Result prints the stage outputs of a task as JSON.
func (a *TaskAdapter) Result(ctx context.Context, taskID string) error {
	result, err := a.service.GetTaskResult(ctx, taskID)
	if err != nil {
		return err
	}
	return printJSON(a.out, result)
}

// Cancel requests cancellation of a task.
func (a *TaskAdapter) Cancel(ctx context.Context, taskID string) error {
	if err := a.service.CancelTask(ctx, taskID); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Task %s cancellation requested\n", taskID)
	return nil
}

// Resume restarts a failed or cancelled task.
func (a *TaskAdapter) Resume(ctx context.Context, taskID string) error {
	if err := a.service.ResumeTask(ctx, taskID); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Task %s resumed\n", taskID)
	return nil
}

// Delete deletes a task and its publish records.
func (a *TaskAdapter) Delete(ctx context.Context, taskID string) error {
	if err := a.service.DeleteTask(ctx, taskID); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Deleted task %s\n", taskID)
	return nil
}

func (a *TaskAdapter) printOutcome(result *primary.TaskResult) {
	for _, outcome := range result.StageLog {
		line := fmt.Sprintf("  %-8s %s", outcome.Stage, statusColor(outcome.Status, 0))
		if outcome.Error != "" {
			line += " " + outcome.Error
		}
		fmt.Fprintln(a.out, line)
	}
	fmt.Fprintf(a.out, "Task %s %s\n", result.TaskID, statusColor(result.Status, 0))
}

func statusColor(status string, width int) string {
	text := status
	if width > 0 {
		text = fmt.Sprintf("%-*s", width, status)
	}
	switch status {
	case "completed", "success":
		return color.New(color.FgGreen).Sprint(text)
	case "failed":
		return color.New(color.FgRed).Sprint(text)
	case "running", "uploading":
		return color.New(color.FgCyan).Sprint(text)
	case "cancelled", "skipped":
		return color.New(color.FgYellow).Sprint(text)
	default:
		return text
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func newJSONFormatter() *prettyjson.Formatter {
	f := prettyjson.NewFormatter()
	f.KeyColor = color.New(color.FgBlue)
	f.StringColor = color.New(color.FgGreen)
	f.BoolColor = color.New(color.FgYellow)
	f.NumberColor = color.New(color.FgCyan)
	f.NullColor = color.New(color.FgHiBlack)
	f.DisabledColor = color.NoColor
	f.Indent = 2
	return f
}

func printJSON(out io.Writer, v any) error {
	data, err := newJSONFormatter().Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
