package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/reelforge/internal/ports/primary"
)

// PublishAdapter translates CLI operations to PublishService calls.
type PublishAdapter struct {
	service primary.PublishService
	out     io.Writer
}

// NewPublishAdapter creates a new PublishAdapter with the given service.
func NewPublishAdapter(service primary.PublishService, out io.Writer) *PublishAdapter {
	return &PublishAdapter{
		service: service,
		out:     out,
	}
}

// FanOut creates publish records for the accounts and dispatches them.
func (a *PublishAdapter) FanOut(ctx context.Context, taskID string, accountIDs []string) error {
	records, err := a.service.FanOut(ctx, primary.FanOutRequest{TaskID: taskID, AccountIDs: accountIDs})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Task %s fanned out to %d account(s)\n", taskID, len(records))
	for _, r := range records {
		fmt.Fprintf(a.out, "  %-38s %-20s %s\n", r.PublishID, r.AccountID, statusColor(r.Status, 0))
	}
	return nil
}

// Status prints the live publish distribution of a task.
func (a *PublishAdapter) Status(ctx context.Context, taskID string) error {
	status, err := a.service.GetPublishStatus(ctx, taskID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "\nTask %s: %s\n", status.TaskID, summaryColor(status))
	c := status.Counts
	fmt.Fprintf(a.out, "total %d  success %d  pending %d  uploading %d  failed %d  cancelled %d\n",
		c.Total, c.Success, c.Pending, c.Uploading, c.Failed, c.Cancelled)

	if len(status.PublishedAccounts) == 0 {
		fmt.Fprintln(a.out)
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-20s %-10s %s\n", "PUBLISH ID", "ACCOUNT", "STATUS", "DETAIL")
	fmt.Fprintln(a.out, "──────────────────────────────────────────────────────────────────────────────────────────")
	for _, r := range status.PublishedAccounts {
		detail := r.ResultURL
		if r.ErrorMessage != "" {
			detail = r.ErrorMessage
		}
		fmt.Fprintf(a.out, "%-38s %-20s %s %s\n", r.PublishID, r.AccountID, statusColor(r.Status, 10), detail)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Retry moves a failed or cancelled record back to pending.
func (a *PublishAdapter) Retry(ctx context.Context, publishID string) error {
	resp, err := a.service.RetryPublish(ctx, publishID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ %s\n", resp.Message)
	return nil
}

// Cancel cancels a record that has not succeeded.
func (a *PublishAdapter) Cancel(ctx context.Context, publishID string) error {
	resp, err := a.service.CancelPublish(ctx, publishID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ %s\n", resp.Message)
	return nil
}

// Delete removes a single record.
func (a *PublishAdapter) Delete(ctx context.Context, publishID string) error {
	resp, err := a.service.DeletePublish(ctx, publishID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ %s\n", resp.Message)
	return nil
}

func summaryColor(status *primary.PublishStatus) string {
	c := status.Counts
	switch {
	case c.Total == 0:
		return status.Summary
	case c.Success == c.Total:
		return color.New(color.FgGreen).Sprint(status.Summary)
	default:
		return color.New(color.FgYellow).Sprint(status.Summary)
	}
}
