package publish

import "fmt"

// StatusCount is the distribution of record states for one task.
// It is always derived from the current records and never stored.
type StatusCount struct {
	Total     int `json:"total"`
	Success   int `json:"success"`
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// CountStatuses tallies statuses.
func CountStatuses(statuses []Status) StatusCount {
	counts := StatusCount{Total: len(statuses)}
	for _, s := range statuses {
		switch s {
		case StatusSuccess:
			counts.Success++
		case StatusPending:
			counts.Pending++
		case StatusUploading:
			counts.Uploading++
		case StatusFailed:
			counts.Failed++
		case StatusCancelled:
			counts.Cancelled++
		}
	}
	return counts
}

// Sum returns the total of all per-status counts.
func (c StatusCount) Sum() int {
	return c.Success + c.Pending + c.Uploading + c.Failed + c.Cancelled
}

// Summary renders the task-list label for a count.
func Summary(c StatusCount) string {
	switch {
	case c.Total == 0:
		return "not published"
	case c.Success == c.Total:
		return "fully published"
	default:
		return fmt.Sprintf("partially published (%d/%d)", c.Success, c.Total)
	}
}

// UniqueAccounts drops empty and repeated account ids, keeping first-seen order.
func UniqueAccounts(accountIDs []string) []string {
	seen := make(map[string]struct{}, len(accountIDs))
	out := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
