package dispatch

import "fmt"

// Summary counts the outcome of a dispatch.
type Summary struct {
	Total        int `json:"total"`
	Attempted    int `json:"attempted"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	NotAttempted int `json:"not_attempted"`
}

// Summarize tallies results by status.
func Summarize[T any](results []Result[T]) Summary {
	summary := Summary{Total: len(results)}
	for idx := range results {
		switch results[idx].Status {
		case Succeeded:
			summary.Succeeded++
		case Failed:
			summary.Failed++
		default:
			summary.NotAttempted++
		}
	}
	summary.Attempted = summary.Succeeded + summary.Failed
	return summary
}

// Add folds other into summary, for runs that combine several dispatches.
func (summary *Summary) Add(other Summary) {
	summary.Total += other.Total
	summary.Attempted += other.Attempted
	summary.Succeeded += other.Succeeded
	summary.Failed += other.Failed
	summary.NotAttempted += other.NotAttempted
}

func (summary Summary) String() string {
	return fmt.Sprintf("%d items: %d attempted, %d succeeded, %d failed, "+
		"%d not attempted", summary.Total, summary.Attempted,
		summary.Succeeded, summary.Failed, summary.NotAttempted)
}

// Failures returns the results that were attempted and failed.
func Failures[T any](results []Result[T]) []Result[T] {
	failures := make([]Result[T], 0)
	for idx := range results {
		if results[idx].Status == Failed {
			failures = append(failures, results[idx])
		}
	}
	return failures
}
