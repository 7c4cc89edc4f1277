package watch

import (
	"fmt"
	"strings"
)

// ReportMessage composes the notification for a successful run.
func ReportMessage(jobName string, fresh []string) string {
	var body string
	if len(fresh) > 0 {
		body = fmt.Sprintf("Found %d new links:\n%s", len(fresh), strings.Join(fresh, "\n"))
	} else {
		body = "No new links found"
	}
	return fmt.Sprintf("Job **%s**:\n%s", jobName, body)
}

// FailureMessage composes the notification for a resource-fetch failure.
// disabling is set when the run is about to disable the job.
func FailureMessage(jobName, reason string, disabling bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job **%s** failed:\n%s", jobName, reason)
	if disabling {
		b.WriteString("\nDisabling job...")
	}
	return b.String()
}
