// Package report composes the outgoing notification texts and the optional
// per-run workbook export.
package report

import (
	"fmt"
	"strings"
	"time"

	"wb-sppmon/internal/models"
)

// RunResult is the outcome of one full monitoring run, broadcast to API
// consumers and fed into the workbook export.
type RunResult struct {
	RunID     string              `json:"run_id"`
	Summaries []models.RunSummary `json:"summaries"`
	Reported  []Entry             `json:"reported"`
	Failures  []Failure           `json:"failures"`
}

// Failure describes one collected failure for admin reporting. It is never
// persisted as domain state; only the ledger entry it produces survives the
// run.
type Failure struct {
	Descr   string    `json:"descr"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NewFailure builds a failure record stamped with the current time unless an
// explicit one is given.
func NewFailure(descr string, err error) Failure {
	return Failure{Descr: descr, Message: err.Error(), At: time.Now().UTC()}
}

// Entry is one reportable change: a stable entity descriptor used for ledger
// rate-limiting, and the human-readable line included in the report.
type Entry struct {
	Descr string `json:"descr"`
	Line  string `json:"line"`
}

// ComposeChanges renders the change report sent to the report recipients.
func ComposeChanges(entries []Entry) string {
	var b strings.Builder
	b.WriteString("*SPP monitor: changes detected*\n")
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.Line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// ComposeFailures renders the aggregated failure report sent to admins.
func ComposeFailures(failures []Failure) string {
	var b strings.Builder
	b.WriteString("*SPP monitor: failures*\n")
	for _, f := range failures {
		fmt.Fprintf(&b, "- %s: %s (at %s)\n", f.Descr, f.Message, f.At.Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ComposeEscalation renders the secondary report naming the admin recipients
// that could not be reached, sent to the admins that could.
func ComposeEscalation(failedRecipients []string) string {
	return "*SPP monitor: failed to reach admin recipients*\n" + strings.Join(failedRecipients, ", ")
}
