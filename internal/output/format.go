// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskctl/internal/service"
)

const (
	// ListSeparator is the separator line between watch renders.
	ListSeparator = "------------"
)

// FormatTask formats a numbered task line.
// Format: "{N:>4}  [ ] {TITLE}\n" (4-wide right-aligned number, two spaces, status box, title)
func FormatTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %s %s\n", num, statusBox(task.Status), normalizeTitle(task.Title))
}

// FormatTaskUnnumbered formats a task that has no position in the full list.
func FormatTaskUnnumbered(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "%4s  %s %s\n", "-", statusBox(task.Status), normalizeTitle(task.Title))
}

// FormatTaskDetail prints every field of a task.
func FormatTaskDetail(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "%s %s\n", statusBox(task.Status), normalizeTitle(task.Title))
	fmt.Fprintf(w, "id:       %s\n", task.ID)
	fmt.Fprintf(w, "status:   %s\n", task.Status)
	if d := strings.TrimSpace(task.DescriptionText()); d != "" {
		fmt.Fprintf(w, "details:  %s\n", d)
	}
	if !task.CreatedAt.IsZero() {
		fmt.Fprintf(w, "created:  %s\n", FormatDate(task.CreatedAt))
	}
	if !task.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "updated:  %s\n", FormatDate(task.UpdatedAt))
	}
}

// FormatDate renders a date as "January 2" in local time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("January 2")
}

func statusBox(s service.Status) string {
	if s == service.StatusDone {
		return "[x]"
	}
	return "[ ]"
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	// Replace newlines with spaces
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	// Trim and check for empty
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
