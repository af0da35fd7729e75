package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"taskctl/internal/app"
	"taskctl/internal/mutation"
	"taskctl/internal/service"
	"taskctl/internal/taskcache"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num int    // 1-based position in the unfiltered list, 0 if ID is set
	ID  string // task id, empty if Num is set
}

var (
	// ErrTaskRefRequired indicates no task reference was provided.
	ErrTaskRefRequired = errors.New("task reference required")

	// ErrNotSaved indicates a provisional task the server has not confirmed.
	ErrNotSaved = errors.New("task is not saved yet")
)

// OutOfRangeError reports a task number past the end of the list.
type OutOfRangeError struct {
	Num int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("task number out of range: %d", e.Num)
}

// ParseTaskRef parses a task reference from args.
//
// Parsing rules:
// 1. No args → error: task reference required
// 2. All digits → 1-based number into the unfiltered list (must be >= 1)
// 3. Anything else that looks like an id → task id
// 4. Provisional ids are rejected: they exist only until the server answers
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return TaskRef{}, ErrTaskRefRequired
	}
	ref := strings.TrimSpace(args[0])

	if isAllDigits(ref) {
		num, err := strconv.Atoi(ref)
		if err != nil || num < 1 {
			return TaskRef{}, &OutOfRangeError{Num: num}
		}
		return TaskRef{Num: num}, nil
	}

	if strings.HasPrefix(ref, mutation.ProvisionalPrefix) {
		return TaskRef{}, fmt.Errorf("%w: %s", ErrNotSaved, ref)
	}
	for _, r := range ref {
		if unicode.IsSpace(r) || r == '/' {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", ref)
		}
	}
	return TaskRef{ID: ref}, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ResolveTask finds the task ref points at. Numbers index the unfiltered
// list read through the cache; ids are fetched from the service.
func ResolveTask(ctx context.Context, a *app.App, ref TaskRef) (service.Task, error) {
	if ref.ID != "" {
		return a.Service.GetTask(ctx, ref.ID)
	}

	tasks, err := taskcache.List(ctx, a.Cache, a.Service, "")
	if err != nil {
		return service.Task{}, err
	}
	if ref.Num < 1 || ref.Num > len(tasks) {
		return service.Task{}, &OutOfRangeError{Num: ref.Num}
	}
	task := tasks[ref.Num-1]
	if mutation.IsProvisional(task) {
		return service.Task{}, fmt.Errorf("%w: %s", ErrNotSaved, task.ID)
	}
	return task, nil
}

// resolveArgs parses and resolves the task reference in args, printing any
// failure. Returns ok=false with the exit code when resolution failed.
func resolveArgs(ctx context.Context, a *app.App, args []string, errOut io.Writer) (service.Task, int, bool) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, userError(errOut, "%v", err), false
	}
	task, err := ResolveTask(ctx, a, ref)
	if err != nil {
		var rangeErr *OutOfRangeError
		if errors.As(err, &rangeErr) || errors.Is(err, ErrNotSaved) {
			return service.Task{}, userError(errOut, "%v", err), false
		}
		return service.Task{}, reportError(errOut, err), false
	}
	return task, 0, true
}
