package mutation

import (
	"strings"
	"time"

	"taskctl/internal/service"
)

// ProjectCreate returns tasks with provisional prepended.
func ProjectCreate(tasks []service.Task, provisional service.Task) []service.Task {
	out := make([]service.Task, 0, len(tasks)+1)
	out = append(out, provisional)
	return append(out, tasks...)
}

// ProjectUpdate returns tasks with the task matching id patched in place.
// Unpatched fields are kept; updated_at becomes now.
func ProjectUpdate(tasks []service.Task, id string, patch service.TaskPatch, now time.Time) []service.Task {
	out := make([]service.Task, len(tasks))
	for i, t := range tasks {
		if t.ID == id {
			t = applyPatch(t, patch, now)
		}
		out[i] = t
	}
	return out
}

// ProjectDelete returns tasks without the task matching id.
func ProjectDelete(tasks []service.Task, id string) []service.Task {
	out := make([]service.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// IsProvisional reports whether t only exists in the cache so far.
func IsProvisional(t service.Task) bool {
	return strings.HasPrefix(t.ID, ProvisionalPrefix)
}

func applyPatch(t service.Task, patch service.TaskPatch, now time.Time) service.Task {
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		d := *patch.Description
		t.Description = &d
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	t.UpdatedAt = now
	return t
}
