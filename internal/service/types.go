// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"fmt"
	"strings"
	"time"
)

// Status is the completion state of a task as sent on the wire.
type Status string

const (
	// StatusTodo marks an open task. New tasks start here.
	StatusTodo Status = "todo"

	// StatusDone marks a completed task.
	StatusDone Status = "done"
)

// ParseStatus parses a status name (case-insensitive, trimmed).
// The empty string parses to the empty Status, meaning "no filter".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case string(StatusTodo):
		return StatusTodo, nil
	case string(StatusDone):
		return StatusDone, nil
	default:
		return "", fmt.Errorf("invalid status: %s", s)
	}
}

// Task represents a single task record owned by the server.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Status      Status    `json:"status"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DescriptionText returns the description or "" when unset.
func (t Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// User is the identity attached to a session.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// CreateTaskInput is the body of a create request.
type CreateTaskInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}

// SignupInput is the body of a sign-up request.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// SigninInput is the body of a sign-in request.
type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
