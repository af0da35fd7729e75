// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"

	"golang.org/x/oauth2"
)

// Service defines the interface for remote task operations.
// All task API calls go through this interface.
// Commands and the cache never speak HTTP directly.
type Service interface {
	// ListTasks returns the user's tasks in server order.
	// An empty status returns every task; otherwise only tasks with that status.
	ListTasks(ctx context.Context, status Status) ([]Task, error)

	// GetTask returns a single task. Fails with a not-found error if
	// the id does not exist for this user.
	GetTask(ctx context.Context, id string) (Task, error)

	// CreateTask creates a task. The server assigns id, status and timestamps.
	CreateTask(ctx context.Context, in CreateTaskInput) (Task, error)

	// UpdateTask applies a partial update and returns the stored task.
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error)

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error
}

// Auth defines the unauthenticated account endpoints.
type Auth interface {
	// Signup registers an account and returns the server's message.
	Signup(ctx context.Context, in SignupInput) (string, error)

	// Signin exchanges credentials for an access token.
	Signin(ctx context.Context, in SigninInput) (*oauth2.Token, error)
}
