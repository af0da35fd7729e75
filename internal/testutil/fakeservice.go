// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"taskctl/internal/api"
	"taskctl/internal/service"
)

// FakeService is an in-memory implementation of service.Service and
// service.Auth for testing. Tasks are kept newest first.
type FakeService struct {
	mu     sync.RWMutex
	tasks  []service.Task
	nextID int
	now    func() time.Time

	// Error injection for testing
	ListTasksErr  error
	GetTaskErr    error
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error
	SignupErr     error
	SigninErr     error

	// ListHook runs at the start of every ListTasks call. A non-nil error
	// is returned from the call. Tests use it to block or count fetches.
	ListHook func(ctx context.Context, status service.Status) error

	// SigninToken is returned by Signin.
	SigninToken string

	listCalls atomic.Int64
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		now:         func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) },
		SigninToken: "fake-token",
	}
}

// AddTask adds a task to the top of the list and returns it.
func (f *FakeService) AddTask(title string, status service.Status) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(title, nil, status)
}

func (f *FakeService) addLocked(title string, desc *string, status service.Status) service.Task {
	f.nextID++
	now := f.now()
	t := service.Task{
		ID:          fmt.Sprintf("task-%d", f.nextID),
		Title:       title,
		Description: desc,
		Status:      status,
		UserID:      "user-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks = slices.Insert(f.tasks, 0, t)
	return t
}

// Tasks returns a copy of the current tasks.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.tasks)
}

// ListCalls returns the number of ListTasks calls.
func (f *FakeService) ListCalls() int {
	return int(f.listCalls.Load())
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, status service.Status) ([]service.Task, error) {
	f.listCalls.Add(1)
	if f.ListHook != nil {
		if err := f.ListHook(ctx, status); err != nil {
			return nil, err
		}
	}
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := []service.Task{}
	for _, t := range f.tasks {
		if status == "" || t.Status == status {
			result = append(result, t)
		}
	}
	return result, nil
}

// GetTask implements service.Service.
func (f *FakeService) GetTask(ctx context.Context, id string) (service.Task, error) {
	if f.GetTaskErr != nil {
		return service.Task{}, f.GetTaskErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	i := f.indexLocked(id)
	if i < 0 {
		return service.Task{}, notFound()
	}
	return f.tasks[i], nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, in service.CreateTaskInput) (service.Task, error) {
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(in.Title, in.Description, service.StatusTodo), nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	if f.UpdateTaskErr != nil {
		return service.Task{}, f.UpdateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return service.Task{}, notFound()
	}
	t := f.tasks[i]
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
	t.UpdatedAt = f.now()
	f.tasks[i] = t
	return t, nil
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return notFound()
	}
	f.tasks = slices.Delete(f.tasks, i, i+1)
	return nil
}

// Signup implements service.Auth.
func (f *FakeService) Signup(ctx context.Context, in service.SignupInput) (string, error) {
	if f.SignupErr != nil {
		return "", f.SignupErr
	}
	return "User created successfully", nil
}

// Signin implements service.Auth.
func (f *FakeService) Signin(ctx context.Context, in service.SigninInput) (*oauth2.Token, error) {
	if f.SigninErr != nil {
		return nil, f.SigninErr
	}
	return &oauth2.Token{AccessToken: f.SigninToken, TokenType: "bearer"}, nil
}

func (f *FakeService) indexLocked(id string) int {
	return slices.IndexFunc(f.tasks, func(t service.Task) bool { return t.ID == id })
}

func notFound() error {
	return &api.Error{Status: 404, Message: "Task not found", Kind: api.KindNotFound}
}

// ValidationError returns an API validation error with msg.
func ValidationError(msg string) error {
	return &api.Error{Status: 422, Message: msg, Kind: api.KindValidation}
}

// TransportError returns an API transport error.
func TransportError() error {
	return &api.Error{Message: "connection refused", Kind: api.KindTransport}
}

// UnauthorizedError returns the error of a 401 response.
func UnauthorizedError() error {
	return &api.Error{Status: 401, Message: "Unauthorized", Kind: api.KindUnauthorized}
}
