// Package httptasks implements the service interfaces over the task HTTP API.
package httptasks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"taskctl/internal/api"
	"taskctl/internal/service"
)

// APITimeout is the default timeout for a single API call.
const APITimeout = 10 * time.Second

// Client implements service.Service and service.Auth using the task API.
// It never retries; errors from the API client propagate unchanged.
type Client struct {
	api     *api.Client
	timeout time.Duration
}

// New creates a backend over an API client. A non-positive timeout uses APITimeout.
func New(c *api.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = APITimeout
	}
	return &Client{api: c, timeout: timeout}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.Do(ctx, method, path, query, body, out)
}

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context, status service.Status) ([]service.Task, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}

	var tasks []service.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", query, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}

// GetTask implements service.Service.
func (c *Client) GetTask(ctx context.Context, id string) (service.Task, error) {
	var task service.Task
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, nil, &task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// CreateTask implements service.Service.
func (c *Client) CreateTask(ctx context.Context, in service.CreateTaskInput) (service.Task, error) {
	var task service.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, in, &task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// UpdateTask implements service.Service.
func (c *Client) UpdateTask(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	var task service.Task
	if err := c.do(ctx, http.MethodPatch, taskPath(id), nil, patch, &task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil, nil)
}

type signupResponse struct {
	Message string `json:"message"`
}

// Signup implements service.Auth.
func (c *Client) Signup(ctx context.Context, in service.SignupInput) (string, error) {
	var resp signupResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, in, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Signin implements service.Auth.
// The response {access_token, token_type} decodes directly into an oauth2.Token.
func (c *Client) Signin(ctx context.Context, in service.SigninInput) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := c.do(ctx, http.MethodPost, "/auth/signin", nil, in, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("sign-in response has no access token")
	}
	return &tok, nil
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}
