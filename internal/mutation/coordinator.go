// Package mutation applies task mutations optimistically.
//
// Every mutation runs the same protocol against the unfiltered task list:
// cancel background refetches of the task family, snapshot the list, apply a
// projection of the expected result, send the request, restore the snapshot
// if it failed, and finally invalidate the whole family so every view
// refetches server truth. Filtered lists are never projected; they converge
// through that final invalidation.
package mutation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskctl/internal/querycache"
	"taskctl/internal/service"
	"taskctl/internal/taskcache"
)

// ProvisionalPrefix starts the id of a task created optimistically.
const ProvisionalPrefix = "temp-"

// Coordinator runs create, update and delete against the remote service
// while keeping the task cache consistent.
type Coordinator struct {
	cache  *taskcache.Cache
	svc    service.Service
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used for provisional timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator sets the generator of provisional ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a coordinator.
func New(cache *taskcache.Cache, svc service.Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		cache:  cache,
		svc:    svc,
		now:    time.Now,
		newID:  func() string { return ProvisionalPrefix + uuid.NewString() },
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin cancels background refetches and snapshots the unfiltered list.
// The returned Optimistic belongs to one mutation only.
func (c *Coordinator) Begin() *Optimistic {
	c.cache.Cancel(taskcache.Family)
	return &Optimistic{
		cache:    c.cache,
		snapshot: c.cache.Snapshot(taskcache.ListKey("")),
		logger:   c.logger,
	}
}

// Create creates a task, showing a provisional copy at the top of the list
// until the server answers.
func (c *Coordinator) Create(ctx context.Context, in service.CreateTaskInput) (service.Task, error) {
	op := c.Begin()
	now := c.now().UTC()
	provisional := service.Task{
		ID:          c.newID(),
		Title:       in.Title,
		Description: in.Description,
		Status:      service.StatusTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	op.Apply(func(tasks []service.Task) []service.Task {
		return ProjectCreate(tasks, provisional)
	})

	task, err := c.svc.CreateTask(ctx, in)
	return task, op.CommitOrRollback(err)
}

// Update applies patch to task id, showing the patched task in place
// until the server answers.
func (c *Coordinator) Update(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	op := c.Begin()
	now := c.now().UTC()
	op.Apply(func(tasks []service.Task) []service.Task {
		return ProjectUpdate(tasks, id, patch, now)
	})

	task, err := c.svc.UpdateTask(ctx, id, patch)
	return task, op.CommitOrRollback(err)
}

// Delete deletes task id, hiding it from the list until the server answers.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	op := c.Begin()
	op.Apply(func(tasks []service.Task) []service.Task {
		return ProjectDelete(tasks, id)
	})

	err := c.svc.DeleteTask(ctx, id)
	return op.CommitOrRollback(err)
}

// Optimistic is one in-flight mutation: a snapshot, an optional projection,
// and the settlement that commits or rolls back.
type Optimistic struct {
	cache     *taskcache.Cache
	snapshot  querycache.Snapshot[[]service.Task]
	projected bool
	settled   bool
	logger    *slog.Logger
}

// Snapshot returns the list as it was before the mutation.
func (o *Optimistic) Snapshot() querycache.Snapshot[[]service.Task] {
	return o.snapshot
}

// Apply writes project(snapshot) to the unfiltered list. It does nothing
// when there was no cached list to project onto.
func (o *Optimistic) Apply(project func([]service.Task) []service.Task) bool {
	if !o.snapshot.Present() || o.settled {
		return false
	}
	o.cache.Write(o.snapshot.Key(), project(o.snapshot.Data()))
	o.projected = true
	return true
}

// CommitOrRollback settles the mutation. On failure the snapshot is restored
// verbatim. In both cases the task family is invalidated. err is returned
// unchanged. Settling twice does nothing.
func (o *Optimistic) CommitOrRollback(err error) error {
	if o.settled {
		return err
	}
	o.settled = true

	if err != nil && o.projected {
		o.cache.Restore(o.snapshot)
		o.logger.Debug("mutation failed, restored snapshot", "error", err)
	}
	o.cache.Invalidate(taskcache.Family)
	return err
}
