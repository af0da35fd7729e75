// Package taskcache binds the query cache to task lists.
package taskcache

import (
	"context"
	"slices"

	"taskctl/internal/querycache"
	"taskctl/internal/service"
)

// Family is the key family of every task list entry.
const Family = "tasks"

// Cache is the query cache of task lists.
type Cache = querycache.Cache[[]service.Task]

// Entry is a cached task list.
type Entry = querycache.Entry[[]service.Task]

// Options configures a task Cache.
type Options = querycache.Options[[]service.Task]

// ListKey returns the key for the task list with an optional status filter.
// Different filters are independent entries of one family.
func ListKey(status service.Status) querycache.Key {
	return querycache.Key{Family: Family, Filter: string(status)}
}

// New creates a task list cache that copies lists on every read and write.
func New(opts Options) *Cache {
	opts.Clone = cloneTasks
	return querycache.New(opts)
}

// Loader returns the loader for a filtered list.
func Loader(svc service.Service, status service.Status) querycache.Loader[[]service.Task] {
	return func(ctx context.Context) ([]service.Task, error) {
		return svc.ListTasks(ctx, status)
	}
}

// List returns the task list for status, fetching through the cache.
func List(ctx context.Context, c *Cache, svc service.Service, status service.Status) ([]service.Task, error) {
	return c.Fetch(ctx, ListKey(status), Loader(svc, status))
}

// Observe watches the list for status, refetching it in the background
// when invalidated.
func Observe(c *Cache, svc service.Service, status service.Status, listener querycache.Listener[[]service.Task]) func() {
	return c.Observe(ListKey(status), Loader(svc, status), listener)
}

// cloneTasks copies the slice. Task values are copied; description pointers
// are shared because nothing mutates through them.
func cloneTasks(tasks []service.Task) []service.Task {
	if tasks == nil {
		return nil
	}
	return slices.Clone(tasks)
}
