package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"taskctl/internal/app"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/output"
	"taskctl/internal/querycache"
	"taskctl/internal/service"
	"taskctl/internal/taskcache"
)

// DefaultWatchInterval is the refresh interval of watch.
const DefaultWatchInterval = 5 * time.Second

func init() {
	Register(&WatchCmd{})
}

// WatchCmd implements the watch command.
type WatchCmd struct {
	status   string
	interval time.Duration
	count    int
}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string  { return "Re-print the list whenever it changes" }
func (c *WatchCmd) Usage() string {
	return "taskctl watch [--status todo|done] [--interval <duration>] [--count <n>]"
}
func (c *WatchCmd) NeedsAuth() bool { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	c.status, c.interval, c.count = "", DefaultWatchInterval, 0
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.DurationVar(&c.interval, "interval", DefaultWatchInterval, "")
	fs.DurationVar(&c.interval, "n", DefaultWatchInterval, "")
	fs.IntVar(&c.count, "count", 0, "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return userError(errOut, "unexpected argument: %s", args[0])
	}
	status, err := service.ParseStatus(c.status)
	if err != nil {
		return userError(errOut, "%v", err)
	}
	if c.interval <= 0 {
		return userError(errOut, "invalid interval: %s", c.interval)
	}
	if c.count < 0 {
		return userError(errOut, "invalid count: %d", c.count)
	}

	// First render comes from a foreground fetch so failures are reported.
	tasks, all, err := fetchList(ctx, a, status)
	if err != nil {
		return reportError(errOut, err)
	}

	var (
		mu       sync.Mutex
		updates  = make(chan []service.Task, 1)
		gone     = make(chan struct{})
		goneOnce sync.Once
	)
	stop := taskcache.Observe(a.Cache, a.Service, status, func(_ querycache.Key, e taskcache.Entry, ok bool) {
		if !ok {
			goneOnce.Do(func() { close(gone) })
			return
		}
		if e.Stale {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		select {
		case <-updates:
		default:
		}
		updates <- e.Data
	})
	defer stop()
	if status != "" {
		// Keep the numbering list fresh too.
		defer taskcache.Observe(a.Cache, a.Service, "", func(querycache.Key, taskcache.Entry, bool) {})()
	}

	renders := 1
	renderList(out, tasks, all, cfg.Quiet)
	if c.count == 1 {
		return exitcode.Success
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return exitcode.Success
		case <-gone:
			if a.Unauthorized() || !a.Session.IsAuthenticated() {
				fmt.Fprintln(errOut, "error: session expired (run: taskctl login)")
				return exitcode.AuthError
			}
			return exitcode.Success
		case <-ticker.C:
			a.Cache.Invalidate(taskcache.Family)
		case tasks := <-updates:
			fmt.Fprintln(out, output.ListSeparator)
			renderList(out, tasks, numbering(a, status, tasks), cfg.Quiet)
			renders++
			if c.count > 0 && renders >= c.count {
				return exitcode.Success
			}
		}
	}
}

// numbering returns the list that positions index into: the cached
// unfiltered list, or tasks itself when unfiltered.
func numbering(a *app.App, status service.Status, tasks []service.Task) []service.Task {
	if status == "" {
		return tasks
	}
	if e, ok := a.Cache.Read(taskcache.ListKey("")); ok {
		return e.Data
	}
	return nil
}
