package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskctl/internal/app"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/output"
	"taskctl/internal/service"
	"taskctl/internal/taskcache"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
type ListCmd struct {
	status string
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string     { return "taskctl list [--status todo|done]" }
func (c *ListCmd) NeedsAuth() bool   { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	c.status = ""
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return userError(errOut, "unexpected argument: %s", args[0])
	}
	status, err := service.ParseStatus(c.status)
	if err != nil {
		return userError(errOut, "%v", err)
	}

	tasks, all, err := fetchList(ctx, a, status)
	if err != nil {
		return reportError(errOut, err)
	}
	renderList(out, tasks, all, cfg.Quiet)
	return exitcode.Success
}

// fetchList returns the list for status plus the unfiltered list that
// task numbers index into. Both are read through the cache.
func fetchList(ctx context.Context, a *app.App, status service.Status) (tasks, all []service.Task, err error) {
	all, err = taskcache.List(ctx, a.Cache, a.Service, "")
	if err != nil {
		return nil, nil, err
	}
	if status == "" {
		return all, all, nil
	}
	tasks, err = taskcache.List(ctx, a.Cache, a.Service, status)
	if err != nil {
		return nil, nil, err
	}
	return tasks, all, nil
}

// renderList prints tasks numbered by their position in all. Tasks missing
// from all are printed without a number.
func renderList(w io.Writer, tasks, all []service.Task, quiet bool) {
	if len(tasks) == 0 {
		if !quiet {
			fmt.Fprintln(w, "no tasks found")
		}
		return
	}
	pos := make(map[string]int, len(all))
	for i, t := range all {
		pos[t.ID] = i + 1
	}
	for _, t := range tasks {
		if n, ok := pos[t.ID]; ok {
			output.FormatTask(w, n, t)
		} else {
			output.FormatTaskUnnumbered(w, t)
		}
	}
}
