package commands

import (
	"context"
	"flag"
	"io"

	"taskctl/internal/app"
	"taskctl/internal/config"
	"taskctl/internal/service"
)

func init() {
	Register(&DoneCmd{})
	Register(&UndoCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return nil }
func (c *DoneCmd) Synopsis() string  { return "Mark a task done" }
func (c *DoneCmd) Usage() string     { return "taskctl done <ref>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	return setStatus(ctx, cfg, a, args, service.StatusDone, out, errOut)
}

// UndoCmd implements the undo command.
type UndoCmd struct{}

func (c *UndoCmd) Name() string      { return "undo" }
func (c *UndoCmd) Aliases() []string { return []string{"reopen"} }
func (c *UndoCmd) Synopsis() string  { return "Mark a task todo again" }
func (c *UndoCmd) Usage() string     { return "taskctl undo <ref>" }
func (c *UndoCmd) NeedsAuth() bool   { return true }

func (c *UndoCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UndoCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	return setStatus(ctx, cfg, a, args, service.StatusTodo, out, errOut)
}

// setStatus toggles the task in args to status. A task already in that
// status is left alone.
func setStatus(ctx context.Context, cfg *config.Config, a *app.App, args []string, status service.Status, out, errOut io.Writer) int {
	task, code, resolved := resolveArgs(ctx, a, args, errOut)
	if !resolved {
		return code
	}
	if task.Status == status {
		return ok(out, cfg.Quiet)
	}
	if _, err := a.Mutation.Update(ctx, task.ID, service.TaskPatch{Status: &status}); err != nil {
		return reportError(errOut, err)
	}
	return ok(out, cfg.Quiet)
}
