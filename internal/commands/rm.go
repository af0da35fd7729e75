package commands

import (
	"context"
	"flag"
	"io"

	"taskctl/internal/app"
	"taskctl/internal/config"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task" }
func (c *RmCmd) Usage() string     { return "taskctl rm <ref>" }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	task, code, resolved := resolveArgs(ctx, a, args, errOut)
	if !resolved {
		return code
	}
	if err := a.Mutation.Delete(ctx, task.ID); err != nil {
		return reportError(errOut, err)
	}
	return ok(out, cfg.Quiet)
}
