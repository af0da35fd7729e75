package commands

import (
	"context"
	"flag"
	"io"

	"taskctl/internal/app"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/output"
)

func init() {
	Register(&ShowCmd{})
}

// ShowCmd implements the show command.
type ShowCmd struct{}

func (c *ShowCmd) Name() string      { return "show" }
func (c *ShowCmd) Aliases() []string { return nil }
func (c *ShowCmd) Synopsis() string  { return "Show one task" }
func (c *ShowCmd) Usage() string     { return "taskctl show <ref>" }
func (c *ShowCmd) NeedsAuth() bool   { return true }

func (c *ShowCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ShowCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	task, code, ok := resolveArgs(ctx, a, args, errOut)
	if !ok {
		return code
	}
	output.FormatTaskDetail(out, task)
	return exitcode.Success
}
