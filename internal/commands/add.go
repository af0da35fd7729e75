package commands

import (
	"context"
	"flag"
	"io"
	"strings"

	"taskctl/internal/app"
	"taskctl/internal/config"
	"taskctl/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Add a task" }
func (c *AddCmd) Usage() string     { return "taskctl add [-d <description>] <title...>" }
func (c *AddCmd) NeedsAuth() bool   { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	c.description = ""
	fs.StringVar(&c.description, "description", "", "")
	fs.StringVar(&c.description, "d", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	// Join all args as title
	title := strings.TrimSpace(strings.Join(args, " "))
	if err := validateTitle(title); err != nil {
		return userError(errOut, "%v", err)
	}
	if err := validateDescription(c.description); err != nil {
		return userError(errOut, "%v", err)
	}

	in := service.CreateTaskInput{Title: title}
	if d := strings.TrimSpace(c.description); d != "" {
		in.Description = &d
	}

	if _, err := a.Mutation.Create(ctx, in); err != nil {
		return reportError(errOut, err)
	}
	return ok(out, cfg.Quiet)
}
