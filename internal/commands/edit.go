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
	Register(&EditCmd{})
}

// optString is a string flag that records whether it was given.
type optString struct {
	value string
	set   bool
}

func (o *optString) String() string { return o.value }

func (o *optString) Set(v string) error {
	o.value = v
	o.set = true
	return nil
}

// ptr returns nil when the flag was not given.
func (o *optString) ptr() *string {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// EditCmd implements the edit command.
type EditCmd struct {
	title       optString
	description optString
	status      optString
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Change a task" }
func (c *EditCmd) Usage() string {
	return "taskctl edit <ref> [--title <t>] [--description <d>] [--status todo|done]"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.title, c.description, c.status = optString{}, optString{}, optString{}
	fs.Var(&c.title, "title", "")
	fs.Var(&c.title, "t", "")
	fs.Var(&c.description, "description", "")
	fs.Var(&c.description, "d", "")
	fs.Var(&c.status, "status", "")
	fs.Var(&c.status, "s", "")
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		return userError(errOut, "unexpected argument: %s", args[1])
	}

	var patch service.TaskPatch
	if c.title.set {
		title := strings.TrimSpace(c.title.value)
		if err := validateTitle(title); err != nil {
			return userError(errOut, "%v", err)
		}
		patch.Title = &title
	}
	if c.description.set {
		if err := validateDescription(c.description.value); err != nil {
			return userError(errOut, "%v", err)
		}
		patch.Description = c.description.ptr()
	}
	if c.status.set {
		st, err := service.ParseStatus(c.status.value)
		if err != nil || st == "" {
			return userError(errOut, "invalid status: %s", c.status.value)
		}
		patch.Status = &st
	}
	if patch.IsEmpty() {
		return userError(errOut, "nothing to change (use --title, --description or --status)")
	}

	task, code, resolved := resolveArgs(ctx, a, args, errOut)
	if !resolved {
		return code
	}
	if _, err := a.Mutation.Update(ctx, task.ID, patch); err != nil {
		return reportError(errOut, err)
	}
	return ok(out, cfg.Quiet)
}
