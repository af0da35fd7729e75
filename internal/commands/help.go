package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskctl/internal/app"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskctl help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	writeHelp(out, DefaultRegistry)
	return exitcode.Success
}

// writeHelp prints usage for every command in r, signed-in commands first.
func writeHelp(w io.Writer, r *Registry) {
	tasks, other := r.Grouped()

	fmt.Fprint(w, helpHeader)
	writeSection(w, "Commands (login required):", tasks)
	writeSection(w, "Other commands:", other)
	fmt.Fprint(w, helpFooter)
}

func writeSection(w io.Writer, title string, cmds []Command) {
	if len(cmds) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, cmd := range cmds {
		fmt.Fprintf(w, "  %s\n      %s", cmd.Usage(), cmd.Synopsis())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			fmt.Fprintf(w, " (alias: %s)", strings.Join(aliases, ", "))
		}
		fmt.Fprintln(w)
	}
}

const helpHeader = `Usage:
  taskctl <command> [common flags] [args]

Running taskctl without a command lists all tasks.
`

const helpFooter = `
<ref> is a task number from "taskctl list" or a task id.

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
