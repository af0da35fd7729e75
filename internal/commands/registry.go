package commands

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"taskctl/internal/mutation"
)

// Registry maps command names and aliases to commands.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Command)}
}

// Register adds c under its name and every alias. Nothing is added when any
// of them is taken or could be read as a task reference or a flag.
func (r *Registry) Register(c Command) error {
	names := append([]string{c.Name()}, c.Aliases()...)
	for _, n := range names {
		if err := checkCommandName(n); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range names {
		if _, taken := r.byName[n]; taken || slices.Contains(names[:i], n) {
			return fmt.Errorf("command name already registered: %s", n)
		}
	}
	for _, n := range names {
		r.byName[n] = c
	}
	return nil
}

// checkCommandName rejects names the dispatcher could not tell apart from
// other arguments.
func checkCommandName(n string) error {
	switch {
	case n == "" || strings.ContainsAny(n, " \t\n/"):
		return fmt.Errorf("invalid command name: %q", n)
	case strings.HasPrefix(n, "-"):
		return fmt.Errorf("command name looks like a flag: %s", n)
	case isAllDigits(n):
		return fmt.Errorf("command name looks like a task number: %s", n)
	case strings.HasPrefix(n, mutation.ProvisionalPrefix):
		return fmt.Errorf("command name looks like a task id: %s", n)
	}
	return nil
}

// Find looks up a command by name or alias.
func (r *Registry) Find(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

// All returns each command once, sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.byName))
	for n, cmd := range r.byName {
		if n == cmd.Name() {
			cmds = append(cmds, cmd)
		}
	}
	slices.SortFunc(cmds, func(a, b Command) int { return strings.Compare(a.Name(), b.Name()) })
	return cmds
}

// Grouped splits All into commands that work on the signed-in user's tasks
// and commands that run without a session.
func (r *Registry) Grouped() (tasks, other []Command) {
	for _, cmd := range r.All() {
		if cmd.NeedsAuth() {
			tasks = append(tasks, cmd)
		} else {
			other = append(other, cmd)
		}
	}
	return tasks, other
}

// DefaultRegistry is the global command registry.
var DefaultRegistry = NewRegistry()

// Register adds a command to the default registry.
func Register(c Command) {
	if err := DefaultRegistry.Register(c); err != nil {
		panic(err)
	}
}
