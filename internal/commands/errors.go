package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"taskctl/internal/api"
	"taskctl/internal/exitcode"
)

// reportError prints err in CLI form and returns the exit code for it.
// A 401 is always reported as an expired session, never as a form error.
func reportError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "error: cancelled")
		return exitcode.UserError
	case errors.Is(err, api.ErrUnauthorized):
		fmt.Fprintln(errOut, "error: session expired (run: taskctl login)")
		return exitcode.AuthError
	case errors.Is(err, api.ErrNotFound):
		fmt.Fprintln(errOut, "error: task not found")
		return exitcode.UserError
	case errors.Is(err, api.ErrValidation):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}

// userError prints a usage or validation message.
func userError(errOut io.Writer, format string, args ...any) int {
	fmt.Fprintf(errOut, "error: "+format+"\n", args...)
	return exitcode.UserError
}

// ok prints "ok" unless quiet.
func ok(out io.Writer, quiet bool) int {
	if !quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
