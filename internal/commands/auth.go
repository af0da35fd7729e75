package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"taskctl/internal/api"
	"taskctl/internal/app"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/service"
	"taskctl/internal/session"
)

// EnvPassword supplies the password when --password is not given.
const EnvPassword = "TASKCTL_PASSWORD"

func init() {
	Register(&SignupCmd{})
	Register(&LoginCmd{})
	Register(&LogoutCmd{})
	Register(&WhoamiCmd{})
}

// credentialFlags are the flags shared by signup and login.
type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(fs *flag.FlagSet) {
	f.email, f.password = "", ""
	fs.StringVar(&f.email, "email", "", "")
	fs.StringVar(&f.email, "e", "", "")
	fs.StringVar(&f.password, "password", "", "")
	fs.StringVar(&f.password, "p", "", "")
}

// resolve trims the email, falls back to the environment for the password
// and validates both.
func (f *credentialFlags) resolve() (email, password string, err error) {
	email = strings.TrimSpace(f.email)
	password = f.password
	if password == "" {
		password = os.Getenv(EnvPassword)
	}
	if email == "" {
		return "", "", errors.New("email required (use --email)")
	}
	if err := validateEmail(email); err != nil {
		return "", "", err
	}
	if password == "" {
		return "", "", fmt.Errorf("password required (use --password or %s)", EnvPassword)
	}
	if err := validatePassword(password); err != nil {
		return "", "", err
	}
	return email, password, nil
}

// SignupCmd implements the signup command.
type SignupCmd struct {
	creds    credentialFlags
	fullName string
}

func (c *SignupCmd) Name() string      { return "signup" }
func (c *SignupCmd) Aliases() []string { return []string{"register"} }
func (c *SignupCmd) Synopsis() string  { return "Create an account" }
func (c *SignupCmd) Usage() string {
	return "taskctl signup --email <email> --password <password> [--name <full name>]"
}
func (c *SignupCmd) NeedsAuth() bool { return false }

func (c *SignupCmd) RegisterFlags(fs *flag.FlagSet) {
	c.creds.register(fs)
	c.fullName = ""
	fs.StringVar(&c.fullName, "name", "", "")
}

func (c *SignupCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return userError(errOut, "unexpected argument: %s", args[0])
	}
	email, password, err := c.creds.resolve()
	if err != nil {
		return userError(errOut, "%v", err)
	}

	msg, err := a.Auth.Signup(ctx, service.SignupInput{
		Email:    email,
		Password: password,
		FullName: strings.TrimSpace(c.fullName),
	})
	if err != nil {
		return reportError(errOut, err)
	}
	if !cfg.Quiet {
		if msg == "" {
			msg = "ok"
		}
		fmt.Fprintln(out, msg)
	}
	return exitcode.Success
}

// LoginCmd implements the login command.
type LoginCmd struct {
	creds credentialFlags
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return []string{"signin"} }
func (c *LoginCmd) Synopsis() string  { return "Sign in" }
func (c *LoginCmd) Usage() string     { return "taskctl login --email <email> --password <password>" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	c.creds.register(fs)
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return userError(errOut, "unexpected argument: %s", args[0])
	}
	email, password, err := c.creds.resolve()
	if err != nil {
		return userError(errOut, "%v", err)
	}

	// Another account must not see this one's cached tasks.
	if a.Session.IsAuthenticated() {
		a.Session.Signout()
	}

	tok, err := a.Auth.Signin(ctx, service.SigninInput{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			fmt.Fprintln(errOut, "error: invalid email or password")
			return exitcode.AuthError
		}
		return reportError(errOut, err)
	}

	user := session.IdentityFromToken(tok.AccessToken)
	if user == nil {
		user = &service.User{Email: email}
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}
	if err := a.Session.Signin(tok.AccessToken, user); err != nil {
		fmt.Fprintf(errOut, "error: failed to save session: %v\n", err)
		return exitcode.AuthError
	}
	return ok(out, cfg.Quiet)
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return []string{"signout"} }
func (c *LogoutCmd) Synopsis() string  { return "Sign out and drop cached tasks" }
func (c *LogoutCmd) Usage() string     { return "taskctl logout" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	if !a.Session.Signout() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}
	return ok(out, cfg.Quiet)
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return nil }
func (c *WhoamiCmd) Synopsis() string  { return "Print the signed-in user" }
func (c *WhoamiCmd) Usage() string     { return "taskctl whoami" }
func (c *WhoamiCmd) NeedsAuth() bool   { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, a *app.App, args []string, out, errOut io.Writer) int {
	user := a.Session.User()
	if user == nil {
		fmt.Fprintln(out, "(unknown user)")
		return exitcode.Success
	}
	switch {
	case user.FullName != "" && user.Email != "":
		fmt.Fprintf(out, "%s <%s>\n", user.FullName, user.Email)
	case user.Email != "":
		fmt.Fprintln(out, user.Email)
	default:
		fmt.Fprintln(out, user.ID)
	}
	return exitcode.Success
}
