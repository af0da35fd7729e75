package commands_test

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"taskctl/internal/app"
	"taskctl/internal/commands"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/service"
	"taskctl/internal/session"
	"taskctl/internal/taskcache"
	"taskctl/internal/testutil"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "secret1"
)

// testEnv is one signed-in (or anonymous) process against a FakeAPI.
type testEnv struct {
	fake *testutil.FakeAPI
	cfg  *config.Config
	app  *app.App
}

func newEnv(t *testing.T, signedIn bool) *testEnv {
	t.Helper()
	fake := testutil.NewFakeAPI()
	t.Cleanup(fake.Close)
	fake.AddUser(testEmail, testPassword, "Ada Lovelace")

	e := &testEnv{fake: fake, cfg: testConfig(t, fake)}
	e.app = newApp(t, e.cfg)
	if signedIn {
		token := fake.Token(testEmail)
		if err := e.app.Session.Signin(token, session.IdentityFromToken(token)); err != nil {
			t.Fatalf("Signin: %v", err)
		}
	}
	return e
}

func testConfig(t *testing.T, fake *testutil.FakeAPI) *config.Config {
	t.Helper()
	settings := config.DefaultSettings()
	settings.APIURL = fake.URL()
	noLimit := 0.0
	settings.RateLimit = &noLimit
	noRetry := 0
	settings.Retry = &noRetry
	return &config.Config{Dir: t.TempDir(), Settings: settings}
}

func newApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, app.Options{})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// run parses args the way the dispatcher does and runs cmd.
func (e *testEnv) run(t *testing.T, cmd commands.Command, args ...string) (stdout, stderr string, code int) {
	t.Helper()

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}

	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(context.Background(), e.cfg, e.app, fs.Args(), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func expectCode(t *testing.T, got, want int, stderr string) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d (stderr %q)", want, got, stderr)
	}
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	e := newEnv(t, false)

	stdout, stderr, code := e.run(t, &commands.VersionCmd{})

	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "taskctl 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	e := newEnv(t, false)

	stdout, stderr, code := e.run(t, &commands.HelpCmd{})

	expectCode(t, code, exitcode.Success, stderr)
	if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "taskctl watch") {
		t.Errorf("unexpected help output %q", stdout)
	}
}

// Tests for list command
func TestListCommand_Empty(t *testing.T) {
	e := newEnv(t, true)

	stdout, stderr, code := e.run(t, &commands.ListCmd{})
	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "no tasks found\n" {
		t.Errorf("expected %q, got %q", "no tasks found\n", stdout)
	}

	e.cfg.Quiet = true
	stdout, _, _ = e.run(t, &commands.ListCmd{})
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestListCommand_WithTasks(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "Buy milk", service.StatusDone)
	e.fake.AddTask(testEmail, "Write report", service.StatusTodo)

	stdout, stderr, code := e.run(t, &commands.ListCmd{})

	expectCode(t, code, exitcode.Success, stderr)
	expected := "   1  [ ] Write report\n   2  [x] Buy milk\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_StatusFilterKeepsNumbers(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "Buy milk", service.StatusDone)
	e.fake.AddTask(testEmail, "Write report", service.StatusTodo)

	stdout, stderr, code := e.run(t, &commands.ListCmd{}, "--status", "done")

	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "   2  [x] Buy milk\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestListCommand_InvalidStatus(t *testing.T) {
	e := newEnv(t, true)

	_, stderr, code := e.run(t, &commands.ListCmd{}, "--status", "later")

	expectCode(t, code, exitcode.UserError, stderr)
	if stderr != "error: invalid status: later\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_ServedFromCache(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "a", service.StatusTodo)

	e.run(t, &commands.ListCmd{})
	e.run(t, &commands.ListCmd{})

	if hits := e.fake.Hits(http.MethodGet, "/tasks"); hits != 1 {
		t.Errorf("expected one request for a fresh cache, got %d", hits)
	}
}

func TestListCommand_BackendError(t *testing.T) {
	e := newEnv(t, true)
	e.fake.Fail(http.MethodGet, "/tasks", http.StatusInternalServerError, "")

	stdout, stderr, code := e.run(t, &commands.ListCmd{})

	expectCode(t, code, exitcode.BackendError, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: backend error: An error occurred\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_SessionExpired(t *testing.T) {
	e := newEnv(t, true)
	e.fake.RevokeAll()

	_, stderr, code := e.run(t, &commands.ListCmd{})

	expectCode(t, code, exitcode.AuthError, stderr)
	if stderr != "error: session expired (run: taskctl login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if e.app.Session.IsAuthenticated() {
		t.Error("expected session to be ended")
	}
	if !e.app.Unauthorized() {
		t.Error("expected the unauthorized hook to run")
	}
	if e.cfg.HasSession() {
		t.Error("expected persisted session to be signed out")
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	e := newEnv(t, true)

	stdout, stderr, code := e.run(t, &commands.AddCmd{}, "-d", "two liters", "Buy", "milk")

	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	tasks := e.fake.Tasks(testEmail)
	if len(tasks) != 1 || tasks[0].Title != "Buy milk" || tasks[0].DescriptionText() != "two liters" {
		t.Fatalf("unexpected server tasks %+v", tasks)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	e := newEnv(t, true)
	e.cfg.Quiet = true

	stdout, stderr, code := e.run(t, &commands.AddCmd{}, "Buy milk")

	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
}

func TestAddCommand_Validation(t *testing.T) {
	e := newEnv(t, true)

	tests := []struct {
		name   string
		args   []string
		stderr string
	}{
		{"no title", nil, "error: title required\n"},
		{"blank title", []string{"  "}, "error: title required\n"},
		{"long title", []string{strings.Repeat("x", 201)}, "error: title must be at most 200 characters\n"},
		{"long description", []string{"-d", strings.Repeat("x", 1001), "ok"}, "error: description must be at most 1000 characters\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := e.run(t, &commands.AddCmd{}, tt.args...)
			expectCode(t, code, exitcode.UserError, stderr)
			if stderr != tt.stderr {
				t.Errorf("expected %q, got %q", tt.stderr, stderr)
			}
		})
	}
	if hits := e.fake.Hits(http.MethodPost, "/tasks"); hits != 0 {
		t.Errorf("invalid input must not reach the server, got %d requests", hits)
	}
}

func TestAddCommand_ServerValidation(t *testing.T) {
	e := newEnv(t, true)
	e.fake.Fail(http.MethodPost, "/tasks", http.StatusBadRequest, "Task limit reached")

	_, stderr, code := e.run(t, &commands.AddCmd{}, "one more")

	expectCode(t, code, exitcode.UserError, stderr)
	if stderr != "error: Task limit reached\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestAddCommand_RefreshesListAfterCreate(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "old", service.StatusTodo)
	e.run(t, &commands.ListCmd{})

	e.run(t, &commands.AddCmd{}, "new")
	stdout, _, _ := e.run(t, &commands.ListCmd{})

	if stdout != "   1  [ ] new\n   2  [ ] old\n" {
		t.Errorf("expected refetched list, got %q", stdout)
	}
	if entry, ok := e.app.Cache.Read(taskcache.ListKey("")); !ok || strings.HasPrefix(entry.Data[0].ID, "temp-") {
		t.Errorf("expected server ids in cache, got %+v", entry.Data)
	}
}

// Tests for show command
func TestShowCommand(t *testing.T) {
	e := newEnv(t, true)
	task := e.fake.AddTask(testEmail, "Write report", service.StatusTodo)

	stdout, stderr, code := e.run(t, &commands.ShowCmd{}, "1")

	expectCode(t, code, exitcode.Success, stderr)
	if !strings.HasPrefix(stdout, "[ ] Write report\n") {
		t.Errorf("unexpected output %q", stdout)
	}
	if !strings.Contains(stdout, "id:       "+task.ID+"\n") || !strings.Contains(stdout, "status:   todo\n") {
		t.Errorf("expected id and status lines, got %q", stdout)
	}
}

func TestShowCommand_ByID(t *testing.T) {
	e := newEnv(t, true)
	task := e.fake.AddTask(testEmail, "Write report", service.StatusDone)

	stdout, stderr, code := e.run(t, &commands.ShowCmd{}, task.ID)

	expectCode(t, code, exitcode.Success, stderr)
	if !strings.HasPrefix(stdout, "[x] Write report\n") {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestShowCommand_Errors(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "only", service.StatusTodo)

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"no ref", nil, exitcode.UserError, "error: task reference required\n"},
		{"out of range", []string{"2"}, exitcode.UserError, "error: task number out of range: 2\n"},
		{"unknown id", []string{"no-such-task"}, exitcode.UserError, "error: task not found\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := e.run(t, &commands.ShowCmd{}, tt.args...)
			expectCode(t, code, tt.code, stderr)
			if stderr != tt.stderr {
				t.Errorf("expected %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

// Tests for done and undo commands
func TestDoneAndUndoCommands(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "Write report", service.StatusTodo)

	stdout, stderr, code := e.run(t, &commands.DoneCmd{}, "1")
	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if got := e.fake.Tasks(testEmail)[0].Status; got != service.StatusDone {
		t.Errorf("expected done on server, got %s", got)
	}

	_, stderr, code = e.run(t, &commands.UndoCmd{}, "1")
	expectCode(t, code, exitcode.Success, stderr)
	if got := e.fake.Tasks(testEmail)[0].Status; got != service.StatusTodo {
		t.Errorf("expected todo on server, got %s", got)
	}
}

func TestDoneCommand_AlreadyDoneSkipsRequest(t *testing.T) {
	e := newEnv(t, true)
	task := e.fake.AddTask(testEmail, "done already", service.StatusDone)

	_, stderr, code := e.run(t, &commands.DoneCmd{}, "1")

	expectCode(t, code, exitcode.Success, stderr)
	if hits := e.fake.Hits(http.MethodPatch, "/tasks/"+task.ID); hits != 0 {
		t.Errorf("expected no update request, got %d", hits)
	}
}

func TestDoneCommand_NotFoundRollsBack(t *testing.T) {
	e := newEnv(t, true)
	task := e.fake.AddTask(testEmail, "racy", service.StatusTodo)
	e.run(t, &commands.ListCmd{})
	e.fake.Fail(http.MethodPatch, "/tasks/"+task.ID, http.StatusNotFound, "Task not found")

	_, stderr, code := e.run(t, &commands.DoneCmd{}, "1")

	expectCode(t, code, exitcode.UserError, stderr)
	if stderr != "error: task not found\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	entry, _ := e.app.Cache.Read(taskcache.ListKey(""))
	if len(entry.Data) != 1 || entry.Data[0].Status != service.StatusTodo {
		t.Errorf("expected rollback to todo, got %+v", entry.Data)
	}
	if !entry.Stale {
		t.Error("expected list to be invalidated after settling")
	}
}

// Tests for edit command
func TestEditCommand(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "draft", service.StatusTodo)

	_, stderr, code := e.run(t, &commands.EditCmd{}, "--title", "final", "--description", "", "--status", "done", "1")

	expectCode(t, code, exitcode.Success, stderr)
	got := e.fake.Tasks(testEmail)[0]
	if got.Title != "final" || got.Status != service.StatusDone || got.Description == nil || *got.Description != "" {
		t.Errorf("unexpected server task %+v", got)
	}
}

func TestEditCommand_Errors(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "draft", service.StatusTodo)

	tests := []struct {
		name   string
		args   []string
		stderr string
	}{
		{"nothing to change", []string{"1"}, "error: nothing to change (use --title, --description or --status)\n"},
		{"blank title", []string{"--title", " ", "1"}, "error: title required\n"},
		{"bad status", []string{"--status", "soon", "1"}, "error: invalid status: soon\n"},
		{"no ref", []string{"--title", "x"}, "error: task reference required\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := e.run(t, &commands.EditCmd{}, tt.args...)
			expectCode(t, code, exitcode.UserError, stderr)
			if stderr != tt.stderr {
				t.Errorf("expected %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

// Tests for rm command
func TestRmCommand(t *testing.T) {
	e := newEnv(t, true)
	keep := e.fake.AddTask(testEmail, "keep", service.StatusTodo)
	e.fake.AddTask(testEmail, "remove", service.StatusTodo)

	stdout, stderr, code := e.run(t, &commands.RmCmd{}, "1")

	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	tasks := e.fake.Tasks(testEmail)
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Errorf("expected only %q left, got %+v", keep.Title, tasks)
	}
}

func TestRmCommand_TransportError(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "a", service.StatusTodo)
	e.run(t, &commands.ListCmd{})
	e.fake.Close()

	_, stderr, code := e.run(t, &commands.RmCmd{}, "1")

	expectCode(t, code, exitcode.BackendError, stderr)
	if !strings.HasPrefix(stderr, "error: backend error: request failed: ") {
		t.Errorf("unexpected stderr %q", stderr)
	}
	entry, _ := e.app.Cache.Read(taskcache.ListKey(""))
	if len(entry.Data) != 1 {
		t.Errorf("expected rollback, got %+v", entry.Data)
	}
}

// Tests for watch command

// lockedBuffer is a bytes.Buffer safe to read while a command writes to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startWatch runs watch in the background and returns its output buffers
// and a channel receiving the exit code.
func (e *testEnv) startWatch(t *testing.T, ctx context.Context, args ...string) (*lockedBuffer, *lockedBuffer, <-chan int) {
	t.Helper()
	cmd := &commands.WatchCmd{}
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}

	stdout, stderr := &lockedBuffer{}, &lockedBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- cmd.Run(ctx, e.cfg, e.app, fs.Args(), stdout, stderr)
	}()
	return stdout, stderr, done
}

func waitForOutput(t *testing.T, b *lockedBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(b.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q, got %q", want, b.String())
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForExit(t *testing.T, done <-chan int) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not finish")
		return -1
	}
}

func TestWatchCommand_RerendersOnRefetch(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "first", service.StatusTodo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout, stderr, done := e.startWatch(t, ctx, "--interval", "10ms")
	waitForOutput(t, stdout, "   1  [ ] first\n")
	e.fake.AddTask(testEmail, "second", service.StatusTodo)
	waitForOutput(t, stdout, "------------\n   1  [ ] second\n   2  [ ] first\n")
	cancel()

	code := waitForExit(t, done)
	expectCode(t, code, exitcode.Success, stderr.String())
	if !strings.HasPrefix(stdout.String(), "   1  [ ] first\n------------\n") {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

func TestWatchCommand_Count(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "only", service.StatusTodo)

	stdout, stderr, done := e.startWatch(t, context.Background(), "--interval", "10ms", "--count", "3")

	code := waitForExit(t, done)
	expectCode(t, code, exitcode.Success, stderr.String())
	if got := strings.Count(stdout.String(), "only"); got != 3 {
		t.Errorf("expected 3 renders, got %d in %q", got, stdout.String())
	}
}

func TestWatchCommand_StopsOnCancel(t *testing.T) {
	e := newEnv(t, true)
	ctx, cancel := context.WithCancel(context.Background())

	stdout, _, done := e.startWatch(t, ctx, "--interval", "1h")
	waitForOutput(t, stdout, "no tasks found\n")
	cancel()

	if code := waitForExit(t, done); code != exitcode.Success {
		t.Errorf("expected success on cancel, got %d", code)
	}
}

func TestWatchCommand_SessionExpired(t *testing.T) {
	e := newEnv(t, true)

	stdout, stderr, done := e.startWatch(t, context.Background(), "--interval", "10ms")
	waitForOutput(t, stdout, "no tasks found\n")
	e.fake.RevokeAll()

	code := waitForExit(t, done)
	expectCode(t, code, exitcode.AuthError, stderr.String())
	if stderr.String() != "error: session expired (run: taskctl login)\n" {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}

func TestWatchCommand_InvalidInterval(t *testing.T) {
	e := newEnv(t, true)

	_, stderr, code := e.run(t, &commands.WatchCmd{}, "--interval", "0s")

	expectCode(t, code, exitcode.UserError, stderr)
}

// Tests for auth commands
func TestSignupCommand(t *testing.T) {
	e := newEnv(t, false)

	stdout, stderr, code := e.run(t, &commands.SignupCmd{}, "--email", "new@example.com", "--password", "hunter22", "--name", "New User")
	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "User created successfully\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}

	_, stderr, code = e.run(t, &commands.SignupCmd{}, "--email", "new@example.com", "--password", "hunter22")
	expectCode(t, code, exitcode.UserError, stderr)
	if stderr != "error: Email already registered\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestSignupCommand_Validation(t *testing.T) {
	e := newEnv(t, false)
	t.Setenv(commands.EnvPassword, "")

	tests := []struct {
		name   string
		args   []string
		stderr string
	}{
		{"no email", []string{"--password", "hunter22"}, "error: email required (use --email)\n"},
		{"bad email", []string{"--email", "nobody", "--password", "hunter22"}, "error: invalid email address\n"},
		{"no password", []string{"--email", "a@example.com"}, "error: password required (use --password or TASKCTL_PASSWORD)\n"},
		{"short password", []string{"--email", "a@example.com", "--password", "12345"}, "error: password must be at least 6 characters\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := e.run(t, &commands.SignupCmd{}, tt.args...)
			expectCode(t, code, exitcode.UserError, stderr)
			if stderr != tt.stderr {
				t.Errorf("expected %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

func TestLoginCommand(t *testing.T) {
	e := newEnv(t, false)

	stdout, stderr, code := e.run(t, &commands.LoginCmd{}, "--email", testEmail, "--password", testPassword)

	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if !e.app.Session.IsAuthenticated() || !e.cfg.HasSession() {
		t.Fatal("expected persisted session")
	}

	stdout, stderr, code = e.run(t, &commands.WhoamiCmd{})
	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "Ada Lovelace <ada@example.com>\n" {
		t.Errorf("unexpected whoami %q", stdout)
	}
}

func TestLoginCommand_PasswordFromEnv(t *testing.T) {
	e := newEnv(t, false)
	t.Setenv(commands.EnvPassword, testPassword)

	_, stderr, code := e.run(t, &commands.LoginCmd{}, "--email", testEmail)

	expectCode(t, code, exitcode.Success, stderr)
}

func TestLoginCommand_WrongPassword(t *testing.T) {
	e := newEnv(t, false)

	stdout, stderr, code := e.run(t, &commands.LoginCmd{}, "--email", testEmail, "--password", "wrong-password")

	expectCode(t, code, exitcode.AuthError, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: invalid email or password\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if e.app.Session.IsAuthenticated() {
		t.Error("failed login must stay anonymous")
	}
}

func TestLoginCommand_SwitchUserPurgesCache(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "private", service.StatusTodo)
	e.run(t, &commands.ListCmd{})
	e.fake.AddUser("bob@example.com", "secret2", "Bob")

	_, stderr, code := e.run(t, &commands.LoginCmd{}, "--email", "bob@example.com", "--password", "secret2")
	expectCode(t, code, exitcode.Success, stderr)

	if e.app.Cache.Len() != 0 {
		t.Errorf("expected cache purged on user switch, got %v", e.app.Cache.Keys())
	}
	stdout, _, _ := e.run(t, &commands.ListCmd{})
	if stdout != "no tasks found\n" {
		t.Errorf("new user must not see old tasks, got %q", stdout)
	}
}

func TestLogoutCommand(t *testing.T) {
	e := newEnv(t, true)
	e.fake.AddTask(testEmail, "a", service.StatusTodo)
	e.run(t, &commands.ListCmd{})
	if err := e.app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(e.cfg.CachePath()); err != nil {
		t.Fatalf("expected persisted cache: %v", err)
	}

	stdout, stderr, code := e.run(t, &commands.LogoutCmd{})
	expectCode(t, code, exitcode.Success, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if e.cfg.HasSession() {
		t.Error("expected persisted session to be signed out")
	}
	if _, err := os.Stat(e.cfg.CachePath()); !os.IsNotExist(err) {
		t.Errorf("expected cache file removed, stat err %v", err)
	}
	if e.app.Cache.Len() != 0 {
		t.Error("expected cache cleared")
	}

	stdout, _, _ = e.run(t, &commands.LogoutCmd{})
	if stdout != "not logged in\n" {
		t.Errorf("expected not logged in, got %q", stdout)
	}
}

func TestWhoamiCommand_UnknownIdentity(t *testing.T) {
	e := newEnv(t, false)
	e.app.Session.Signin("opaque-token", nil)

	stdout, _, code := e.run(t, &commands.WhoamiCmd{})
	if code != exitcode.Success || stdout != "(unknown user)\n" {
		t.Errorf("unexpected whoami %d %q", code, stdout)
	}
}
