package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskctl/internal/service"
)

// FakeSecret signs the tokens issued by FakeAPI.
var FakeSecret = []byte("taskctl-test-secret")

// FakeAPI is an in-process task API server with the same routes, payloads
// and status codes as the real one.
type FakeAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	users    map[string]*fakeUser // email -> user
	tasks    map[string][]service.Task
	revoked  map[string]bool
	failures map[string]fakeFailure // "METHOD /path" -> failure
	hits     map[string]int
	now      func() time.Time
}

type fakeUser struct {
	service.User
	password string
}

type fakeFailure struct {
	status int
	body   any
}

type fakeClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// NewFakeAPI starts a FakeAPI. Close it with Close.
func NewFakeAPI() *FakeAPI {
	f := &FakeAPI{
		users:    make(map[string]*fakeUser),
		tasks:    make(map[string][]service.Task),
		revoked:  make(map[string]bool),
		failures: make(map[string]fakeFailure),
		hits:     make(map[string]int),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	f.Server = httptest.NewServer(f.routes())
	return f
}

// URL returns the base URL of the server.
func (f *FakeAPI) URL() string { return f.Server.URL }

// Close shuts the server down.
func (f *FakeAPI) Close() { f.Server.Close() }

func (f *FakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", f.signup)
		r.Post("/signin", f.signin)
	})
	r.Route("/tasks", func(r chi.Router) {
		r.Use(f.authenticate)
		r.Get("/", f.listTasks)
		r.Post("/", f.createTask)
		r.Get("/{id}", f.getTask)
		r.Patch("/{id}", f.updateTask)
		r.Delete("/{id}", f.deleteTask)
	})
	return r
}

// AddUser registers an account.
func (f *FakeAPI) AddUser(email, password, fullName string) service.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, password, fullName)
}

func (f *FakeAPI) addUserLocked(email, password, fullName string) service.User {
	u := &fakeUser{
		User:     service.User{ID: uuid.NewString(), Email: email, FullName: fullName},
		password: password,
	}
	f.users[email] = u
	return u.User
}

// Token issues a valid access token for a registered email.
func (f *FakeAPI) Token(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		panic("testutil: unknown user " + email)
	}
	return f.issueLocked(u)
}

func (f *FakeAPI) issueLocked(u *fakeUser) string {
	claims := fakeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(f.now()),
			ExpiresAt: jwt.NewNumericDate(f.now().Add(time.Hour)),
		},
		Email:    u.Email,
		FullName: u.FullName,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(FakeSecret)
	if err != nil {
		panic(err)
	}
	return s
}

// RevokeAll makes every issued token answer 401.
func (f *FakeAPI) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked["*"] = true
}

// AddTask adds a task owned by email at the top of its list.
func (f *FakeAPI) AddTask(email, title string, status service.Status) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[email]
	now := f.now()
	t := service.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    status,
		UserID:    u.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.tasks[u.ID] = slices.Insert(f.tasks[u.ID], 0, t)
	return t
}

// Tasks returns the tasks owned by email.
func (f *FakeAPI) Tasks(email string) []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil
	}
	return slices.Clone(f.tasks[u.ID])
}

// Fail makes every request to method and path answer status with a
// {"detail": detail} body. An empty detail sends a body without one.
func (f *FakeAPI) Fail(method, path string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body any = map[string]string{"error": "boom"}
	if detail != "" {
		body = map[string]string{"detail": detail}
	}
	f.failures[method+" "+path] = fakeFailure{status: status, body: body}
}

// Heal removes all injected failures.
func (f *FakeAPI) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]fakeFailure)
}

// Hits returns how many requests reached method and path.
func (f *FakeAPI) Hits(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method+" "+path]
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimSuffix(r.URL.Path, "/")
		f.mu.Lock()
		f.hits[key]++
		fail, failing := f.failures[key]
		f.mu.Unlock()

		if failing {
			writeJSON(w, fail.status, fail.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

func (f *FakeAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		var claims fakeClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return FakeSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		f.mu.Lock()
		revoked := f.revoked["*"] || f.revoked[raw]
		f.mu.Unlock()
		if err != nil || revoked {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, claims.Subject)))
	})
}

func (f *FakeAPI) signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	if !strings.Contains(in.Email, "@") {
		writeValidation(w, "value is not a valid email address")
		return
	}
	if len(in.Password) < 6 {
		writeValidation(w, "String should have at least 6 characters")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[in.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	f.addUserLocked(in.Email, in.Password, in.FullName)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

func (f *FakeAPI) signin(w http.ResponseWriter, r *http.Request) {
	var in service.SigninInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.Email]
	if !ok || u.password != in.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": f.issueLocked(u),
		"token_type":   "bearer",
	})
}

func (f *FakeAPI) listTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != string(service.StatusTodo) && status != string(service.StatusDone) {
		writeValidation(w, "Input should be 'todo' or 'done'")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	result := []service.Task{}
	for _, t := range f.tasks[userID(r)] {
		if status == "" || string(t.Status) == status {
			result = append(result, t)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (f *FakeAPI) getTask(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := userID(r)
	i := f.indexLocked(uid, chi.URLParam(r, "id"))
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, f.tasks[uid][i])
}

func (f *FakeAPI) createTask(w http.ResponseWriter, r *http.Request) {
	var in service.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	if msg := checkTask(&in.Title, in.Description); msg != "" {
		writeValidation(w, msg)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	uid := userID(r)
	now := f.now()
	t := service.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      service.StatusTodo,
		UserID:      uid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks[uid] = slices.Insert(f.tasks[uid], 0, t)
	writeJSON(w, http.StatusCreated, t)
}

func (f *FakeAPI) updateTask(w http.ResponseWriter, r *http.Request) {
	var patch service.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeValidation(w, "Invalid JSON body")
		return
	}
	if msg := checkTask(patch.Title, patch.Description); msg != "" {
		writeValidation(w, msg)
		return
	}
	if patch.Status != nil && *patch.Status != service.StatusTodo && *patch.Status != service.StatusDone {
		writeValidation(w, "Input should be 'todo' or 'done'")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	uid := userID(r)
	i := f.indexLocked(uid, chi.URLParam(r, "id"))
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	t := f.tasks[uid][i]
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	t.UpdatedAt = f.now()
	f.tasks[uid][i] = t
	writeJSON(w, http.StatusOK, t)
}

func (f *FakeAPI) deleteTask(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := userID(r)
	i := f.indexLocked(uid, chi.URLParam(r, "id"))
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	f.tasks[uid] = slices.Delete(f.tasks[uid], i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) indexLocked(uid, id string) int {
	return slices.IndexFunc(f.tasks[uid], func(t service.Task) bool { return t.ID == id })
}

func userID(r *http.Request) string {
	uid, _ := r.Context().Value(userKey{}).(string)
	return uid
}

// checkTask returns the validation message for a title and description,
// or "" when both are acceptable. A nil title is not checked.
func checkTask(title, desc *string) string {
	if title != nil {
		if n := len([]rune(*title)); n < 1 || n > 200 {
			return fmt.Sprintf("title must be between 1 and 200 characters, got %d", n)
		}
	}
	if desc != nil && len([]rune(*desc)) > 1000 {
		return "description must be at most 1000 characters"
	}
	return ""
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeValidation writes a 422 in list-of-errors form.
func writeValidation(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body"}, "msg": msg, "type": "value_error"}},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
