package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kanban/internal/auth"
	"kanban/internal/models"
	"kanban/internal/storage/sqlite"
)

func newTestServer(t *testing.T, requireToken bool) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "kanban.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return New(store, logger, Options{Tokens: tokens, RequireToken: requireToken})
}

func do(t *testing.T, srv *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

type userResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

func register(t *testing.T, srv *Server, username string) userResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/register", map[string]string{
		"username": username,
		"email":    username + "@x.com",
		"password": "password123",
	}, "")
	expectStatus(t, rec, http.StatusOK)
	return decode[userResponse](t, rec)
}

func boardsOf(t *testing.T, srv *Server, userID int64) []models.Board {
	t.Helper()
	rec := do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/boards?user_id=%d", userID), nil, "")
	expectStatus(t, rec, http.StatusOK)
	return decode[[]models.Board](t, rec)
}

func TestBoardWorkflow(t *testing.T) {
	srv := newTestServer(t, false)
	alice := register(t, srv, "alice")
	if alice.Username != "alice" || alice.AccessToken == "" {
		t.Fatalf("unexpected register response %+v", alice)
	}

	boards := boardsOf(t, srv, alice.ID)
	if len(boards) != 1 || boards[0].Title != "Board alice" || len(boards[0].Columns) != 3 {
		t.Fatalf("unexpected boards %+v", boards)
	}
	cols := boards[0].Columns

	rec := do(t, srv, http.MethodPost, "/api/v1/tasks", map[string]any{
		"title":     "Write spec",
		"column_id": cols[0].ID,
	}, "")
	expectStatus(t, rec, http.StatusOK)
	task := decode[models.Task](t, rec)
	if task.Priority != models.PriorityMedium || task.ColumnID != cols[0].ID {
		t.Fatalf("unexpected task %+v", task)
	}

	rec = do(t, srv, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d?column_id=%d", task.ID, cols[1].ID), nil, "")
	expectStatus(t, rec, http.StatusOK)
	moved := decode[models.Task](t, rec)
	if moved.ColumnID != cols[1].ID || moved.Title != "Write spec" || moved.Priority != models.PriorityMedium {
		t.Errorf("unexpected moved task %+v", moved)
	}

	boards = boardsOf(t, srv, alice.ID)
	if got := boards[0].Columns[1].Tasks; len(got) != 1 || got[0].ID != task.ID {
		t.Errorf("second column tasks = %+v", got)
	}
}

func TestRegister_Rejects(t *testing.T) {
	srv := newTestServer(t, false)
	register(t, srv, "alice")

	rec := do(t, srv, http.MethodPost, "/api/v1/register", map[string]string{
		"username": "alice", "email": "new@x.com", "password": "p",
	}, "")
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, srv, http.MethodPost, "/api/v1/register", map[string]string{
		"username": "bob", "email": "not-an-email", "password": "p",
	}, "")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, false)
	alice := register(t, srv, "alice")

	rec := do(t, srv, http.MethodPost, "/api/v1/login", map[string]string{"username": "alice", "password": "password123"}, "")
	expectStatus(t, rec, http.StatusOK)
	got := decode[userResponse](t, rec)
	if got.ID != alice.ID || got.AccessToken == "" {
		t.Errorf("unexpected login response %+v", got)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password data: %s", rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/login", map[string]string{"username": "alice", "password": "nope"}, "")
	expectStatus(t, rec, http.StatusUnauthorized)
	rec = do(t, srv, http.MethodPost, "/api/v1/login", map[string]string{"username": "ghost", "password": "nope"}, "")
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestListBoards(t *testing.T) {
	srv := newTestServer(t, false)

	rec := do(t, srv, http.MethodGet, "/api/v1/boards?user_id=999", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/boards", nil, "")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestCreateBoard(t *testing.T) {
	srv := newTestServer(t, false)
	alice := register(t, srv, "alice")

	rec := do(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/boards?user_id=%d", alice.ID), map[string]string{"title": "Side project"}, "")
	expectStatus(t, rec, http.StatusOK)
	board := decode[models.Board](t, rec)
	if board.OwnerID != alice.ID || len(board.Columns) != 3 {
		t.Errorf("unexpected board %+v", board)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/boards?user_id=999", map[string]string{"title": "x"}, "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestInviteMember(t *testing.T) {
	srv := newTestServer(t, false)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")
	boardID := boardsOf(t, srv, alice.ID)[0].ID

	path := fmt.Sprintf("/api/v1/boards/%d/invite", boardID)
	for i := 0; i < 2; i++ {
		rec := do(t, srv, http.MethodPost, path, map[string]string{"email": "bob@x.com"}, "")
		expectStatus(t, rec, http.StatusOK)
	}
	if got := boardsOf(t, srv, bob.ID); len(got) != 2 {
		t.Errorf("bob sees %d boards, want 2", len(got))
	}

	rec := do(t, srv, http.MethodPost, path, map[string]string{"email": "nobody@x.com"}, "")
	expectStatus(t, rec, http.StatusNotFound)
	rec = do(t, srv, http.MethodPost, "/api/v1/boards/999/invite", map[string]string{"email": "bob@x.com"}, "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestColumns_OwnerOnly(t *testing.T) {
	srv := newTestServer(t, false)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")
	board := boardsOf(t, srv, alice.ID)[0]

	createPath := func(userID int64) string {
		return fmt.Sprintf("/api/v1/boards/%d/columns?user_id=%d", board.ID, userID)
	}

	rec := do(t, srv, http.MethodPost, createPath(bob.ID), map[string]any{"title": "Review"}, "")
	expectStatus(t, rec, http.StatusForbidden)
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/boards/999/columns?user_id=%d", alice.ID), map[string]any{"title": "Review"}, "")
	expectStatus(t, rec, http.StatusNotFound)

	rec = do(t, srv, http.MethodPost, createPath(alice.ID), map[string]any{"title": "Review", "order": 3}, "")
	expectStatus(t, rec, http.StatusOK)
	col := decode[models.Column](t, rec)
	if col.Title != "Review" || col.Order != 3 || col.BoardID != board.ID {
		t.Fatalf("unexpected column %+v", col)
	}

	colPath := func(id, userID int64) string {
		return fmt.Sprintf("/api/v1/columns/%d?user_id=%d", id, userID)
	}

	rec = do(t, srv, http.MethodPut, colPath(col.ID, bob.ID), map[string]string{"title": "QA"}, "")
	expectStatus(t, rec, http.StatusForbidden)
	rec = do(t, srv, http.MethodPut, colPath(col.ID, alice.ID), map[string]string{"title": "QA"}, "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Column](t, rec); got.Title != "QA" {
		t.Errorf("title = %q", got.Title)
	}
	rec = do(t, srv, http.MethodPut, colPath(999, alice.ID), map[string]string{"title": "QA"}, "")
	expectStatus(t, rec, http.StatusNotFound)

	rec = do(t, srv, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "t", "column_id": col.ID}, "")
	expectStatus(t, rec, http.StatusOK)
	task := decode[models.Task](t, rec)

	rec = do(t, srv, http.MethodDelete, colPath(col.ID, bob.ID), nil, "")
	expectStatus(t, rec, http.StatusForbidden)
	rec = do(t, srv, http.MethodDelete, colPath(col.ID, alice.ID), nil, "")
	expectStatus(t, rec, http.StatusOK)
	rec = do(t, srv, http.MethodDelete, colPath(col.ID, alice.ID), nil, "")
	expectStatus(t, rec, http.StatusNotFound)

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d", task.ID), nil, "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestTasks(t *testing.T) {
	srv := newTestServer(t, false)
	alice := register(t, srv, "alice")
	colID := boardsOf(t, srv, alice.ID)[0].Columns[0].ID

	rec := do(t, srv, http.MethodPost, "/api/v1/tasks", map[string]any{
		"title": "t", "priority": "high", "column_id": colID, "description": "d",
	}, "")
	expectStatus(t, rec, http.StatusOK)
	task := decode[models.Task](t, rec)
	if task.Priority != models.PriorityHigh || task.Description != "d" {
		t.Fatalf("unexpected task %+v", task)
	}

	taskPath := fmt.Sprintf("/api/v1/tasks/%d", task.ID)
	rec = do(t, srv, http.MethodPut, taskPath, map[string]any{"priority": "whenever", "title": "renamed"}, "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Task](t, rec); got.Priority != models.PriorityHigh || got.Title != "renamed" {
		t.Errorf("unexpected updated task %+v", got)
	}

	rec = do(t, srv, http.MethodPut, "/api/v1/tasks/999", map[string]any{"title": "x"}, "")
	expectStatus(t, rec, http.StatusNotFound)
	rec = do(t, srv, http.MethodPatch, "/api/v1/tasks/999?column_id=1", nil, "")
	expectStatus(t, rec, http.StatusNotFound)
	rec = do(t, srv, http.MethodPatch, taskPath+"?column_id=999", nil, "")
	expectStatus(t, rec, http.StatusNotFound)
	rec = do(t, srv, http.MethodPatch, taskPath, nil, "")
	expectStatus(t, rec, http.StatusBadRequest)
	rec = do(t, srv, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "t", "column_id": 999}, "")
	expectStatus(t, rec, http.StatusNotFound)

	rec = do(t, srv, http.MethodDelete, taskPath, nil, "")
	expectStatus(t, rec, http.StatusOK)
	rec = do(t, srv, http.MethodDelete, taskPath, nil, "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestBearerToken(t *testing.T) {
	srv := newTestServer(t, false)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	rec := do(t, srv, http.MethodGet, "/api/v1/boards", nil, alice.AccessToken)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]models.Board](t, rec); len(got) != 1 || got[0].OwnerID != alice.ID {
		t.Errorf("unexpected boards %+v", got)
	}

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/boards?user_id=%d", bob.ID), nil, alice.AccessToken)
	expectStatus(t, rec, http.StatusForbidden)

	rec = do(t, srv, http.MethodGet, "/api/v1/boards", nil, "garbage")
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRequireToken(t *testing.T) {
	srv := newTestServer(t, true)
	alice := register(t, srv, "alice")

	rec := do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/boards?user_id=%d", alice.ID), nil, "")
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = do(t, srv, http.MethodGet, "/api/v1/boards", nil, alice.AccessToken)
	expectStatus(t, rec, http.StatusOK)
}

func TestRequestIDAndHealth(t *testing.T) {
	srv := newTestServer(t, false)

	rec := do(t, srv, http.MethodGet, "/api/v1/healthz", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/nope", nil, "")
	expectStatus(t, rec, http.StatusNotFound)
}
