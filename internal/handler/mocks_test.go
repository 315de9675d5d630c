package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/noteman/internal/assistant"
	"github.com/hitoshi/noteman/internal/middleware"
	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/note"
)

var testIdentity = model.Identity{UserID: "11111111-1111-4111-8111-111111111111", Email: "alice@example.com"}

// --- モック ---

type mockAuthService struct {
	signupFn func(ctx context.Context, email, password string) (*model.User, string, error)
	loginFn  func(ctx context.Context, email, password string) (*model.User, string, error)
	verifyFn func(ctx context.Context, identity model.Identity) (*model.User, error)
}

func (m *mockAuthService) Signup(ctx context.Context, email, password string) (*model.User, string, error) {
	return m.signupFn(ctx, email, password)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	return m.loginFn(ctx, email, password)
}

func (m *mockAuthService) Verify(ctx context.Context, identity model.Identity) (*model.User, error) {
	return m.verifyFn(ctx, identity)
}

type mockNoteService struct {
	listFn   func(ctx context.Context, identity model.Identity) ([]*model.Note, error)
	getFn    func(ctx context.Context, identity model.Identity, noteID string) (*model.Note, error)
	createFn func(ctx context.Context, identity model.Identity, in note.CreateInput) (*model.Note, error)
	updateFn func(ctx context.Context, identity model.Identity, noteID string, in note.UpdateInput) (*model.Note, error)
	deleteFn func(ctx context.Context, identity model.Identity, noteID string) error
	statsFn  func(ctx context.Context, identity model.Identity) (*model.NoteStats, error)
}

func (m *mockNoteService) List(ctx context.Context, identity model.Identity) ([]*model.Note, error) {
	return m.listFn(ctx, identity)
}

func (m *mockNoteService) Get(ctx context.Context, identity model.Identity, noteID string) (*model.Note, error) {
	return m.getFn(ctx, identity, noteID)
}

func (m *mockNoteService) Create(ctx context.Context, identity model.Identity, in note.CreateInput) (*model.Note, error) {
	return m.createFn(ctx, identity, in)
}

func (m *mockNoteService) Update(ctx context.Context, identity model.Identity, noteID string, in note.UpdateInput) (*model.Note, error) {
	return m.updateFn(ctx, identity, noteID, in)
}

func (m *mockNoteService) Delete(ctx context.Context, identity model.Identity, noteID string) error {
	return m.deleteFn(ctx, identity, noteID)
}

func (m *mockNoteService) Stats(ctx context.Context, identity model.Identity) (*model.NoteStats, error) {
	return m.statsFn(ctx, identity)
}

type mockChatClient struct {
	enabled    bool
	completeFn func(ctx context.Context, message string, history []assistant.Message) (string, error)
}

func (m *mockChatClient) Enabled() bool { return m.enabled }

func (m *mockChatClient) Complete(ctx context.Context, message string, history []assistant.Message) (string, error) {
	return m.completeFn(ctx, message, history)
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

// upperExcerpter はテスト用のExcerpter。先頭5文字を返す。
type upperExcerpter struct{}

func (upperExcerpter) Excerpt(content string) string {
	r := []rune(content)
	if len(r) > 5 {
		r = r[:5]
	}
	return string(r)
}

// --- ヘルパー ---

// newAuthedRequest は認証済みコンテキストを持つリクエストを生成する。
func newAuthedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.ContextWithIdentity(req.Context(), testIdentity))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return v
}

func assertErrorResponse(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode, wantMessage string) {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, wantStatus, rec.Body.String())
	}
	body := decodeBody[middleware.ErrorResponseBody](t, rec)
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
	if wantMessage != "" && body.Message != wantMessage {
		t.Errorf("message = %q, want %q", body.Message, wantMessage)
	}
}
