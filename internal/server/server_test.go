package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"refinery/internal/refine"
	"refinery/internal/store"
)

type testServer struct {
	*Server
	mem  *store.Memory
	mock *refine.Mock
}

func newTestServer(t *testing.T, perMinute int) *testServer {
	t.Helper()
	mem := store.NewMemory()
	mock := &refine.Mock{}
	return &testServer{
		Server: New(Config{Store: mem, Refiner: mock, UserRatePerMinute: perMinute}),
		mem:    mem,
		mock:   mock,
	}
}

func (ts *testServer) do(t *testing.T, method, path, user, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 0)
	code, body := ts.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateChat(t *testing.T) {
	ts := newTestServer(t, 0)

	code, body := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"todo app react"}`)
	require.Equal(t, http.StatusOK, code)

	chatID, _ := body["chat_id"].(string)
	require.NotEmpty(t, chatID)
	assert.Contains(t, body["optimized_prompt"], "OBJECTIVE: todo app react")

	msgs, err := ts.mem.Messages(t.Context(), chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "todo app react", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)

	chat, err := ts.mem.GetChat(t.Context(), chatID)
	require.NoError(t, err)
	assert.Equal(t, "alice", chat.UserID)
}

func TestCreateChat_RequiresUser(t *testing.T) {
	ts := newTestServer(t, 0)
	code, body := ts.do(t, http.MethodPost, "/chat", "", `{"content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "X-User-ID header required", body["detail"])
	assert.NotContains(t, body, "error")
}

func TestCreateChat_EmptyContent(t *testing.T) {
	ts := newTestServer(t, 0)
	code, _ := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Empty(t, ts.mock.Calls())
}

func TestCreateChat_RefineFailure(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.mock.Err = fmt.Errorf("%w: GROQ_API_KEY is not set", refine.ErrNotConfigured)

	code, body := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "chat_id")
	assert.Nil(t, body["chat_id"])
	assert.Equal(t, "Error: refiner not configured: GROQ_API_KEY is not set", body["error"])

	list, err := ts.mem.ListChats(t.Context(), "alice", 20)
	require.NoError(t, err)
	assert.Empty(t, list, "no chat is created when refinement fails")
}

func TestContinueChat(t *testing.T) {
	ts := newTestServer(t, 0)
	_, body := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"todo app"}`)
	chatID := body["chat_id"].(string)

	code, body := ts.do(t, http.MethodPost, "/chat/"+chatID+"/message", "alice", `{"content":"add tests"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, chatID, body["chat_id"])
	assert.Contains(t, body["optimized_prompt"], "refinement 2")

	calls := ts.mock.Calls()
	require.Len(t, calls, 2)
	second := calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, refine.Turn{Role: "user", Content: "todo app"}, second[0])
	assert.Equal(t, "assistant", second[1].Role)
	assert.Equal(t, refine.Turn{Role: "user", Content: "add tests"}, second[2])

	msgs, err := ts.mem.Messages(t.Context(), chatID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestContinueChat_Errors(t *testing.T) {
	ts := newTestServer(t, 0)

	code, body := ts.do(t, http.MethodPost, "/chat/missing/message", "alice", `{"content":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "chat not found", body["error"])

	_, body = ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"x"}`)
	chatID := body["chat_id"].(string)

	ts.mock.Err = errors.New("upstream 503")
	code, body = ts.do(t, http.MethodPost, "/chat/"+chatID+"/message", "alice", `{"content":"y"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Error generating optimized prompt: upstream 503", body["error"])

	msgs, err := ts.mem.Messages(t.Context(), chatID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2, "failed turn is not stored")
}

func TestChatHistory(t *testing.T) {
	ts := newTestServer(t, 0)
	_, body := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"todo app"}`)
	chatID := body["chat_id"].(string)

	code, body := ts.do(t, http.MethodGet, "/chat/"+chatID, "alice", "")
	require.Equal(t, http.StatusOK, code)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "todo app", first["content"])
	assert.NotEmpty(t, first["id"])
	assert.NotEmpty(t, first["created_at"])

	code, body = ts.do(t, http.MethodGet, "/chat/unknown", "alice", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["messages"])
}

func TestListChats(t *testing.T) {
	ts := newTestServer(t, 0)
	for _, p := range []string{"first", "second"} {
		code, _ := ts.do(t, http.MethodPost, "/chat", "alice", fmt.Sprintf(`{"content":%q}`, p))
		require.Equal(t, http.StatusOK, code)
	}
	ts.do(t, http.MethodPost, "/chat", "bob", `{"content":"other"}`)

	code, body := ts.do(t, http.MethodGet, "/chats", "alice", "")
	require.Equal(t, http.StatusOK, code)
	chats := body["chats"].([]any)
	require.Len(t, chats, 2)
	assert.Equal(t, "second", chats[0].(map[string]any)["title"])
	assert.Equal(t, "first", chats[1].(map[string]any)["title"])

	code, body = ts.do(t, http.MethodGet, "/chats", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["chats"])
}

type failingStore struct{ *store.Memory }

func (failingStore) ListChats(_ context.Context, _ string, _ int) ([]store.ChatPreview, error) {
	return nil, errors.New("database is locked")
}

func TestInternalError(t *testing.T) {
	s := New(Config{Store: failingStore{store.NewMemory()}, Refiner: &refine.Mock{}})
	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	req.Header.Set(UserHeader, "alice")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"database is locked","error":true}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		code, _ := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"x"}`)
		require.Equal(t, http.StatusOK, code)
	}
	code, body := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limited", body["error"])

	// Buckets are per user, and reads are never limited.
	code, _ = ts.do(t, http.MethodPost, "/chat", "bob", `{"content":"x"}`)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodGet, "/chats", "alice", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRateLimit_AnonymousCallersKeyedByHost(t *testing.T) {
	ts := newTestServer(t, 1)
	_, body := ts.do(t, http.MethodPost, "/chat", "alice", `{"content":"x"}`)
	path := fmt.Sprintf("/chat/%s/message", body["chat_id"])

	limited := 0
	for port := 40000; port < 40010; port++ {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"content":"again"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", port-40000))
		req.RemoteAddr = fmt.Sprintf("10.0.0.1:%d", port)
		rec := httptest.NewRecorder()
		ts.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 9, limited)
	assert.Equal(t, 2, ts.limiter.size())
}

func TestUserLimiter_EvictsIdleBuckets(t *testing.T) {
	l := newUserLimiter(1)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		assert.True(t, l.allow(fmt.Sprintf("user:%d", i)))
	}
	assert.False(t, l.allow("user:0"))
	assert.Equal(t, 50, l.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("user:0"))
	assert.Equal(t, 1, l.size())
}

func TestUserLimiter_CapsBuckets(t *testing.T) {
	l := newUserLimiter(1)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	for i := 0; i < maxBuckets+5; i++ {
		now = now.Add(time.Microsecond)
		l.allow(fmt.Sprintf("user:%d", i))
	}
	assert.Equal(t, maxBuckets, l.size())
	_, kept := l.buckets["user:0"]
	assert.False(t, kept)
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(Config{Store: store.NewMemory(), Refiner: &refine.Mock{}, Logger: zap.New(core)})

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	req.Header.Set(UserHeader, "alice")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, "GET", first["method"])
	assert.Equal(t, "/chats", first["path"])
	assert.EqualValues(t, http.StatusOK, first["status"])
	assert.EqualValues(t, http.StatusNotFound, entries[1].ContextMap()["status"])
}
